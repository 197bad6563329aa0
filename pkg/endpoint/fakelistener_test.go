package endpoint

import (
	"bytes"
	"context"
	"sync"

	"github.com/iocafe/iocom-go/pkg/iocstatus"
	"github.com/iocafe/iocom-go/pkg/stream"
)

// fakeListener hands out pre-wired loopback streams one at a time, mirroring
// pkg/conn's fakeStream but from the listener side: each call to dial()
// queues one more stream for the next Accept to return.
type fakeListener struct {
	mu      sync.Mutex
	pending []stream.Stream
	closed  bool
}

func (l *fakeListener) dial() stream.Stream {
	ab := &bytes.Buffer{}
	ba := &bytes.Buffer{}
	accepted := &loopStream{in: ba, out: ab}
	dialed := &loopStream{in: ab, out: ba}

	l.mu.Lock()
	l.pending = append(l.pending, accepted)
	l.mu.Unlock()

	return dialed
}

func (l *fakeListener) Accept(ctx context.Context) (stream.Stream, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, iocstatus.ErrStreamClosed
	}
	if len(l.pending) == 0 {
		return nil, iocstatus.ErrPending
	}
	s := l.pending[0]
	l.pending = l.pending[1:]
	return s, nil
}

func (l *fakeListener) Addr() string { return "fake-listener" }

func (l *fakeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

type loopStream struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (s *loopStream) Close() error { return nil }

func (s *loopStream) Kind() stream.Kind { return stream.KindTCP }

func (s *loopStream) Read(ctx context.Context, p []byte) (int, error) {
	if s.in.Len() == 0 {
		return 0, iocstatus.ErrPending
	}
	return s.in.Read(p)
}

func (s *loopStream) Write(ctx context.Context, p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *loopStream) Flush(ctx context.Context) error { return nil }

func (s *loopStream) RemoteAddr() string { return "fake-peer" }
