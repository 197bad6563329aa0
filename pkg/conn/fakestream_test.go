package conn

import (
	"bytes"
	"context"

	"github.com/iocafe/iocom-go/pkg/iocstatus"
	"github.com/iocafe/iocom-go/pkg/stream"
)

// fakeStream is an in-memory, non-blocking stream.Stream used to drive two
// Connections against each other without a real socket. Reads return
// iocstatus.ErrPending instead of blocking, matching what pkg/stream's real
// transports do, so Connection.Tick's cooperative loop behaves the same way
// it would over TCP.
type fakeStream struct {
	kind stream.Kind
	in   *bytes.Buffer
	out  *bytes.Buffer
}

// newFakePipe returns two connected streams: a's writes land in b's reads
// and vice versa.
func newFakePipe(kind stream.Kind) (*fakeStream, *fakeStream) {
	ab := &bytes.Buffer{}
	ba := &bytes.Buffer{}
	a := &fakeStream{kind: kind, in: ba, out: ab}
	b := &fakeStream{kind: kind, in: ab, out: ba}
	return a, b
}

func (f *fakeStream) Close() error { return nil }

func (f *fakeStream) Kind() stream.Kind { return f.kind }

func (f *fakeStream) Read(ctx context.Context, p []byte) (int, error) {
	if f.in.Len() == 0 {
		return 0, iocstatus.ErrPending
	}
	return f.in.Read(p)
}

func (f *fakeStream) Write(ctx context.Context, p []byte) (int, error) {
	return f.out.Write(p)
}

func (f *fakeStream) Flush(ctx context.Context) error { return nil }

func (f *fakeStream) RemoteAddr() string { return "fake" }
