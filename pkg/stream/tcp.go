package stream

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/iocafe/iocom-go/pkg/iocstatus"
)

// tcpStream wraps a net.Conn, translating would-block semantics: a short
// read/write deadline is set on every call so a single-threaded tick
// loop can poll the stream without a dedicated goroutine per connection.
type tcpStream struct {
	conn     net.Conn
	deadline time.Duration
}

// NewTCP wraps an already-accepted or already-dialed net.Conn.
func NewTCP(conn net.Conn, pollDeadline time.Duration) Stream {
	return &tcpStream{conn: conn, deadline: pollDeadline}
}

func (s *tcpStream) Kind() Kind { return KindTCP }

func (s *tcpStream) Close() error { return s.conn.Close() }

func (s *tcpStream) RemoteAddr() string { return s.conn.RemoteAddr().String() }

func (s *tcpStream) Read(ctx context.Context, p []byte) (int, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.deadline))
	n, err := s.conn.Read(p)
	if err != nil {
		return n, translateNetErr(err)
	}
	return n, nil
}

func (s *tcpStream) Write(ctx context.Context, p []byte) (int, error) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.deadline))
	n, err := s.conn.Write(p)
	if err != nil {
		return n, translateNetErr(err)
	}
	return n, nil
}

func (s *tcpStream) Flush(ctx context.Context) error { return nil }

func translateNetErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return iocstatus.ErrPending
	}
	if errors.Is(err, net.ErrClosed) {
		return iocstatus.ErrStreamClosed
	}
	return err
}

// tcpListener wraps a net.Listener with the same poll-deadline translation.
type tcpListener struct {
	ln       net.Listener
	deadline time.Duration
}

// ListenTCP opens a TCP listener on addr (e.g. ":8217") for an End point.
func ListenTCP(addr string, pollDeadline time.Duration) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{ln: ln, deadline: pollDeadline}, nil
}

func (l *tcpListener) Close() error { return l.ln.Close() }
func (l *tcpListener) Addr() string { return l.ln.Addr().String() }

func (l *tcpListener) Accept(ctx context.Context) (Stream, error) {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	if d, ok := l.ln.(deadliner); ok {
		_ = d.SetDeadline(time.Now().Add(l.deadline))
	}
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, translateNetErr(err)
	}
	return NewTCP(conn, l.deadline), nil
}
