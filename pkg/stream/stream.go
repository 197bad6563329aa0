// Package stream defines the capability-set abstraction the connection
// state machine drives, plus concrete
// transports: TCP/TLS sockets (tcp.go, tls.go) and a termios-configured
// serial port (serial.go).
package stream

import (
	"context"
	"io"
)

// Kind names the transport a Stream implements, matching internal/wire's
// Transport so frame encoding picks the right header width.
type Kind int

const (
	KindSerial Kind = iota
	KindTCP
	KindTLS
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindTCP:
		return "tcp_socket"
	case KindTLS:
		return "tls_socket"
	default:
		return "unknown"
	}
}

// Stream is the capability set a Connection needs: non-blocking-friendly
// read/write with a context for cancellation, and flush/close. Accept is a
// separate, narrower interface (Listener) since only end points need it.
type Stream interface {
	io.Closer
	Kind() Kind
	// Read returns iocstatus.ErrPending if no data is currently available
	// rather than blocking, so a single-threaded tick loop can poll it.
	Read(ctx context.Context, p []byte) (int, error)
	Write(ctx context.Context, p []byte) (int, error)
	Flush(ctx context.Context) error
	RemoteAddr() string
}

// Listener accepts new streams for an End point.
type Listener interface {
	io.Closer
	// Accept returns iocstatus.ErrPending if no connection is waiting.
	Accept(ctx context.Context) (Stream, error)
	Addr() string
}
