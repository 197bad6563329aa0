package stream

import (
	"context"
	"crypto/tls"
	"time"
)

// tlsStream is a tcpStream whose underlying net.Conn happens to be a
// *tls.Conn; the poll-deadline translation is identical, so this embeds
// tcpStream and only overrides Kind.
type tlsStream struct {
	tcpStream
}

// NewTLS wraps an already-handshaked *tls.Conn (client dial or server
// accept). The transport uses stdlib crypto/tls.
func NewTLS(conn *tls.Conn, pollDeadline time.Duration) Stream {
	return &tlsStream{tcpStream{conn: conn, deadline: pollDeadline}}
}

func (s *tlsStream) Kind() Kind { return KindTLS }

// DialTLS dials addr and performs the TLS handshake, returning a Stream
// ready for the pre-protocol handshake layer above it.
func DialTLS(ctx context.Context, addr string, cfg *tls.Config, pollDeadline time.Duration) (Stream, error) {
	d := tls.Dialer{Config: cfg}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTLS(conn.(*tls.Conn), pollDeadline), nil
}

// tlsListener wraps tls.Listen with the tcpListener's accept/deadline
// translation, producing tlsStream values instead of tcpStream ones.
type tlsListener struct {
	tcpListener
}

// ListenTLS opens a TLS listener on addr for an End point.
func ListenTLS(addr string, cfg *tls.Config, pollDeadline time.Duration) (Listener, error) {
	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, err
	}
	return &tlsListener{tcpListener{ln: ln, deadline: pollDeadline}}, nil
}

func (l *tlsListener) Accept(ctx context.Context) (Stream, error) {
	s, err := l.tcpListener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	ts := s.(*tcpStream)
	return &tlsStream{*ts}, nil
}
