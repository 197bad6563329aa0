package conn

import (
	"time"

	"github.com/iocafe/iocom-go/pkg/stream"
)

// KeepaliveInterval returns how long a connection may go without sending
// anything before it must emit a bare ACK to prove it is alive. Serial
// links keepalive far more aggressively than sockets since a wedged
// microcontroller link is cheap to detect and expensive to leave hanging.
func KeepaliveInterval(k stream.Kind) time.Duration {
	if k == stream.KindSerial {
		return 3 * time.Second
	}
	return 20 * time.Second
}

// Timeout returns how long a connection may go without receiving anything
// before it is declared Failed: three keepalive intervals, enough margin
// that one lost keepalive doesn't trip it.
func Timeout(k stream.Kind) time.Duration {
	return 3 * KeepaliveInterval(k)
}
