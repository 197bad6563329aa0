//go:build !linux

package stream

import (
	"time"

	"github.com/iocafe/iocom-go/pkg/iocstatus"
)

// BaudRate mirrors the Linux build's termios speed selection so callers
// compile on every platform; only Linux hosts can actually open a port.
type BaudRate uint32

const (
	Baud9600 BaudRate = iota
	Baud19200
	Baud38400
	Baud57600
	Baud115200
)

// OpenSerial is unavailable off Linux.
func OpenSerial(path string, baud BaudRate, pollDeadline time.Duration) (Stream, error) {
	return nil, iocstatus.ErrNotSupported
}
