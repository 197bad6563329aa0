//go:build linux

package stream

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/iocafe/iocom-go/pkg/iocstatus"
)

// serialStream opens a raw serial device via termios, the idiomatic
// cgo-free way to configure baud rate and raw mode on Linux.
type serialStream struct {
	f        *os.File
	fd       int
	deadline time.Duration
}

// BaudRate enumerates the termios speed constants this package supports;
// callers pick one matching their hardware rather than passing a raw
// integer, since not every baud rate maps to a unix.B* constant.
type BaudRate uint32

const (
	Baud9600   BaudRate = unix.B9600
	Baud19200  BaudRate = unix.B19200
	Baud38400  BaudRate = unix.B38400
	Baud57600  BaudRate = unix.B57600
	Baud115200 BaudRate = unix.B115200
)

// OpenSerial opens path (e.g. "/dev/ttyUSB0") and configures it for raw,
// 8N1 operation at baud via unix.IoctlSetTermios.
func OpenSerial(path string, baud BaudRate, pollDeadline time.Duration) (Stream, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("stream: open serial %s: %w", path, err)
	}
	fd := int(f.Fd())

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: get termios: %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD | uint32(baud)
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: set termios: %w", err)
	}

	return &serialStream{f: f, fd: fd, deadline: pollDeadline}, nil
}

func (s *serialStream) Kind() Kind       { return KindSerial }
func (s *serialStream) Close() error     { return s.f.Close() }
func (s *serialStream) RemoteAddr() string {
	return s.f.Name()
}

func (s *serialStream) Read(ctx context.Context, p []byte) (int, error) {
	_ = s.f.SetReadDeadline(time.Now().Add(s.deadline))
	n, err := s.f.Read(p)
	if err != nil {
		if os.IsTimeout(err) {
			return n, iocstatus.ErrPending
		}
		return n, err
	}
	if n == 0 {
		return 0, iocstatus.ErrPending
	}
	return n, nil
}

func (s *serialStream) Write(ctx context.Context, p []byte) (int, error) {
	_ = s.f.SetWriteDeadline(time.Now().Add(s.deadline))
	n, err := s.f.Write(p)
	if err != nil && os.IsTimeout(err) {
		return n, iocstatus.ErrPending
	}
	return n, err
}

// Flush drains the kernel's transmit buffer: TCSETSW blocks until
// pending output has been transmitted before applying the (unchanged)
// termios settings, which is the portable way to force a drain without a
// dedicated TCDRAIN ioctl number.
func (s *serialStream) Flush(ctx context.Context) error {
	t, err := unix.IoctlGetTermios(s.fd, unix.TCGETS)
	if err != nil {
		return err
	}
	return unix.IoctlSetTermios(s.fd, unix.TCSETSW, t)
}
