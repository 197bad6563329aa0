// Package iocstatus defines the closed set of status kinds the fabric
// surfaces to callers, plus sentinel errors so call sites can both
// errors.Is against a specific condition and, where only the broad
// category matters, switch on Code().
package iocstatus

import "errors"

// Kind is one of the status kinds a core operation can report.
type Kind int

const (
	Success Kind = iota
	Pending
	NothingToDo
	Completed
	Failed
	MemoryAllocation
	ChecksumError
	StreamClosed
	ConnectionRefused
	ConnectionReset
	NotConnected
	ServerCertRejected
	OutOfBuffer
	NotSupported
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Pending:
		return "pending"
	case NothingToDo:
		return "nothing_to_do"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case MemoryAllocation:
		return "memory_allocation"
	case ChecksumError:
		return "checksum_error"
	case StreamClosed:
		return "stream_closed"
	case ConnectionRefused:
		return "connection_refused"
	case ConnectionReset:
		return "connection_reset"
	case NotConnected:
		return "not_connected"
	case ServerCertRejected:
		return "server_cert_rejected"
	case OutOfBuffer:
		return "out_of_buffer"
	case NotSupported:
		return "not_supported"
	default:
		return "unknown"
	}
}

// statusError pairs a sentinel error with its taxonomy kind.
type statusError struct {
	kind Kind
	msg  string
}

func (e *statusError) Error() string { return e.msg }

// Code returns the taxonomy kind carried by err, or Failed if err does not
// originate from this package (e.g. a wrapped stream I/O error).
func Code(err error) Kind {
	var se *statusError
	if errors.As(err, &se) {
		return se.kind
	}
	if err == nil {
		return Success
	}
	return Failed
}

// Sentinel errors for the closed status taxonomy. Core APIs
// return these (possibly wrapped) rather than ad-hoc error strings so
// callers can errors.Is against a specific condition.
var (
	// ErrPending indicates a transient would-block condition (stream read/
	// write/accept). No state changed; retry on the next tick.
	ErrPending = &statusError{Pending, "operation would block, retry"}

	// ErrNothingToDo indicates the call found no work to perform (no changed
	// range, no pending mbinfo, empty remove-mblk queue).
	ErrNothingToDo = &statusError{NothingToDo, "nothing to do"}

	// ErrMemoryAllocation indicates a buffer or structure could not be
	// allocated. Fatal for block creation; connection-scoped otherwise.
	ErrMemoryAllocation = &statusError{MemoryAllocation, "memory allocation failed"}

	// ErrChecksumError indicates a serial frame's checksum did not match.
	ErrChecksumError = &statusError{ChecksumError, "checksum mismatch"}

	// ErrStreamClosed indicates the underlying stream reported closed/EOF.
	ErrStreamClosed = &statusError{StreamClosed, "stream closed"}

	// ErrConnectionRefused indicates the peer refused the connection attempt.
	ErrConnectionRefused = &statusError{ConnectionRefused, "connection refused"}

	// ErrConnectionReset indicates the peer reset the connection mid-stream.
	ErrConnectionReset = &statusError{ConnectionReset, "connection reset"}

	// ErrNotConnected indicates an operation was attempted on a connection
	// that is not in the Established state.
	ErrNotConnected = &statusError{NotConnected, "not connected"}

	// ErrServerCertRejected indicates the peer's trust certificate failed
	// verification during the pre-protocol handshake.
	ErrServerCertRejected = &statusError{ServerCertRejected, "server certificate rejected"}

	// ErrOutOfBuffer indicates a frame or snapshot did not fit the available
	// buffer (frame_sz, sync.buf capacity).
	ErrOutOfBuffer = &statusError{OutOfBuffer, "out of buffer space"}

	// ErrNotSupported indicates the requested capability is not implemented
	// by this stream/transport or build configuration.
	ErrNotSupported = &statusError{NotSupported, "not supported"}

	// ErrFrameNrGap indicates a serial frame's frame_nr was not prev+1 mod
	// MAX; the connection is fatal.
	ErrFrameNrGap = &statusError{Failed, "frame number gap"}

	// ErrAuthFailed indicates the authentication frame was rejected
	// (network name mismatch, bad password, bad unique id).
	ErrAuthFailed = &statusError{Failed, "authentication failed"}

	// ErrHandshakeFailed indicates the pre-protocol handshake did not reach
	// a terminal success state.
	ErrHandshakeFailed = &statusError{Failed, "handshake failed"}
)

// New constructs a statusError of the given kind with a custom message, for
// call sites that need a kind outside the fixed sentinel set above (rare;
// prefer the sentinels).
func New(kind Kind, msg string) error {
	return &statusError{kind, msg}
}
