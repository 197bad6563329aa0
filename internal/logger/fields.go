package logger

import (
	"encoding/hex"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying across serial, TCP, and TLS transports alike.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Network / device identity
	// ========================================================================
	KeyNetwork   = "network"     // logical network name
	KeyDevice    = "device"      // remote device name
	KeyDeviceNr  = "device_nr"   // remote device number
	KeyTransport = "transport"   // serial, tcp_socket, tls_socket
	KeyRemote    = "remote_addr" // peer address or serial port path

	// ========================================================================
	// Connection state machine
	// ========================================================================
	KeyConnID = "conn_id" // connection instance id
	KeyState  = "state"   // connection state machine state
	KeyRole   = "role"    // initiator, accepted_by_end_point

	// ========================================================================
	// Memory blocks / signals
	// ========================================================================
	KeyMblkID   = "mblk_id"   // local memory-block id
	KeyMblkName = "mblk_name" // memory-block name
	KeyRemoteID = "remote_id" // remote-side memory-block id
	KeyAddr     = "addr"      // byte address within a block
	KeyLen      = "len"       // byte length of a range
	KeySignal   = "signal"    // dynamic signal name
	KeyHandle   = "handle"    // opaque binary handle, hex-encoded

	// ========================================================================
	// Frames / flow control
	// ========================================================================
	KeyFrameNr    = "frame_nr"    // serial frame counter
	KeyFrameBytes = "frame_bytes" // encoded frame size
	KeyCompressed = "compressed"  // whether COMPRESSED flag was set
	KeyDelta      = "delta"       // whether DELTA_ENCODED flag was set
	KeySyncDone   = "sync_done"   // whether SYNC_COMPLETE flag was set
	KeyBytesSent  = "bytes_sent"
	KeyBytesAcked = "bytes_acked"
	KeyCredit     = "credit"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyAttempt    = "attempt"
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Network returns a slog.Attr for the logical network name
func Network(name string) slog.Attr { return slog.String(KeyNetwork, name) }

// Device returns a slog.Attr for the remote device name
func Device(name string) slog.Attr { return slog.String(KeyDevice, name) }

// DeviceNr returns a slog.Attr for the remote device number
func DeviceNr(nr uint32) slog.Attr { return slog.Any(KeyDeviceNr, nr) }

// Transport returns a slog.Attr for the transport kind
func Transport(t string) slog.Attr { return slog.String(KeyTransport, t) }

// Remote returns a slog.Attr for the peer address
func Remote(addr string) slog.Attr { return slog.String(KeyRemote, addr) }

// ConnID returns a slog.Attr for the connection instance id
func ConnID(id string) slog.Attr { return slog.String(KeyConnID, id) }

// State returns a slog.Attr for the connection state
func State(s string) slog.Attr { return slog.String(KeyState, s) }

// Role returns a slog.Attr for the connection role
func Role(r string) slog.Attr { return slog.String(KeyRole, r) }

// MblkID returns a slog.Attr for a local memory-block id
func MblkID(id uint32) slog.Attr { return slog.Any(KeyMblkID, id) }

// MblkName returns a slog.Attr for a memory-block name
func MblkName(name string) slog.Attr { return slog.String(KeyMblkName, name) }

// RemoteID returns a slog.Attr for the remote-side memory-block id
func RemoteID(id uint32) slog.Attr { return slog.Any(KeyRemoteID, id) }

// Addr returns a slog.Attr for a byte address within a block
func Addr(addr uint32) slog.Attr { return slog.Any(KeyAddr, addr) }

// Len returns a slog.Attr for a byte range length
func Len(n int) slog.Attr { return slog.Int(KeyLen, n) }

// Signal returns a slog.Attr for a dynamic signal name
func Signal(name string) slog.Attr { return slog.String(KeySignal, name) }

// Handle returns a slog.Attr for an opaque binary handle, formatted as hex
func Handle(h []byte) slog.Attr { return slog.String(KeyHandle, hex.EncodeToString(h)) }

// FrameNr returns a slog.Attr for the serial frame counter
func FrameNr(nr int) slog.Attr { return slog.Int(KeyFrameNr, nr) }

// FrameBytes returns a slog.Attr for the encoded frame size
func FrameBytes(n int) slog.Attr { return slog.Int(KeyFrameBytes, n) }

// Compressed returns a slog.Attr for the COMPRESSED flag
func Compressed(c bool) slog.Attr { return slog.Bool(KeyCompressed, c) }

// Delta returns a slog.Attr for the DELTA_ENCODED flag
func Delta(d bool) slog.Attr { return slog.Bool(KeyDelta, d) }

// SyncDone returns a slog.Attr for the SYNC_COMPLETE flag
func SyncDone(d bool) slog.Attr { return slog.Bool(KeySyncDone, d) }

// BytesSent returns a slog.Attr for the connection's bytes_sent counter
func BytesSent(n uint32) slog.Attr { return slog.Any(KeyBytesSent, n) }

// BytesAcked returns a slog.Attr for the connection's bytes_acknowledged counter
func BytesAcked(n uint32) slog.Attr { return slog.Any(KeyBytesAcked, n) }

// Credit returns a slog.Attr for remaining send credit
func Credit(n int) slog.Attr { return slog.Int(KeyCredit, n) }

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric/symbolic error code
func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }
