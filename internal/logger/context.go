package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds connection-scoped logging context
type LogContext struct {
	TraceID     string    // OpenTelemetry trace ID
	SpanID      string    // OpenTelemetry span ID
	ConnID      string    // connection instance id (uuid)
	NetworkName string    // logical network name
	DeviceName  string    // remote device name, once known
	DeviceNr    uint32    // remote device nr, once known
	RemoteAddr  string    // peer address (socket) or port path (serial)
	Transport   string    // "serial", "tcp_socket", "tls_socket"
	State       string    // connection state machine state
	StartTime   time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a freshly opened connection.
func NewLogContext(connID, transport, remoteAddr string) *LogContext {
	return &LogContext{
		ConnID:     connID,
		Transport:  transport,
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithNetwork returns a copy with the network name set
func (lc *LogContext) WithNetwork(networkName string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.NetworkName = networkName
	}
	return clone
}

// WithDevice returns a copy with the remote device identity set
func (lc *LogContext) WithDevice(deviceName string, deviceNr uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.DeviceName = deviceName
		clone.DeviceNr = deviceNr
	}
	return clone
}

// WithState returns a copy with the connection state set
func (lc *LogContext) WithState(state string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.State = state
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
