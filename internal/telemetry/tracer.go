package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for iocom fabric spans, following OpenTelemetry
// semantic-convention style (dotted namespaces).
const (
	// ========================================================================
	// Connection / transport attributes
	// ========================================================================
	AttrConnID      = "iocom.conn_id"
	AttrTransport   = "iocom.transport" // serial, tcp_socket, tls_socket
	AttrRole        = "iocom.role"      // initiator, accepted_by_end_point
	AttrRemoteAddr  = "iocom.remote_addr"
	AttrNetworkName = "iocom.network"
	AttrDeviceName  = "iocom.device"
	AttrDeviceNr    = "iocom.device_nr"

	// ========================================================================
	// Memory block / signal attributes
	// ========================================================================
	AttrMblkID    = "iocom.mblk_id"
	AttrMblkName  = "iocom.mblk_name"
	AttrRemoteID  = "iocom.remote_mblk_id"
	AttrAddr      = "iocom.addr"
	AttrLen       = "iocom.len"

	// ========================================================================
	// Frame / flow control attributes
	// ========================================================================
	AttrFrameNr     = "iocom.frame_nr"
	AttrFrameBytes  = "iocom.frame_bytes"
	AttrCompressed  = "iocom.compressed"
	AttrDelta       = "iocom.delta_encoded"
	AttrSyncDone    = "iocom.sync_complete"
	AttrBytesSent   = "iocom.bytes_sent"
	AttrBytesAcked  = "iocom.bytes_acknowledged"
	AttrCredit      = "iocom.credit"

	// ========================================================================
	// Authentication attributes
	// ========================================================================
	AttrUsername = "iocom.user_name"
	AttrAuthFlavor = "iocom.auth_flavor" // "password", "jwt"
)

// Span names for fabric operations, namespaced by component.
const (
	SpanHandshake     = "iocom.handshake"
	SpanAuthenticate  = "iocom.authenticate"
	SpanFrameSend     = "iocom.frame.send"
	SpanFrameReceive  = "iocom.frame.receive"
	SpanMblkSync      = "iocom.mblk.sync"
	SpanDiscoverInfo  = "iocom.discovery.infoblock"
	SpanConnLifecycle = "iocom.connection"
)

// ConnID returns an attribute for the connection instance id.
func ConnID(id string) attribute.KeyValue { return attribute.String(AttrConnID, id) }

// Transport returns an attribute for the transport kind.
func Transport(t string) attribute.KeyValue { return attribute.String(AttrTransport, t) }

// Role returns an attribute for the connection role.
func Role(r string) attribute.KeyValue { return attribute.String(AttrRole, r) }

// RemoteAddr returns an attribute for the peer address.
func RemoteAddr(addr string) attribute.KeyValue { return attribute.String(AttrRemoteAddr, addr) }

// NetworkName returns an attribute for the logical network name.
func NetworkName(name string) attribute.KeyValue { return attribute.String(AttrNetworkName, name) }

// DeviceName returns an attribute for the remote device name.
func DeviceName(name string) attribute.KeyValue { return attribute.String(AttrDeviceName, name) }

// DeviceNr returns an attribute for the remote device number.
func DeviceNr(nr uint32) attribute.KeyValue { return attribute.Int64(AttrDeviceNr, int64(nr)) }

// MblkID returns an attribute for a local memory-block id.
func MblkID(id uint32) attribute.KeyValue { return attribute.Int64(AttrMblkID, int64(id)) }

// MblkName returns an attribute for a memory-block name.
func MblkName(name string) attribute.KeyValue { return attribute.String(AttrMblkName, name) }

// RemoteID returns an attribute for the remote-side memory-block id.
func RemoteID(id uint32) attribute.KeyValue { return attribute.Int64(AttrRemoteID, int64(id)) }

// Addr returns an attribute for a byte address within a block.
func Addr(addr uint32) attribute.KeyValue { return attribute.Int64(AttrAddr, int64(addr)) }

// Len returns an attribute for a byte range length.
func Len(n int) attribute.KeyValue { return attribute.Int(AttrLen, n) }

// FrameNr returns an attribute for the serial frame counter.
func FrameNr(nr int) attribute.KeyValue { return attribute.Int(AttrFrameNr, nr) }

// FrameBytes returns an attribute for the encoded frame size.
func FrameBytes(n int) attribute.KeyValue { return attribute.Int(AttrFrameBytes, n) }

// Compressed returns an attribute for the COMPRESSED flag.
func Compressed(c bool) attribute.KeyValue { return attribute.Bool(AttrCompressed, c) }

// Delta returns an attribute for the DELTA_ENCODED flag.
func Delta(d bool) attribute.KeyValue { return attribute.Bool(AttrDelta, d) }

// SyncDone returns an attribute for the SYNC_COMPLETE flag.
func SyncDone(d bool) attribute.KeyValue { return attribute.Bool(AttrSyncDone, d) }

// BytesSent returns an attribute for the bytes_sent counter.
func BytesSent(n uint32) attribute.KeyValue { return attribute.Int64(AttrBytesSent, int64(n)) }

// BytesAcked returns an attribute for the bytes_acknowledged counter.
func BytesAcked(n uint32) attribute.KeyValue { return attribute.Int64(AttrBytesAcked, int64(n)) }

// Credit returns an attribute for remaining send credit.
func Credit(n int) attribute.KeyValue { return attribute.Int(AttrCredit, n) }

// Username returns an attribute for the authenticating user name.
func Username(name string) attribute.KeyValue { return attribute.String(AttrUsername, name) }

// AuthFlavor returns an attribute for the authentication flavor used.
func AuthFlavor(flavor string) attribute.KeyValue { return attribute.String(AttrAuthFlavor, flavor) }

// StartHandshakeSpan starts a span covering the pre-protocol handshake.
func StartHandshakeSpan(ctx context.Context, connID, transport string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{ConnID(connID), Transport(transport)}, attrs...)
	return StartSpan(ctx, SpanHandshake, trace.WithAttributes(allAttrs...))
}

// StartAuthSpan starts a span covering authentication-frame exchange.
func StartAuthSpan(ctx context.Context, connID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{ConnID(connID)}, attrs...)
	return StartSpan(ctx, SpanAuthenticate, trace.WithAttributes(allAttrs...))
}

// StartFrameSendSpan starts a span covering one outgoing frame.
func StartFrameSendSpan(ctx context.Context, connID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{ConnID(connID)}, attrs...)
	return StartSpan(ctx, SpanFrameSend, trace.WithAttributes(allAttrs...))
}

// StartFrameReceiveSpan starts a span covering one incoming frame.
func StartFrameReceiveSpan(ctx context.Context, connID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{ConnID(connID)}, attrs...)
	return StartSpan(ctx, SpanFrameReceive, trace.WithAttributes(allAttrs...))
}

// StartMblkSyncSpan starts a span covering a memory-block sync-complete promotion.
func StartMblkSyncSpan(ctx context.Context, mblkName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{MblkName(mblkName)}, attrs...)
	return StartSpan(ctx, SpanMblkSync, trace.WithAttributes(allAttrs...))
}
