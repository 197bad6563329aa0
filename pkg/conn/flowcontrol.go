package conn

// FlowControl tracks the sliding-window byte counters used for
// one connection: bytes_sent/bytes_acknowledged bound how much a sender may
// have in flight, bytes_received/processed_bytes decide when a receiver
// owes the peer an ACKNOWLEDGE. All four counters are 16-bit and wrap; Go's
// native uint16 subtraction already computes the correct distance modulo
// 2^16 as long as the window never exceeds half that span, exactly like a
// TCP sequence number.
type FlowControl struct {
	MaxInAir            uint16
	MaxAckInAir         uint16
	UnacknowledgedLimit uint16

	bytesSent         uint16
	bytesAcknowledged uint16
	bytesReceived     uint16
	processedBytes    uint16

	ackFramesInAir uint16
}

// NewFlowControl builds a FlowControl with the connection's negotiated
// credit limits.
func NewFlowControl(maxInAir, maxAckInAir, unackLimit uint16) *FlowControl {
	return &FlowControl{MaxInAir: maxInAir, MaxAckInAir: maxAckInAir, UnacknowledgedLimit: unackLimit}
}

// InAir returns the number of bytes sent but not yet acknowledged.
func (f *FlowControl) InAir() uint16 { return f.bytesSent - f.bytesAcknowledged }

// CreditBytes returns how many more payload+header bytes the sender may
// emit before exceeding max_in_air.
func (f *FlowControl) CreditBytes() int {
	inAir := f.InAir()
	if inAir >= f.MaxInAir {
		return 0
	}
	return int(f.MaxInAir - inAir)
}

// OnSent records n bytes placed on the wire.
func (f *FlowControl) OnSent(n uint16) { f.bytesSent += n }

// OnAckReceived applies the peer's bytes_received value carried by an
// ACKNOWLEDGE system frame to bytes_acknowledged.
func (f *FlowControl) OnAckReceived(peerBytesReceived uint16) {
	f.bytesAcknowledged = peerBytesReceived
}

// OnDataReceived records an n-byte frame, header included, read off the
// wire.
func (f *FlowControl) OnDataReceived(n uint16) { f.bytesReceived += n }

// Unacknowledged returns how many received bytes have not yet been
// reported back to the peer via an ACKNOWLEDGE.
func (f *FlowControl) Unacknowledged() uint16 { return f.bytesReceived - f.processedBytes }

// AckDue reports whether the receiver owes the peer an ACKNOWLEDGE because
// unacknowledged bytes reached unacknowledged_limit.
func (f *FlowControl) AckDue() bool { return f.Unacknowledged() >= f.UnacknowledgedLimit }

// CanSendAck reports whether max_ack_in_air headroom allows emitting
// another ACKNOWLEDGE frame right now.
func (f *FlowControl) CanSendAck() bool { return f.ackFramesInAir < f.MaxAckInAir }

// AckValue returns the bytes_received counter to carry in the next
// ACKNOWLEDGE frame.
func (f *FlowControl) AckValue() uint16 { return f.bytesReceived }

// MarkAckSent commits processed_bytes up to bytes_received and counts the
// frame against the in-flight ack budget.
func (f *FlowControl) MarkAckSent() {
	f.processedBytes = f.bytesReceived
	f.ackFramesInAir++
}

// OnFrameFromPeer clears the in-flight ack counter: any further traffic
// from the peer proves earlier ACKs got through.
func (f *FlowControl) OnFrameFromPeer() { f.ackFramesInAir = 0 }
