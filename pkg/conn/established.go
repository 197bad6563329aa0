package conn

import (
	"context"
	"errors"

	"github.com/iocafe/iocom-go/internal/wire"
	"github.com/iocafe/iocom-go/pkg/iocstatus"
	"github.com/iocafe/iocom-go/pkg/mblk"
)

// tickEstablished runs the six-step Established loop: read and
// dispatch one frame, update receive-side flow control, fill frame_out
// from whatever has priority, drain it to the stream, send a keepalive ACK
// if the link has been quiet too long, and fail the connection if the peer
// has gone silent past its timeout.
func (c *Connection) tickEstablished(ctx context.Context) error {
	if err := c.fillIn(ctx); err != nil {
		return err
	}
	if err := c.readAndDispatch(); err != nil {
		return err
	}

	if len(c.outBuf) == 0 {
		c.fillOutgoing()
	}

	if err := c.drainOut(ctx); err != nil {
		return err
	}

	if c.now().Sub(c.lastSend) >= KeepaliveInterval(c.Transport) {
		c.sendAck()
		if err := c.drainOut(ctx); err != nil {
			return err
		}
	}

	if !c.lastReceive.IsZero() && c.now().Sub(c.lastReceive) >= Timeout(c.Transport) {
		return c.fail(iocstatus.ErrConnectionReset)
	}
	return nil
}

// readAndDispatch consumes at most one complete frame from inBuf and acts
// on it; an incomplete frame is left in inBuf for the next tick.
func (c *Connection) readAndDispatch() error {
	if len(c.inBuf) == 0 {
		return nil
	}
	header, payload, n, err := wire.Decode(c.inBuf, c.wireXport)
	if err != nil {
		if errors.Is(err, iocstatus.ErrPending) {
			return nil
		}
		return c.fail(err)
	}

	if c.wireXport.IsSerial() {
		if c.haveFrameNrIn {
			if err := wire.CheckFrameNr(c.frameNrIn, header.FrameNr); err != nil {
				return c.fail(err)
			}
		}
		c.frameNrIn = header.FrameNr
		c.haveFrameNrIn = true
	}

	c.inBuf = c.inBuf[n:]
	c.Flow.OnDataReceived(uint16(n))
	c.Flow.OnFrameFromPeer()

	if header.Flags.Has(wire.FlagSystemFrame) {
		return c.dispatchSystemFrame(header, payload)
	}
	return c.dispatchDataFrame(header, payload)
}

func (c *Connection) dispatchSystemFrame(header wire.Header, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	switch wire.SystemFrameType(payload[0]) {
	case wire.SysAcknowledge:
		val, err := wire.DecodeAck(payload)
		if err != nil {
			return c.fail(err)
		}
		c.Flow.OnAckReceived(val)
	case wire.SysMblkInfo:
		m, err := wire.DecodeMbinfo(payload)
		if err != nil {
			return c.fail(err)
		}
		if c.OnMbinfo != nil {
			c.OnMbinfo(c, header.MblkID, m)
		}
	case wire.SysRemoveMblkRequest:
		id, err := wire.DecodeRemoveMblk(payload)
		if err != nil {
			return c.fail(err)
		}
		c.detachSourceByRemoteID(id)
	}
	return nil
}

func (c *Connection) dispatchDataFrame(header wire.Header, payload []byte) error {
	localID, ok := c.remoteToLocalTarget[header.MblkID]
	if !ok {
		return nil // unknown block: peer sent data for something we never attached
	}
	tb, ok := c.registry.TargetBuf(localID)
	if !ok {
		return nil
	}
	block, ok := c.registry.Block(tb.BlockID)
	if !ok {
		return nil
	}

	rawLen := header.DataSz
	if header.Flags.Has(wire.FlagCompressed) {
		n, err := wire.DecodedLen(payload)
		if err != nil {
			return c.fail(err)
		}
		rawLen = n
	}

	delta := header.Flags.Has(wire.FlagDeltaEncoded)
	compressed := header.Flags.Has(wire.FlagCompressed)
	syncComplete := header.Flags.Has(wire.FlagSyncComplete)
	var err error
	c.registry.WithLock(func() {
		err = tb.ApplyFrame(block, header.Addr, payload, compressed, delta, syncComplete, rawLen)
		if err == nil && tb.HasPendingSync() {
			tb.Promote(block)
		}
	})
	if err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Connection) detachSourceByRemoteID(remoteMblkID uint32) {
	for _, id := range c.sourceIDs {
		sb, ok := c.registry.SourceBuf(id)
		if ok && sb.RemoteMblkID == remoteMblkID {
			c.registry.DetachSource(id)
			c.sourceIDs = removeID(c.sourceIDs, id)
			return
		}
	}
}

func removeID(ids []uint32, id uint32) []uint32 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// fillOutgoing stages the next frame into outBuf, trying each source of
// outbound work in priority order: a due ACK, a queued
// mbinfo announcement, a data frame from the round-robin source cursor,
// then a queued remove-mblk request.
func (c *Connection) fillOutgoing() {
	if c.Flow.AckDue() && c.Flow.CanSendAck() {
		c.sendAck()
		return
	}
	if len(c.mbinfoQueue) > 0 {
		q := c.mbinfoQueue[0]
		c.mbinfoQueue = c.mbinfoQueue[1:]
		c.appendSystemFrame(byte(wire.SysMblkInfo), wire.EncodeMbinfo(q.frame), q.mblkID, 0)
		return
	}
	if c.fillFromSourceCursor() {
		return
	}
	if len(c.removeQueue) > 0 {
		req := c.removeQueue[0]
		c.removeQueue = c.removeQueue[1:]
		c.appendSystemFrame(byte(wire.SysRemoveMblkRequest), wire.EncodeRemoveMblk(req.remoteMblkID), 0, 0)
	}
}

// fillFromSourceCursor tries each attached source buffer starting from the
// round-robin cursor, advancing it every call so no single busy block can
// starve its siblings.
func (c *Connection) fillFromSourceCursor() bool {
	n := len(c.sourceIDs)
	if n == 0 {
		return false
	}
	credit := c.Flow.CreditBytes()
	for i := 0; i < n; i++ {
		idx := (c.rrCursor + i) % n
		id := c.sourceIDs[idx]
		sb, ok := c.registry.SourceBuf(id)
		if !ok {
			continue
		}
		block, ok := c.registry.Block(sb.BlockID)
		if !ok {
			continue
		}
		var built mblk.BuiltFrame
		var err error
		c.registry.WithLock(func() {
			built, err = sb.BuildFrame(block, c.wireXport, credit, c.cfg.MaxChunk)
		})
		if err != nil {
			continue // ErrNothingToDo or ErrPending: try the next source
		}
		c.rrCursor = (idx + 1) % n
		c.appendDataFrame(sb.RemoteMblkID, built)
		return true
	}
	return false
}

func (c *Connection) appendDataFrame(remoteMblkID uint32, built mblk.BuiltFrame) {
	c.frameNrOut = wire.NextFrameNr(c.frameNrOut)
	opts := wire.EncodeOpts{
		Transport:    c.wireXport,
		FrameNr:      c.frameNrOut,
		Compressed:   built.Compressed,
		Delta:        built.Delta,
		SyncComplete: built.SyncComplete,
		MblkID:       remoteMblkID,
		Addr:         built.Addr,
	}
	frame, err := wire.Encode(opts, built.Payload)
	if err != nil {
		return
	}
	c.outBuf = append(c.outBuf, frame...)
	c.Flow.OnSent(uint16(len(frame)))
}

func (c *Connection) sendAck() {
	payload := wire.EncodeAck(c.Flow.AckValue())
	c.appendSystemFrame(byte(wire.SysAcknowledge), payload, 0, 0)
	c.Flow.MarkAckSent()
}

func (c *Connection) appendSystemFrame(_ byte, payload []byte, mblkID, addr uint32) {
	c.frameNrOut = wire.NextFrameNr(c.frameNrOut)
	opts := wire.EncodeOpts{
		Transport: c.wireXport,
		FrameNr:   c.frameNrOut,
		System:    true,
		MblkID:    mblkID,
		Addr:      addr,
	}
	frame, err := wire.Encode(opts, payload)
	if err != nil {
		return
	}
	c.outBuf = append(c.outBuf, frame...)
	c.Flow.OnSent(uint16(len(frame)))
}
