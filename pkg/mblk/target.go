package mblk

import (
	"github.com/iocafe/iocom-go/internal/bitrange"
	"github.com/iocafe/iocom-go/internal/wire"
)

// TargetBuf is the per-(block, incoming connection) inbound mirror. It
// assembles decompressed updates into a shadow buffer and,
// once a frame arrives with SyncComplete set, promotes the shadow into the
// owning block and fires receive callbacks.
type TargetBuf struct {
	ID           uint32
	BlockID      uint32
	RemoteMblkID uint32

	syncBuf []byte

	newData  bitrange.Range
	bufUsed  bool

	// received tracks, for Bidirectional blocks, exactly which bytes the
	// last update touched, so the block can echo only those bytes to its
	// other connections.
	received *bitrange.Bitmap
}

// NewTargetBuf allocates a target buffer with a shadow sized to the
// block's current byte count.
func NewTargetBuf(id, blockID, remoteMblkID uint32, nbytes int, bidirectional bool) *TargetBuf {
	t := &TargetBuf{ID: id, BlockID: blockID, RemoteMblkID: remoteMblkID, syncBuf: make([]byte, nbytes)}
	if bidirectional {
		t.received = bitrange.NewBitmap(nbytes)
	}
	return t
}

// Resize grows the shadow buffer to match a resized owning block
// (AllowResize path).
func (t *TargetBuf) Resize(newSize int) {
	if newSize <= len(t.syncBuf) {
		return
	}
	grown := make([]byte, newSize)
	copy(grown, t.syncBuf)
	t.syncBuf = grown
	if t.received != nil {
		t.received = bitrange.NewBitmap(newSize)
	}
}

// ApplyFrame assembles one received frame: decompress the payload
// (honoring Compressed/Delta against the current block reference) into the
// shadow at [addr, addr+n), widen new_data, and set has_new_data. If
// syncComplete is set, the caller (the connection's receive loop) must
// next call Promote to commit the shadow into the owning block.
func (t *TargetBuf) ApplyFrame(block *Block, addr uint32, payload []byte, compressed, delta, syncComplete bool, rawLen int) error {
	var reference []byte
	if delta {
		reference = block.Bytes[addr : addr+uint32(rawLen)]
	}
	plain, err := wire.DecodeDelta(payload, reference, compressed, delta, rawLen)
	if err != nil {
		return err
	}

	copy(t.syncBuf[addr:addr+uint32(rawLen)], plain)
	t.newData.Extend(addr, uint32(rawLen))
	if t.received != nil {
		t.received.Mark(addr, uint32(rawLen))
	}

	if syncComplete {
		t.bufUsed = true
	}
	return nil
}

// HasPendingSync reports whether a sync-complete update is waiting to be
// promoted.
func (t *TargetBuf) HasPendingSync() bool { return t.bufUsed }

// Promote atomically copies the assembled range into the owning block and
// fires receive callbacks, clearing has_new_data. The
// caller must already hold the registry lock.
func (t *TargetBuf) Promote(block *Block) {
	if !t.newData.Set {
		t.bufUsed = false
		return
	}
	n := t.newData.Len()
	block.PromoteReceived(t.newData.Start, t.syncBuf[t.newData.Start:t.newData.Start+n])
	t.newData.Clear()
	t.bufUsed = false
}

// ReceivedRuns returns the byte runs actually touched by the last applied
// update, for Bidirectional blocks; used to echo only those bytes to the
// block's other connections rather than the whole bounding range.
func (t *TargetBuf) ReceivedRuns() []bitrange.Range {
	if t.received == nil {
		return nil
	}
	return t.received.Runs()
}

// ClearReceived resets the bidirectional received-bitmap after it has been
// folded into outgoing echo ranges.
func (t *TargetBuf) ClearReceived() {
	if t.received != nil {
		t.received.Clear()
	}
}
