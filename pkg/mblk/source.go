package mblk

import (
	"github.com/iocafe/iocom-go/internal/bitrange"
	"github.com/iocafe/iocom-go/internal/wire"
	"github.com/iocafe/iocom-go/pkg/iocstatus"
)

// SourceBuf is the per-(block, outgoing connection) outbound mirror. It
// tracks a pending changed range, snapshots it into a shadow buffer, and
// emits at most one frame's worth of delta+RLE-compressed payload per
// call to BuildFrame, honoring the caller's credit budget.
type SourceBuf struct {
	ID           uint32
	BlockID      uint32
	RemoteMblkID uint32

	Changed bitrange.Range // pending local writes not yet snapshotted

	syncBuf      []byte // in-flight snapshot of the range currently being sent
	shadow       []byte // last content actually handed to the wire; delta reference
	syncUsed     bool
	syncStart    uint32
	syncEnd      uint32
	isKeyframe   bool
	makeKeyframe bool
	everSent     bool // false until the first snapshot is ever captured
}

// NewSourceBuf allocates a source buffer with a shadow sized to the
// block's current byte count. Static blocks pass nbytes=0: the block
// itself is the reference.
func NewSourceBuf(id, blockID, remoteMblkID uint32, nbytes int) *SourceBuf {
	var buf, shadow []byte
	if nbytes > 0 {
		buf = make([]byte, nbytes)
		shadow = make([]byte, nbytes)
	}
	return &SourceBuf{ID: id, BlockID: blockID, RemoteMblkID: remoteMblkID, syncBuf: buf, shadow: shadow}
}

// Extend widens the buffer's pending changed range; called by Block.Write
// for every attached source buffer. The signature matches Write's
// sourceExtend callback so a directly-attached buffer can be passed
// as-is; the id argument is for registry-level fan-out and is ignored
// here.
func (s *SourceBuf) Extend(_ uint32, addr, n uint32) { s.Changed.Extend(addr, n) }

// RequestKeyframe forces the next BuildFrame to send a full key-frame,
// used after a connection replacement so the peer never needs prior
// state.
func (s *SourceBuf) RequestKeyframe() { s.makeKeyframe = true }

// BuiltFrame is what BuildFrame hands back to the connection to wrap in a
// wire frame.
type BuiltFrame struct {
	Addr         uint32
	Payload      []byte
	Compressed   bool
	Delta        bool
	SyncComplete bool
}

// BuildFrame emits at most one frame of work: if a changed range is pending, snapshot
// it into sync.buf; on a delta frame, XOR the snapshot against shadow (the
// last content actually sent) rather than the block's current bytes, so a
// rapid second write before the first finishes still diffs against what
// the peer last saw; if the result would exceed the connection's available
// credit, return ErrPending leaving sync.start and shadow untouched (a
// snapshot taken on this call stays pending) so the same range is retried
// next tick; otherwise advance sync.start and, once it passes sync.end,
// mark SyncComplete and free the in-flight slot.
//
// block must be the owning Block, for snapshotting changed bytes.
// transport selects the exact frame overhead the credit gate accounts
// for. creditBytes is the number of payload+header bytes still
// available to send: max_in_air - (bytes_sent - bytes_acknowledged).
func (s *SourceBuf) BuildFrame(block *Block, transport wire.Transport, creditBytes int, maxChunk int) (BuiltFrame, error) {
	if block.Flags.Has(Static) {
		return s.buildStaticFrame(block, transport, creditBytes, maxChunk)
	}

	if !s.syncUsed {
		if s.Changed.Set {
			s.syncStart = s.Changed.Start
			s.syncEnd = s.Changed.End
			copy(s.syncBuf[s.syncStart:s.syncEnd+1], block.Bytes[s.syncStart:s.syncEnd+1])
			s.syncUsed = true
			// The very first snapshot this buffer ever sends has no prior
			// shadow to diff against, so it is always a key-frame even if
			// nobody called RequestKeyframe.
			s.isKeyframe = s.makeKeyframe || !s.everSent
			s.makeKeyframe = false
			s.everSent = true
			s.Changed.Clear()
		} else {
			return BuiltFrame{}, iocstatus.ErrNothingToDo
		}
	}

	chunkEnd := s.syncEnd
	if maxChunk > 0 && int(chunkEnd-s.syncStart+1) > maxChunk {
		chunkEnd = s.syncStart + uint32(maxChunk) - 1
	}
	raw := s.syncBuf[s.syncStart : chunkEnd+1]

	var reference []byte
	delta := !s.isKeyframe
	if delta {
		reference = s.shadow[s.syncStart : chunkEnd+1]
	}

	payload, compressed, err := wire.EncodeDelta(raw, reference, delta)
	if err != nil {
		return BuiltFrame{}, err
	}

	frameSz := len(payload) + wire.FrameOverhead(transport, s.RemoteMblkID, s.syncStart)
	if frameSz > creditBytes {
		// Flow-control stall: roll back nothing, the in-flight snapshot
		// stays pending for the next tick.
		return BuiltFrame{}, iocstatus.ErrPending
	}

	out := BuiltFrame{Addr: s.syncStart, Payload: payload, Compressed: compressed, Delta: delta}

	copy(s.shadow[s.syncStart:chunkEnd+1], raw)

	if chunkEnd >= s.syncEnd {
		out.SyncComplete = true
		s.syncUsed = false
	} else {
		s.syncStart = chunkEnd + 1
	}
	return out, nil
}

// buildStaticFrame handles static blocks: the block's own bytes are the
// only reference, there is no shadow to snapshot, and every send is
// effectively a key-frame read straight from the block.
func (s *SourceBuf) buildStaticFrame(block *Block, transport wire.Transport, creditBytes, maxChunk int) (BuiltFrame, error) {
	if !s.syncUsed {
		if s.Changed.Set {
			s.syncStart = s.Changed.Start
			s.syncEnd = s.Changed.End
			s.syncUsed = true
			s.Changed.Clear()
		} else {
			return BuiltFrame{}, iocstatus.ErrNothingToDo
		}
	}
	chunkEnd := s.syncEnd
	if maxChunk > 0 && int(chunkEnd-s.syncStart+1) > maxChunk {
		chunkEnd = s.syncStart + uint32(maxChunk) - 1
	}
	raw := block.Bytes[s.syncStart : chunkEnd+1]
	payload, compressed, err := wire.EncodeDelta(raw, nil, false)
	if err != nil {
		return BuiltFrame{}, err
	}
	if len(payload)+wire.FrameOverhead(transport, s.RemoteMblkID, s.syncStart) > creditBytes {
		return BuiltFrame{}, iocstatus.ErrPending
	}
	out := BuiltFrame{Addr: s.syncStart, Payload: payload, Compressed: compressed}
	if chunkEnd >= s.syncEnd {
		out.SyncComplete = true
		s.syncUsed = false
	} else {
		s.syncStart = chunkEnd + 1
	}
	return out, nil
}

// InFlight reports whether a snapshot is currently being drained; at
// most one snapshot is ever in flight per source buffer.
func (s *SourceBuf) InFlight() bool { return s.syncUsed }
