package mblk

import (
	"encoding/binary"
	"fmt"

	"github.com/iocafe/iocom-go/internal/bitrange"
	"github.com/iocafe/iocom-go/pkg/iocstatus"
)

// Callback is invoked on local write and on receive-path promotion, with
// the byte range affected and the reason. Callbacks run under the owning
// registry's lock and must not block.
type Callback func(b *Block, addr, n uint32, reason CallbackReason)

// Block is the replicated byte array. Source and
// target buffers reference it by ID through the owning registry rather
// than holding a pointer, so the object graph has no intrusive linked
// lists.
type Block struct {
	ID uint32

	DeviceName  string
	DeviceNr    uint32
	NetworkName string
	MblkName    string

	Direction Direction
	Bytes     []byte
	Flags     Flags

	// SourceIDs / TargetIDs hold the ids of attached source/target buffers,
	// owned by the registry's buffer maps.
	SourceIDs []uint32
	TargetIDs []uint32

	// Changed is the block-level pending-write range, widened on every
	// Write/Clear and consumed by snapshot time; separate from (but
	// mirrored into) each attached source buffer's own changed range.
	Changed bitrange.Range

	// localChanged tracks, for Bidirectional blocks, which bytes were
	// changed by a local write (as opposed to received from a peer), so
	// received updates can be echoed to other connections touching only
	// the bytes the peer actually changed.
	localChanged *bitrange.Bitmap

	Callbacks []Callback
}

// New constructs a Block. nbytes must be >= 24;
// static blocks additionally may not declare Bidirectional (no peer ever
// writes to them).
func New(id uint32, networkName, deviceName string, deviceNr uint32, mblkName string, nbytes int, dir Direction, flags Flags) (*Block, error) {
	if id == 0 {
		return nil, fmt.Errorf("mblk: id must be non-zero")
	}
	if nbytes < 24 {
		return nil, fmt.Errorf("mblk: nbytes must be >= 24, got %d", nbytes)
	}
	if flags.Has(Static) && flags.Has(Bidirectional) {
		return nil, fmt.Errorf("mblk: static block cannot be bidirectional")
	}
	b := &Block{
		ID:          id,
		DeviceName:  deviceName,
		DeviceNr:    deviceNr,
		NetworkName: networkName,
		MblkName:    mblkName,
		Direction:   dir,
		Bytes:       make([]byte, nbytes),
		Flags:       flags,
	}
	if flags.Has(Bidirectional) {
		b.localChanged = bitrange.NewBitmap(nbytes)
	}
	return b, nil
}

func (b *Block) Nbytes() int { return len(b.Bytes) }

func clip(addr, n uint32, total int) (uint32, uint32) {
	if int(addr) >= total {
		return 0, 0
	}
	end := addr + n
	if int(end) > total {
		end = uint32(total)
	}
	return addr, end
}

func swapGroups(buf []byte, groupSz int) {
	for i := 0; i+groupSz <= len(buf); i += groupSz {
		for l, r := i, i+groupSz-1; l < r; l, r = l+1, r-1 {
			buf[l], buf[r] = buf[r], buf[l]
		}
	}
}

// Write copies buf into the block at addr, clipped to [0,nbytes). It
// widens the block's and every attached source buffer's changed range,
// marks the local-change bitmap for Bidirectional blocks, and invokes
// callbacks with CallbackWrite. sourceExtend is called once per attached
// source buffer id so the registry can widen them without this package
// needing to know the buffer map's storage.
func (b *Block) Write(addr uint32, buf []byte, flags WriteFlags, sourceExtend func(sourceID uint32, addr, n uint32)) error {
	if b.Flags.Has(Static) {
		return fmt.Errorf("mblk: cannot write to a static block")
	}
	start, end := clip(addr, uint32(len(buf)), len(b.Bytes))
	n := end - start
	if n == 0 {
		return iocstatus.ErrNothingToDo
	}

	dst := b.Bytes[start:end]
	if flags&WriteZero != 0 {
		for i := range dst {
			dst[i] = 0
		}
	} else {
		src := buf[:n]
		copy(dst, src)
		switch {
		case flags&WriteSwap64 != 0:
			swapGroups(dst, 8)
		case flags&WriteSwap32 != 0:
			swapGroups(dst, 4)
		case flags&WriteSwap16 != 0:
			swapGroups(dst, 2)
		}
	}

	b.Changed.Extend(start, n)
	if b.localChanged != nil {
		b.localChanged.Mark(start, n)
	}
	for _, sid := range b.SourceIDs {
		sourceExtend(sid, start, n)
	}

	b.fireCallbacks(start, n, CallbackWrite)

	if b.Flags.Has(AutoSync) {
		return nil // caller (registry/connection) observes Changed and snapshots
	}
	return nil
}

// Read copies [addr,addr+len) out of the block into buf, clipped to the
// block's bounds, with the same optional endian swap as Write.
func (b *Block) Read(addr uint32, buf []byte, flags WriteFlags) (int, error) {
	start, end := clip(addr, uint32(len(buf)), len(b.Bytes))
	n := end - start
	if n == 0 {
		return 0, iocstatus.ErrNothingToDo
	}
	copy(buf[:n], b.Bytes[start:end])
	switch {
	case flags&WriteSwap64 != 0:
		swapGroups(buf[:n], 8)
	case flags&WriteSwap32 != 0:
		swapGroups(buf[:n], 4)
	case flags&WriteSwap16 != 0:
		swapGroups(buf[:n], 2)
	}
	return int(n), nil
}

// Clear zero-fills [addr,addr+len), equivalent to Write with WriteZero.
func (b *Block) Clear(addr, length uint32, sourceExtend func(sourceID uint32, addr, n uint32)) error {
	return b.Write(addr, nil, WriteZero, sourceExtend)
}

// Resize grows the block's buffer to newSize if AllowResize is set and
// newSize is larger than the current size. A newSize that is not larger is
// a no-op returning nil; growing a block without AllowResize returns an
// error.
// Used by pkg/discovery when an incoming mbinfo declares a larger nbytes
// than a previously materialized target-side block.
func (b *Block) Resize(newSize int) error {
	if newSize <= len(b.Bytes) {
		return nil
	}
	if !b.Flags.Has(AllowResize) {
		return fmt.Errorf("mblk: block %q does not allow resize (have %d, need %d)", b.MblkName, len(b.Bytes), newSize)
	}
	grown := make([]byte, newSize)
	copy(grown, b.Bytes)
	b.Bytes = grown
	if b.localChanged != nil {
		b.localChanged = bitrange.NewBitmap(newSize)
	}
	return nil
}

// PromoteReceived atomically (under the registry lock, by contract) copies
// src into the block at [addr,addr+len(src)) and fires receive callbacks.
// Called by TargetBuf on sync-complete.
func (b *Block) PromoteReceived(addr uint32, src []byte) {
	start, end := clip(addr, uint32(len(src)), len(b.Bytes))
	n := end - start
	if n == 0 {
		return
	}
	copy(b.Bytes[start:end], src[:n])
	b.fireCallbacks(start, n, CallbackReceive)
}

func (b *Block) fireCallbacks(addr, n uint32, reason CallbackReason) {
	for _, cb := range b.Callbacks {
		cb(b, addr, n, reason)
	}
}

// ClearLocalChanged clears the bidirectional local-change bitmap after its
// runs have been folded into an outgoing snapshot.
func (b *Block) ClearLocalChanged() {
	if b.localChanged != nil {
		b.localChanged.Clear()
	}
}

// LocalChangedRuns returns the maximal byte runs locally changed since the
// last ClearLocalChanged, for Bidirectional blocks only.
func (b *Block) LocalChangedRuns() []bitrange.Range {
	if b.localChanged == nil {
		return nil
	}
	return b.localChanged.Runs()
}

// EncodeUint16 / EncodeUint32 / EncodeUint64 are little-endian helpers used
// by callers building signal values.
func EncodeUint16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func EncodeUint32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func EncodeUint64(v uint64) []byte { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); return b }
