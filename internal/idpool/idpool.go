// Package idpool is a small bounded id allocator shared by pkg/registry
// (memory-block ids) and pkg/devicenr (persisted device numbers). Both
// callers need the same shape: a monotonic counter as the primary
// allocation path, reuse of freed ids before minting new ones, and a
// fallback to random-draw-with-collision-retry once the monotonic space
// is exhausted.
package idpool

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Pool allocates ids in [min, min+span) (or [min, +inf) when span is 0).
// Freed ids are reused (LIFO) before the monotonic counter advances;
// once exhausted, Alloc falls back to a bounded number of random draws
// checked against the in-use set.
type Pool struct {
	min     uint32
	span    uint32 // 0 means unbounded
	next    uint32
	free    []uint32
	inUse   map[uint32]struct{}
	retries int
}

// New creates a pool that hands out ids starting at min. If span is
// non-zero, ids are confined to [min, min+span).
func New(min, span uint32) *Pool {
	return &Pool{
		min:     min,
		span:    span,
		next:    min,
		inUse:   make(map[uint32]struct{}),
		retries: 8,
	}
}

// Alloc returns an unused id: a freed one if available, otherwise the next
// monotonic value, otherwise (bounded space exhausted) a random draw
// retried up to a fixed attempt count. Returns an error if no free id could
// be found.
func (p *Pool) Alloc() (uint32, error) {
	if n := len(p.free); n > 0 {
		id := p.free[n-1]
		p.free = p.free[:n-1]
		p.inUse[id] = struct{}{}
		return id, nil
	}

	if p.span == 0 || p.next < p.min+p.span {
		id := p.next
		p.next++
		p.inUse[id] = struct{}{}
		return id, nil
	}

	for i := 0; i < p.retries; i++ {
		id := p.min + randUint32()%p.span
		if _, busy := p.inUse[id]; !busy {
			p.inUse[id] = struct{}{}
			return id, nil
		}
	}
	return 0, fmt.Errorf("idpool: exhausted id space [%d,%d)", p.min, p.min+p.span)
}

// Reserve marks id as in use without drawing from the free list or
// counter, for ids recovered from persistent storage (e.g. the
// device-number table) that must not be re-handed to a different caller.
func (p *Pool) Reserve(id uint32) {
	p.inUse[id] = struct{}{}
	if id >= p.next {
		p.next = id + 1
	}
}

// Free releases id for reuse.
func (p *Pool) Free(id uint32) {
	if _, ok := p.inUse[id]; !ok {
		return
	}
	delete(p.inUse, id)
	p.free = append(p.free, id)
}

// InUse reports whether id is currently allocated.
func (p *Pool) InUse(id uint32) bool {
	_, ok := p.inUse[id]
	return ok
}

func randUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b[:])
}
