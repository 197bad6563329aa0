// Package devicenr implements automatic device numbering: a
// connecting client that presents a 16-byte unique id and asks for
// automatic numbering (an AUTHENTICATION_DATA frame with device_nr 0) is
// assigned a stable numeric id drawn from a small reserved range; the same
// unique id gets the same number on every future reconnect. Clients with
// no unique id are handed the next free monotonic number instead, via the
// shared allocator in internal/idpool.
package devicenr

import (
	"context"
	"sync"
	"time"

	"github.com/iocafe/iocom-go/internal/idpool"
	"github.com/iocafe/iocom-go/pkg/persist"
)

const (
	// AutoStart is the floor of the reserved auto-numbering range;
	// reserved ids run [AutoStart+1, AutoStart+AutoSpan-2].
	AutoStart = 0

	// AutoSpan bounds the reserved range to a small fixed-size table;
	// the table holds
	// AutoSpan-2 rows. AutoStart is never assigned, and
	// AutoStart+AutoSpan-1 is the first number handed to clients with no
	// unique id.
	AutoSpan = 32
)

// TableSize is the number of unique-id -> device_nr rows the reserved
// range holds.
const TableSize = AutoSpan - 2

// entry is one row of the persisted unique-id -> device_nr table.
type entry struct {
	uniqueID [16]byte
	nr       uint32
	lastUsed int64 // unix nanos; the smallest value is reused first
}

// Allocator assigns and persists automatic device numbers. It is safe for
// concurrent use; a fabric process shares one Allocator across every
// accepted connection.
type Allocator struct {
	mu      sync.Mutex
	entries []entry
	free    *idpool.Pool // unbounded monotonic pool for clients with no unique id; never takes idpool's random fallback

	store persist.Provider
	now   func() time.Time
}

// New constructs an Allocator. store may be nil, in which case assignments
// are kept in memory only and do not survive a process restart.
func New(store persist.Provider) *Allocator {
	return &Allocator{
		free:  idpool.New(AutoStart+AutoSpan-1, 0),
		store: store,
		now:   time.Now,
	}
}

// Load restores the persisted unique-id table, reserving every recovered
// device_nr in the monotonic pool too so a later no-unique-id client can
// never collide with one already handed to a reserved-range client.
func (a *Allocator) Load(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	data, err := a.store.Load(ctx, persist.BlockAutoDeviceNrTable)
	if err != nil {
		return err
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = entries
	for _, e := range entries {
		a.free.Reserve(e.nr)
	}
	return nil
}

// AssignDeviceNr resolves the device_nr for one AUTHENTICATION_DATA frame
// that requested automatic numbering, satisfying
// pkg/conn.DeviceNrAssigner.
func (a *Allocator) AssignDeviceNr(ctx context.Context, hasUniqueID bool, uniqueID [16]byte) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hasUniqueID {
		return a.assignReserved(ctx, uniqueID)
	}
	return a.free.Alloc()
}

// assignReserved implements the unique-id path: return an existing mapping
// unchanged, grow the table while there's room, or reuse the
// least-recently-issued slot once it's full. Caller holds a.mu.
func (a *Allocator) assignReserved(ctx context.Context, uniqueID [16]byte) (uint32, error) {
	now := a.now().UnixNano()

	for i := range a.entries {
		if a.entries[i].uniqueID == uniqueID {
			a.entries[i].lastUsed = now
			a.persistLocked(ctx)
			return a.entries[i].nr, nil
		}
	}

	if len(a.entries) < TableSize {
		nr := uint32(AutoStart + 1 + len(a.entries))
		a.entries = append(a.entries, entry{uniqueID: uniqueID, nr: nr, lastUsed: now})
		a.persistLocked(ctx)
		return nr, nil
	}

	oldest := 0
	for i := 1; i < len(a.entries); i++ {
		if a.entries[i].lastUsed < a.entries[oldest].lastUsed {
			oldest = i
		}
	}
	a.entries[oldest].uniqueID = uniqueID
	a.entries[oldest].lastUsed = now
	a.persistLocked(ctx)
	return a.entries[oldest].nr, nil
}

// persistLocked saves the current table, best-effort: a save failure
// leaves the in-memory assignment intact for this process's lifetime, it
// just won't survive a restart. Caller holds a.mu.
func (a *Allocator) persistLocked(ctx context.Context) {
	if a.store == nil {
		return
	}
	_ = a.store.Save(ctx, persist.BlockAutoDeviceNrTable, encodeEntries(a.entries), true)
}

// Count reports how many reserved-range rows are in use, for status
// reporting.
func (a *Allocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
