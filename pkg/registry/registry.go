// Package registry implements the root object: the single owner of
// memory blocks and their source/target buffers,
// keyed by small integer ids rather than pointers.
// A single mutex serializes every mutation; lifecycle events fire to
// registered handlers while that mutex is held, so handlers must not
// block.
package registry

import (
	"fmt"
	"sync"

	"github.com/iocafe/iocom-go/internal/idpool"
	"github.com/iocafe/iocom-go/pkg/iocstatus"
	"github.com/iocafe/iocom-go/pkg/mblk"
	"github.com/iocafe/iocom-go/pkg/metrics"
)

// EventKind enumerates the root-level lifecycle events.
type EventKind int

const (
	EventNewMemoryBlock EventKind = iota
	EventMblkConnectedAsSource
	EventMblkConnectedAsTarget
	EventMemoryBlockDeleted
	EventNewNetwork
	EventNetworkDisconnected
	EventNewDevice
	EventDeviceDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventNewMemoryBlock:
		return "NEW_MEMORY_BLOCK"
	case EventMblkConnectedAsSource:
		return "MBLK_CONNECTED_AS_SOURCE"
	case EventMblkConnectedAsTarget:
		return "MBLK_CONNECTED_AS_TARGET"
	case EventMemoryBlockDeleted:
		return "MEMORY_BLOCK_DELETED"
	case EventNewNetwork:
		return "NEW_NETWORK"
	case EventNetworkDisconnected:
		return "NETWORK_DISCONNECTED"
	case EventNewDevice:
		return "NEW_DEVICE"
	case EventDeviceDisconnected:
		return "DEVICE_DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Event describes one lifecycle transition.
type Event struct {
	Kind        EventKind
	BlockID     uint32
	NetworkName string
	DeviceName  string
	DeviceNr    uint32
}

// EventHandler receives lifecycle events. It runs under the registry's
// mutex, which is not reentrant, so it must not block or call any Registry
// method (Block/SourceBuf/TargetBuf lookups included); mblk.Block methods,
// which take no lock, may be called.
type EventHandler func(Event)

// Registry owns every memory block and attached buffer this process
// knows about. The mutex is a plain sync.Mutex rather than a recursive
// one: Go has
// no native recursive mutex, and the idiomatic fix is restructuring call
// chains so a held lock is never re-acquired, not emulating recursion with
// a goroutine-tracking wrapper. Callers needing several registry
// operations to appear atomic use WithLock.
type Registry struct {
	mu sync.Mutex

	deviceName  string
	deviceNr    uint32
	networkName string

	blockIDs *idpool.Pool
	bufIDs   *idpool.Pool

	blocks     map[uint32]*mblk.Block
	sourceBufs map[uint32]*mblk.SourceBuf
	targetBufs map[uint32]*mblk.TargetBuf

	networkRefs map[string]int
	deviceRefs  map[string]int

	handlers []EventHandler
	metrics  *metrics.FabricMetrics
}

// New constructs an empty Registry for the local device identity.
func New(deviceName, networkName string, deviceNr uint32, m *metrics.FabricMetrics) *Registry {
	return &Registry{
		deviceName:  deviceName,
		deviceNr:    deviceNr,
		networkName: networkName,
		// Block ids start at 8: smaller values and 0 are reserved and must
		// never appear as a wire-visible routing tag. Buffer ids are
		// internal only, so their space starts at 1.
		blockIDs:    idpool.New(8, 0),
		bufIDs:      idpool.New(1, 0),
		blocks:      make(map[uint32]*mblk.Block),
		sourceBufs:  make(map[uint32]*mblk.SourceBuf),
		targetBufs:  make(map[uint32]*mblk.TargetBuf),
		networkRefs: make(map[string]int),
		deviceRefs:  make(map[string]int),
		metrics:     m,
	}
}

// OnEvent registers a lifecycle event handler.
func (r *Registry) OnEvent(h EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// WithLock runs fn while holding the registry mutex, for callers that touch
// blocks and buffers directly. fn must not call other Registry methods:
// they take the same, non-reentrant mutex.
func (r *Registry) WithLock(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

func deviceKey(networkName, deviceName string, deviceNr uint32) string {
	return fmt.Sprintf("%s/%s/%d", networkName, deviceName, deviceNr)
}

// fire dispatches ev to every handler. Caller must hold r.mu.
func (r *Registry) fire(ev Event) {
	for _, h := range r.handlers {
		h(ev)
	}
}

// trackNetworkDevice increments reference counts and fires NEW_NETWORK /
// NEW_DEVICE on first sight. Caller must hold r.mu.
func (r *Registry) trackNetworkDevice(networkName, deviceName string, deviceNr uint32) {
	r.networkRefs[networkName]++
	if r.networkRefs[networkName] == 1 {
		r.fire(Event{Kind: EventNewNetwork, NetworkName: networkName})
	}

	dk := deviceKey(networkName, deviceName, deviceNr)
	r.deviceRefs[dk]++
	if r.deviceRefs[dk] == 1 {
		r.fire(Event{Kind: EventNewDevice, NetworkName: networkName, DeviceName: deviceName, DeviceNr: deviceNr})
	}
}

// untrackNetworkDevice decrements reference counts and fires
// NETWORK_DISCONNECTED / DEVICE_DISCONNECTED when they reach zero. Caller
// must hold r.mu.
func (r *Registry) untrackNetworkDevice(networkName, deviceName string, deviceNr uint32) {
	dk := deviceKey(networkName, deviceName, deviceNr)
	if r.deviceRefs[dk] > 0 {
		r.deviceRefs[dk]--
		if r.deviceRefs[dk] == 0 {
			delete(r.deviceRefs, dk)
			r.fire(Event{Kind: EventDeviceDisconnected, NetworkName: networkName, DeviceName: deviceName, DeviceNr: deviceNr})
		}
	}

	if r.networkRefs[networkName] > 0 {
		r.networkRefs[networkName]--
		if r.networkRefs[networkName] == 0 {
			delete(r.networkRefs, networkName)
			r.fire(Event{Kind: EventNetworkDisconnected, NetworkName: networkName})
		}
	}
}

// CreateBlock allocates a block id and registers a new memory block.
func (r *Registry) CreateBlock(mblkName, deviceName string, deviceNr uint32, networkName string, nbytes int, dir mblk.Direction, flags mblk.Flags) (*mblk.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.blockIDs.Alloc()
	if err != nil {
		return nil, fmt.Errorf("registry: allocate block id: %w", err)
	}

	b, err := mblk.New(id, networkName, deviceName, deviceNr, mblkName, nbytes, dir, flags)
	if err != nil {
		r.blockIDs.Free(id)
		return nil, err
	}

	r.blocks[id] = b
	r.trackNetworkDevice(networkName, deviceName, deviceNr)
	r.fire(Event{Kind: EventNewMemoryBlock, BlockID: id, NetworkName: networkName, DeviceName: deviceName, DeviceNr: deviceNr})
	r.refreshMetrics()
	return b, nil
}

// DeleteBlock removes a block and every buffer attached to it.
func (r *Registry) DeleteBlock(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return iocstatus.New(iocstatus.Failed, "registry: unknown block id")
	}

	for _, sid := range append([]uint32(nil), b.SourceIDs...) {
		delete(r.sourceBufs, sid)
		r.bufIDs.Free(sid)
	}
	for _, tid := range append([]uint32(nil), b.TargetIDs...) {
		delete(r.targetBufs, tid)
		r.bufIDs.Free(tid)
	}

	delete(r.blocks, id)
	r.blockIDs.Free(id)
	r.untrackNetworkDevice(b.NetworkName, b.DeviceName, b.DeviceNr)
	r.fire(Event{Kind: EventMemoryBlockDeleted, BlockID: id, NetworkName: b.NetworkName, DeviceName: b.DeviceName, DeviceNr: b.DeviceNr})
	r.refreshMetrics()
	return nil
}

// WriteBlock performs an application write under the registry
// mutex, widening every attached source buffer's changed range so the
// change reaches every connection mirroring the block.
func (r *Registry) WriteBlock(id, addr uint32, buf []byte, flags mblk.WriteFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok {
		return iocstatus.New(iocstatus.Failed, "registry: unknown block id")
	}
	return b.Write(addr, buf, flags, r.extendSourceLocked)
}

// ReadBlock copies out of a block under the registry mutex.
func (r *Registry) ReadBlock(id, addr uint32, buf []byte, flags mblk.WriteFlags) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok {
		return 0, iocstatus.New(iocstatus.Failed, "registry: unknown block id")
	}
	return b.Read(addr, buf, flags)
}

// extendSourceLocked widens one attached source buffer's changed range.
// Caller must hold r.mu.
func (r *Registry) extendSourceLocked(sourceID uint32, addr, n uint32) {
	if sb, ok := r.sourceBufs[sourceID]; ok {
		sb.Extend(sourceID, addr, n)
	}
}

// Block returns the block registered under id.
func (r *Registry) Block(id uint32) (*mblk.Block, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	return b, ok
}

// AttachSource creates a source buffer mirroring blockID toward a remote
// peer whose copy of the block is identified by remoteMblkID.
func (r *Registry) AttachSource(blockID, remoteMblkID uint32, nbytes int) (*mblk.SourceBuf, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[blockID]
	if !ok {
		return nil, iocstatus.New(iocstatus.Failed, "registry: unknown block id")
	}

	id, err := r.bufIDs.Alloc()
	if err != nil {
		return nil, fmt.Errorf("registry: allocate source buffer id: %w", err)
	}

	sb := mblk.NewSourceBuf(id, blockID, remoteMblkID, nbytes)
	r.sourceBufs[id] = sb
	b.SourceIDs = append(b.SourceIDs, id)

	r.fire(Event{Kind: EventMblkConnectedAsSource, BlockID: blockID, NetworkName: b.NetworkName, DeviceName: b.DeviceName, DeviceNr: b.DeviceNr})
	return sb, nil
}

// AttachTarget creates a target buffer receiving blockID's content from a
// remote peer whose copy is identified by remoteMblkID.
func (r *Registry) AttachTarget(blockID, remoteMblkID uint32, nbytes int, bidirectional bool) (*mblk.TargetBuf, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[blockID]
	if !ok {
		return nil, iocstatus.New(iocstatus.Failed, "registry: unknown block id")
	}

	id, err := r.bufIDs.Alloc()
	if err != nil {
		return nil, fmt.Errorf("registry: allocate target buffer id: %w", err)
	}

	tb := mblk.NewTargetBuf(id, blockID, remoteMblkID, nbytes, bidirectional)
	r.targetBufs[id] = tb
	b.TargetIDs = append(b.TargetIDs, id)

	r.fire(Event{Kind: EventMblkConnectedAsTarget, BlockID: blockID, NetworkName: b.NetworkName, DeviceName: b.DeviceName, DeviceNr: b.DeviceNr})
	return tb, nil
}

// DetachSource removes a source buffer without deleting its block,
// used when a connection drops.
func (r *Registry) DetachSource(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sb, ok := r.sourceBufs[id]
	if !ok {
		return
	}
	if b, ok := r.blocks[sb.BlockID]; ok {
		b.SourceIDs = removeID(b.SourceIDs, id)
	}
	delete(r.sourceBufs, id)
	r.bufIDs.Free(id)
}

// DetachTarget removes a target buffer without deleting its block.
func (r *Registry) DetachTarget(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tb, ok := r.targetBufs[id]
	if !ok {
		return
	}
	if b, ok := r.blocks[tb.BlockID]; ok {
		b.TargetIDs = removeID(b.TargetIDs, id)
	}
	delete(r.targetBufs, id)
	r.bufIDs.Free(id)
}

// SourceBuf returns the source buffer registered under id.
func (r *Registry) SourceBuf(id uint32) (*mblk.SourceBuf, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sb, ok := r.sourceBufs[id]
	return sb, ok
}

// TargetBuf returns the target buffer registered under id.
func (r *Registry) TargetBuf(id uint32) (*mblk.TargetBuf, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tb, ok := r.targetBufs[id]
	return tb, ok
}

// BlockCount returns the number of live blocks, for status reporting.
func (r *Registry) BlockCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blocks)
}

// Blocks returns a snapshot of every registered block, for status
// reporting and connection setup (AnnounceBlock). The slice is fresh but
// the *mblk.Block values are live: mutate them only under WithLock.
func (r *Registry) Blocks() []*mblk.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*mblk.Block, 0, len(r.blocks))
	for _, b := range r.blocks {
		out = append(out, b)
	}
	return out
}

// FindBlock resolves a logical address tuple to the local block carrying it.
func (r *Registry) FindBlock(networkName, deviceName string, deviceNr uint32, mblkName string) (*mblk.Block, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.blocks {
		if b.NetworkName == networkName && b.DeviceName == deviceName && b.DeviceNr == deviceNr && b.MblkName == mblkName {
			return b, true
		}
	}
	return nil, false
}

// Identity returns the local device identity this registry was created
// with.
func (r *Registry) Identity() (deviceName string, deviceNr uint32, networkName string) {
	return r.deviceName, r.deviceNr, r.networkName
}

func removeID(ids []uint32, id uint32) []uint32 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// refreshMetrics updates the fabric-wide gauges. Caller must hold r.mu.
func (r *Registry) refreshMetrics() {
	if r.metrics == nil {
		return
	}
	byDir := map[mblk.Direction]int{}
	for _, b := range r.blocks {
		byDir[b.Direction]++
	}
	for dir, n := range byDir {
		r.metrics.SetMemoryBlocks(dir.String(), n)
	}
	r.metrics.SetNetworks(len(r.networkRefs))
	r.metrics.SetDevices(len(r.deviceRefs))
}
