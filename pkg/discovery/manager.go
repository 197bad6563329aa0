package discovery

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/iocafe/iocom-go/internal/logger"
	"github.com/iocafe/iocom-go/internal/wire"
	"github.com/iocafe/iocom-go/pkg/conn"
	"github.com/iocafe/iocom-go/pkg/mblk"
	"github.com/iocafe/iocom-go/pkg/registry"
)

// InfoBlockName is the well-known name of the static block describing a
// device's own schema.
const InfoBlockName = "info"

// Manager materializes dynamic networks, blocks, and signals from
// received mbinfo and info-block content. One Manager serves a
// whole registry; wire its HandleMbinfo into every Connection's OnMbinfo
// hook.
//
// Lock order: Manager methods never call into the registry while holding
// m.mu, because registry lifecycle events (which fire under the registry
// mutex) call back into the manager and take m.mu themselves.
type Manager struct {
	mu       sync.Mutex
	reg      *registry.Registry
	networks map[string]*DynamicNetwork
}

// NewManager builds a Manager and subscribes it to reg's lifecycle events
// so networks appear and disappear in step with the blocks that carry
// them.
func NewManager(reg *registry.Registry) *Manager {
	m := &Manager{
		reg:      reg,
		networks: make(map[string]*DynamicNetwork),
	}
	reg.OnEvent(m.onEvent)
	return m
}

// onEvent runs under the registry mutex and touches only the
// manager's own state.
func (m *Manager) onEvent(ev registry.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind {
	case registry.EventNewNetwork:
		if _, ok := m.networks[ev.NetworkName]; !ok {
			m.networks[ev.NetworkName] = newDynamicNetwork(ev.NetworkName)
		}
	case registry.EventNetworkDisconnected:
		delete(m.networks, ev.NetworkName)
	case registry.EventDeviceDisconnected:
		if dn, ok := m.networks[ev.NetworkName]; ok {
			dn.dropDevice(ev.DeviceName, ev.DeviceNr)
		}
	}
}

// HandleMbinfo materializes (or grows) the local mirror of a block the
// peer announced and attaches a target buffer for it on the announcing
// connection. Satisfies conn.Connection's OnMbinfo hook.
func (m *Manager) HandleMbinfo(c *conn.Connection, remoteMblkID uint32, mb wire.MbinfoFrame) {
	networkName := c.PeerNetworkName
	if networkName == "" {
		_, _, networkName = m.reg.Identity()
	}
	deviceName := mb.DeviceName
	if deviceName == "" {
		deviceName = c.PeerDeviceName
	}

	blk, ok := m.reg.FindBlock(networkName, deviceName, mb.DeviceNr, mb.MblkName)
	if !ok {
		nbytes := int(mb.Nbytes)
		if nbytes < 24 {
			nbytes = 24
		}
		flags := mblk.Dynamic | mblk.AllowResize
		if mblk.Flags(mb.MblkFlags).Has(mblk.Bidirectional) {
			flags |= mblk.Bidirectional
		}
		var err error
		blk, err = m.reg.CreateBlock(mb.MblkName, deviceName, mb.DeviceNr, networkName, nbytes, mblk.Down, flags)
		if err != nil {
			logger.Warn("discovery: materialize block failed",
				logger.Network(networkName), logger.MblkName(mb.MblkName), logger.Err(err))
			return
		}
		if mb.MblkName == InfoBlockName {
			m.reg.WithLock(func() {
				blk.Callbacks = append(blk.Callbacks, m.infoCallback)
			})
		}
	} else if int(mb.Nbytes) > blk.Nbytes() {
		var err error
		m.reg.WithLock(func() {
			err = blk.Resize(int(mb.Nbytes))
		})
		if err != nil {
			logger.Warn("discovery: block resize refused",
				logger.Network(networkName), logger.MblkName(mb.MblkName), logger.Err(err))
			return
		}
	}

	if !c.HasTarget(remoteMblkID) {
		if _, err := c.AttachTarget(blk.ID, remoteMblkID, blk.Nbytes(), blk.Flags.Has(mblk.Bidirectional)); err != nil {
			logger.Warn("discovery: attach target failed",
				logger.Network(networkName), logger.MblkName(mb.MblkName), logger.Err(err))
			return
		}
	}

	m.mu.Lock()
	dn, ok := m.networks[networkName]
	if !ok {
		dn = newDynamicNetwork(networkName)
		m.networks[networkName] = dn
	}
	dn.addShortcut(Shortcut{
		BlockID:    blk.ID,
		MblkName:   mb.MblkName,
		DeviceName: deviceName,
		DeviceNr:   mb.DeviceNr,
	})
	m.mu.Unlock()

	logger.Debug("discovery: block materialized",
		logger.Network(networkName), logger.Device(deviceName),
		logger.DeviceNr(mb.DeviceNr), logger.MblkName(mb.MblkName),
		logger.RemoteID(remoteMblkID))
}

// infoCallback parses a device's info block once its content has been
// promoted. It runs under the
// registry mutex as a block callback, so it must not call back into the
// registry.
func (m *Manager) infoCallback(b *mblk.Block, _, _ uint32, reason mblk.CallbackReason) {
	if reason != mblk.CallbackReceive {
		return
	}

	// A block sized larger than the document pads with zeros; strip them
	// before parsing. A zstd payload is left untouched, since its frame may
	// legitimately end in zero bytes — the announcing device sizes the
	// block to the payload, padding only up to the 24-byte block minimum.
	payload := b.Bytes
	if !isZstdFrame(payload) {
		payload = bytes.TrimRight(payload, "\x00")
	}
	if len(payload) == 0 {
		return
	}
	ib, err := ParseInfoBlock(payload)
	if err != nil {
		logger.Warn("discovery: info block parse failed",
			logger.Network(b.NetworkName), logger.Device(b.DeviceName), logger.Err(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dn, ok := m.networks[b.NetworkName]
	if !ok {
		dn = newDynamicNetwork(b.NetworkName)
		m.networks[b.NetworkName] = dn
	}
	dn.dropDevice(b.DeviceName, b.DeviceNr) // re-announce replaces, never duplicates

	for _, mbi := range ib.MemoryBlocks {
		for _, si := range mbi.Signals {
			t, err := ParseSignalType(si.Type)
			if err != nil {
				logger.Warn("discovery: skipping signal",
					logger.Signal(si.Name), logger.Err(err))
				continue
			}
			dn.addSignal(&DynamicSignal{
				Name:       si.Name,
				MblkName:   mbi.Name,
				DeviceName: b.DeviceName,
				DeviceNr:   b.DeviceNr,
				Addr:       si.Addr,
				N:          si.N,
				NColumns:   si.NColumns,
				Type:       t,
			})
		}
	}

	logger.Info("discovery: info block parsed",
		logger.Network(b.NetworkName), logger.Device(b.DeviceName),
		logger.DeviceNr(b.DeviceNr), logger.Len(dn.signalCount()))
}

// ResolveSignal looks up a signal by name within a network, O(1)
// amortized. The returned value is a copy.
func (m *Manager) ResolveSignal(networkName, signalName string) (DynamicSignal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dn, ok := m.networks[networkName]
	if !ok {
		return DynamicSignal{}, false
	}
	s, ok := dn.signal(signalName)
	if !ok {
		return DynamicSignal{}, false
	}
	return *s, true
}

// ResolveBlock maps a resolved signal back to the concrete memory block
// carrying it, via the network's shortcut list.
func (m *Manager) ResolveBlock(networkName string, sig DynamicSignal) (*mblk.Block, bool) {
	m.mu.Lock()
	var blockID uint32
	found := false
	if dn, ok := m.networks[networkName]; ok {
		for _, sc := range dn.shortcuts {
			if sc.MblkName == sig.MblkName && sc.DeviceName == sig.DeviceName && sc.DeviceNr == sig.DeviceNr {
				blockID = sc.BlockID
				found = true
				break
			}
		}
	}
	m.mu.Unlock()

	if !found {
		return nil, false
	}
	return m.reg.Block(blockID)
}

// ReadSignal copies a named signal's byte span (state byte included) out
// of its resolved memory block.
func (m *Manager) ReadSignal(networkName, signalName string) ([]byte, error) {
	sig, ok := m.ResolveSignal(networkName, signalName)
	if !ok {
		return nil, errSignalNotFound(networkName, signalName)
	}
	blk, ok := m.ResolveBlock(networkName, sig)
	if !ok {
		return nil, errSignalNotFound(networkName, signalName)
	}
	buf := make([]byte, sig.Bytes())
	n, err := m.reg.ReadBlock(blk.ID, uint32(sig.Addr), buf, 0)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// WriteSignal writes raw bytes into a named signal's byte span. buf is
// expected to start with the signal's state byte, as ReadSignal returns
// it.
func (m *Manager) WriteSignal(networkName, signalName string, buf []byte) error {
	sig, ok := m.ResolveSignal(networkName, signalName)
	if !ok {
		return errSignalNotFound(networkName, signalName)
	}
	blk, ok := m.ResolveBlock(networkName, sig)
	if !ok {
		return errSignalNotFound(networkName, signalName)
	}
	if len(buf) > sig.Bytes() {
		buf = buf[:sig.Bytes()]
	}
	return m.reg.WriteBlock(blk.ID, uint32(sig.Addr), buf, 0)
}

func errSignalNotFound(networkName, signalName string) error {
	return fmt.Errorf("discovery: signal %s/%s not found", networkName, signalName)
}

// NetworkNames returns the known dynamic networks, for status reporting.
func (m *Manager) NetworkNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.networks))
	for name := range m.networks {
		names = append(names, name)
	}
	return names
}

// Signals returns a copy of every signal known in networkName.
func (m *Manager) Signals(networkName string) []DynamicSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	dn, ok := m.networks[networkName]
	if !ok {
		return nil
	}
	out := make([]DynamicSignal, 0, dn.signalCount())
	for _, list := range dn.signals {
		for _, s := range list {
			out = append(out, *s)
		}
	}
	return out
}

// Shortcuts returns a copy of networkName's memory-block shortcut list.
func (m *Manager) Shortcuts(networkName string) []Shortcut {
	m.mu.Lock()
	defer m.mu.Unlock()
	dn, ok := m.networks[networkName]
	if !ok {
		return nil
	}
	return append([]Shortcut(nil), dn.shortcuts...)
}
