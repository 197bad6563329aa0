package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iocafe/iocom-go/internal/wire"
	"github.com/iocafe/iocom-go/pkg/conn"
	"github.com/iocafe/iocom-go/pkg/iocstatus"
	"github.com/iocafe/iocom-go/pkg/mblk"
	"github.com/iocafe/iocom-go/pkg/registry"
	"github.com/iocafe/iocom-go/pkg/stream"
)

// nopStream satisfies stream.Stream without moving any bytes; manager
// tests drive HandleMbinfo directly instead of ticking the connection.
type nopStream struct{}

func (nopStream) Kind() stream.Kind                           { return stream.KindTCP }
func (nopStream) Close() error                                { return nil }
func (nopStream) RemoteAddr() string                          { return "test" }
func (nopStream) Read(context.Context, []byte) (int, error)   { return 0, iocstatus.ErrPending }
func (nopStream) Write(_ context.Context, p []byte) (int, error) { return len(p), nil }
func (nopStream) Flush(context.Context) error                 { return nil }

func newTestSetup(t *testing.T) (*registry.Registry, *Manager, *conn.Connection) {
	t.Helper()
	reg := registry.New("ctrl", "factory", 9, nil)
	m := NewManager(reg)
	c := conn.New(conn.RoleInitiator, nopStream{}, reg, conn.Config{
		DeviceName:  "ctrl",
		NetworkName: "factory",
		DeviceNr:    9,
	})
	c.PeerNetworkName = "factory"
	c.PeerDeviceName = "iob"
	return reg, m, c
}

func TestHandleMbinfoMaterializesDynamicBlock(t *testing.T) {
	reg, m, c := newTestSetup(t)

	m.HandleMbinfo(c, 77, wire.MbinfoFrame{
		DeviceNr:   2,
		Nbytes:     64,
		DeviceName: "iob",
		MblkName:   "exp",
	})

	blk, ok := reg.FindBlock("factory", "iob", 2, "exp")
	require.True(t, ok)
	assert.Equal(t, 64, blk.Nbytes())
	assert.True(t, blk.Flags.Has(mblk.Dynamic))
	assert.Equal(t, mblk.Down, blk.Direction)
	assert.True(t, c.HasTarget(77))

	shortcuts := m.Shortcuts("factory")
	require.Len(t, shortcuts, 1)
	assert.Equal(t, blk.ID, shortcuts[0].BlockID)
}

func TestHandleMbinfoGrowsExistingBlock(t *testing.T) {
	reg, m, c := newTestSetup(t)

	mb := wire.MbinfoFrame{DeviceNr: 2, Nbytes: 64, DeviceName: "iob", MblkName: "exp"}
	m.HandleMbinfo(c, 77, mb)

	mb.Nbytes = 200
	m.HandleMbinfo(c, 77, mb)

	blk, ok := reg.FindBlock("factory", "iob", 2, "exp")
	require.True(t, ok)
	assert.Equal(t, 200, blk.Nbytes())
	assert.Len(t, m.Shortcuts("factory"), 1, "re-announce must not duplicate the shortcut")
}

func TestInfoBlockPopulatesSignals(t *testing.T) {
	reg, m, c := newTestSetup(t)

	m.HandleMbinfo(c, 70, wire.MbinfoFrame{
		DeviceNr: 2, Nbytes: 64, DeviceName: "iob", MblkName: "exp",
	})
	m.HandleMbinfo(c, 71, wire.MbinfoFrame{
		DeviceNr: 2, Nbytes: 512, DeviceName: "iob", MblkName: InfoBlockName,
	})

	infoBlk, ok := reg.FindBlock("factory", "iob", 2, InfoBlockName)
	require.True(t, ok)

	payload, err := EncodeInfoBlock(&InfoBlock{
		MemoryBlocks: []MemoryBlockInfo{{
			Name:      "exp",
			Direction: "up",
			Signals: []SignalInfo{
				{Name: "temperature", Addr: 0, N: 1, Type: "float"},
				{Name: "dip_switches", Addr: 5, N: 8, Type: "boolean"},
			},
		}},
	}, false)
	require.NoError(t, err)
	require.LessOrEqual(t, len(payload), infoBlk.Nbytes())

	// Simulate the target buffer promoting received info content.
	infoBlk.PromoteReceived(0, payload)

	sig, ok := m.ResolveSignal("factory", "temperature")
	require.True(t, ok)
	assert.Equal(t, "exp", sig.MblkName)
	assert.Equal(t, 0, sig.Addr)
	assert.Equal(t, TypeFloat, sig.Type)

	blk, ok := m.ResolveBlock("factory", sig)
	require.True(t, ok)
	assert.Equal(t, "exp", blk.MblkName)

	_, ok = m.ResolveSignal("factory", "no_such_signal")
	assert.False(t, ok)
}

func TestInfoBlockReparseReplacesSignals(t *testing.T) {
	reg, m, c := newTestSetup(t)

	m.HandleMbinfo(c, 71, wire.MbinfoFrame{
		DeviceNr: 2, Nbytes: 512, DeviceName: "iob", MblkName: InfoBlockName,
	})
	infoBlk, _ := reg.FindBlock("factory", "iob", 2, InfoBlockName)

	first, err := EncodeInfoBlock(&InfoBlock{MemoryBlocks: []MemoryBlockInfo{{
		Name: "exp", Direction: "up",
		Signals: []SignalInfo{{Name: "old_signal", Addr: 0, N: 1, Type: "int"}},
	}}}, false)
	require.NoError(t, err)
	infoBlk.PromoteReceived(0, first)

	// Clear before writing the shorter second payload so stale JSON bytes
	// don't trail the new document.
	for i := range infoBlk.Bytes {
		infoBlk.Bytes[i] = 0
	}
	second, err := EncodeInfoBlock(&InfoBlock{MemoryBlocks: []MemoryBlockInfo{{
		Name: "exp", Direction: "up",
		Signals: []SignalInfo{{Name: "new_signal", Addr: 0, N: 1, Type: "int"}},
	}}}, false)
	require.NoError(t, err)
	infoBlk.PromoteReceived(0, second)

	_, ok := m.ResolveSignal("factory", "old_signal")
	assert.False(t, ok, "re-announced info block must replace prior signals")
	_, ok = m.ResolveSignal("factory", "new_signal")
	assert.True(t, ok)
}

func TestSignalReadWriteThroughResolvedBlock(t *testing.T) {
	_, m, c := newTestSetup(t)

	m.HandleMbinfo(c, 70, wire.MbinfoFrame{
		DeviceNr: 2, Nbytes: 64, DeviceName: "iob", MblkName: "imp",
	})
	m.HandleMbinfo(c, 71, wire.MbinfoFrame{
		DeviceNr: 2, Nbytes: 512, DeviceName: "iob", MblkName: InfoBlockName,
	})

	infoBlk, _ := m.reg.FindBlock("factory", "iob", 2, InfoBlockName)
	payload, err := EncodeInfoBlock(&InfoBlock{MemoryBlocks: []MemoryBlockInfo{{
		Name: "imp", Direction: "down",
		Signals: []SignalInfo{{Name: "setpoint", Addr: 8, N: 1, Type: "short"}},
	}}}, false)
	require.NoError(t, err)
	infoBlk.PromoteReceived(0, payload)

	want := []byte{0x01, 0x34, 0x12} // state byte + little-endian 0x1234
	require.NoError(t, m.WriteSignal("factory", "setpoint", want))

	got, err := m.ReadSignal("factory", "setpoint")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNetworkDroppedWithLastBlock(t *testing.T) {
	reg, m, c := newTestSetup(t)

	m.HandleMbinfo(c, 77, wire.MbinfoFrame{
		DeviceNr: 2, Nbytes: 64, DeviceName: "iob", MblkName: "exp",
	})
	assert.Contains(t, m.NetworkNames(), "factory")

	blk, _ := reg.FindBlock("factory", "iob", 2, "exp")
	require.NoError(t, reg.DeleteBlock(blk.ID))

	assert.NotContains(t, m.NetworkNames(), "factory")
}
