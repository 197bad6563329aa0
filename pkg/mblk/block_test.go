package mblk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopExtend(uint32, uint32, uint32) {}

func TestNewRejectsSmallBlock(t *testing.T) {
	_, err := New(8, "acme", "iob1", 1, "exp", 10, Up, 0)
	assert.Error(t, err)
}

func TestNewRejectsZeroID(t *testing.T) {
	_, err := New(0, "acme", "iob1", 1, "exp", 32, Up, 0)
	assert.Error(t, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	b, err := New(8, "acme", "iob1", 1, "exp", 32, Up, 0)
	require.NoError(t, err)

	require.NoError(t, b.Write(0, []byte{0x01}, 0, noopExtend))
	out := make([]byte, 1)
	n, err := b.Read(0, out, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0x01), out[0])
	assert.True(t, b.Changed.Set)
	assert.Equal(t, uint32(0), b.Changed.Start)
}

func TestWriteClipsToBounds(t *testing.T) {
	b, err := New(8, "acme", "iob1", 1, "exp", 24, Up, 0)
	require.NoError(t, err)
	err = b.Write(20, []byte{1, 2, 3, 4, 5, 6}, 0, noopExtend)
	require.NoError(t, err)
	assert.Equal(t, uint32(23), b.Changed.End)
}

func TestWriteRejectsStatic(t *testing.T) {
	b, err := New(8, "acme", "iob1", 1, "info", 32, Up, Static)
	require.NoError(t, err)
	assert.Error(t, b.Write(0, []byte{1}, 0, noopExtend))
}

func TestWriteExtendsAttachedSourceBuffers(t *testing.T) {
	b, err := New(8, "acme", "iob1", 1, "exp", 32, Up, 0)
	require.NoError(t, err)
	b.SourceIDs = []uint32{100, 200}

	var extended []uint32
	require.NoError(t, b.Write(5, []byte{1, 2}, 0, func(sourceID uint32, addr, n uint32) {
		extended = append(extended, sourceID)
	}))
	assert.ElementsMatch(t, []uint32{100, 200}, extended)
}

func TestResizeRequiresAllowResizeFlag(t *testing.T) {
	b, err := New(8, "acme", "iob1", 1, "exp", 24, Up, 0)
	require.NoError(t, err)
	assert.Error(t, b.Resize(100))

	b2, err := New(9, "acme", "iob1", 1, "exp", 24, Up, AllowResize)
	require.NoError(t, err)
	require.NoError(t, b2.Resize(100))
	assert.Equal(t, 100, b2.Nbytes())
}

func TestBidirectionalLocalChangedBitmap(t *testing.T) {
	b, err := New(8, "acme", "iob1", 1, "exp", 32, Up, Bidirectional)
	require.NoError(t, err)
	require.NoError(t, b.Write(4, []byte{1, 2, 3}, 0, noopExtend))

	runs := b.LocalChangedRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, uint32(4), runs[0].Start)
	assert.Equal(t, uint32(6), runs[0].End)

	b.ClearLocalChanged()
	assert.Empty(t, b.LocalChangedRuns())
}

func TestPromoteReceivedFiresReceiveCallback(t *testing.T) {
	b, err := New(8, "acme", "iob1", 1, "exp", 32, Up, 0)
	require.NoError(t, err)

	var gotReason CallbackReason
	var gotAddr, gotN uint32
	b.Callbacks = append(b.Callbacks, func(blk *Block, addr, n uint32, reason CallbackReason) {
		gotReason, gotAddr, gotN = reason, addr, n
	})

	b.PromoteReceived(2, []byte{9, 9})
	assert.Equal(t, CallbackReceive, gotReason)
	assert.Equal(t, uint32(2), gotAddr)
	assert.Equal(t, uint32(2), gotN)
	assert.Equal(t, byte(9), b.Bytes[2])
}

func TestWriteSwap16(t *testing.T) {
	b, err := New(8, "acme", "iob1", 1, "exp", 24, Up, 0)
	require.NoError(t, err)
	require.NoError(t, b.Write(0, []byte{0x01, 0x02}, WriteSwap16, noopExtend))
	assert.Equal(t, []byte{0x02, 0x01}, b.Bytes[0:2])
}
