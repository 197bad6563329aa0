package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iocafe/iocom-go/pkg/mblk"
)

func TestCreateBlockFiresNewMemoryBlockAndNewNetworkAndDevice(t *testing.T) {
	r := New("controller", "factory1", 1, nil)

	var events []Event
	r.OnEvent(func(e Event) { events = append(events, e) })

	b, err := r.CreateBlock("temperature", "sensor1", 2, "factory1", 32, mblk.Up, mblk.AutoSync)
	require.NoError(t, err)
	require.NotZero(t, b.ID)

	require.Len(t, events, 3)
	kinds := []EventKind{events[0].Kind, events[1].Kind, events[2].Kind}
	require.Contains(t, kinds, EventNewNetwork)
	require.Contains(t, kinds, EventNewDevice)
	require.Contains(t, kinds, EventNewMemoryBlock)
}

func TestCreateSecondBlockSameDeviceDoesNotRefireNewDevice(t *testing.T) {
	r := New("controller", "factory1", 1, nil)
	var newDeviceCount int
	r.OnEvent(func(e Event) {
		if e.Kind == EventNewDevice {
			newDeviceCount++
		}
	})

	_, err := r.CreateBlock("temperature", "sensor1", 2, "factory1", 32, mblk.Up, 0)
	require.NoError(t, err)
	_, err = r.CreateBlock("humidity", "sensor1", 2, "factory1", 32, mblk.Up, 0)
	require.NoError(t, err)

	require.Equal(t, 1, newDeviceCount)
}

func TestDeleteBlockFiresDisconnectEventsWhenLastReference(t *testing.T) {
	r := New("controller", "factory1", 1, nil)
	b, err := r.CreateBlock("temperature", "sensor1", 2, "factory1", 32, mblk.Up, 0)
	require.NoError(t, err)

	var events []Event
	r.OnEvent(func(e Event) { events = append(events, e) })

	require.NoError(t, r.DeleteBlock(b.ID))

	kinds := map[EventKind]bool{}
	for _, e := range events {
		kinds[e.Kind] = true
	}
	require.True(t, kinds[EventMemoryBlockDeleted])
	require.True(t, kinds[EventDeviceDisconnected])
	require.True(t, kinds[EventNetworkDisconnected])
	require.Equal(t, 0, r.BlockCount())
}

func TestDeleteBlockRemovesAttachedBuffers(t *testing.T) {
	r := New("controller", "factory1", 1, nil)
	b, err := r.CreateBlock("temperature", "sensor1", 2, "factory1", 32, mblk.Up, 0)
	require.NoError(t, err)

	sb, err := r.AttachSource(b.ID, 7, 32)
	require.NoError(t, err)
	tb, err := r.AttachTarget(b.ID, 7, 32, false)
	require.NoError(t, err)

	require.NoError(t, r.DeleteBlock(b.ID))

	_, ok := r.SourceBuf(sb.ID)
	require.False(t, ok)
	_, ok = r.TargetBuf(tb.ID)
	require.False(t, ok)
}

func TestAttachSourceRejectsUnknownBlock(t *testing.T) {
	r := New("controller", "factory1", 1, nil)
	_, err := r.AttachSource(999, 1, 32)
	require.Error(t, err)
}

func TestDetachSourceRemovesFromBlockSourceIDs(t *testing.T) {
	r := New("controller", "factory1", 1, nil)
	b, err := r.CreateBlock("temperature", "sensor1", 2, "factory1", 32, mblk.Up, 0)
	require.NoError(t, err)

	sb, err := r.AttachSource(b.ID, 7, 32)
	require.NoError(t, err)
	require.Contains(t, b.SourceIDs, sb.ID)

	r.DetachSource(sb.ID)
	require.NotContains(t, b.SourceIDs, sb.ID)
}

func TestBlockIDsStartAtReservedFloor(t *testing.T) {
	r := New("controller", "factory1", 1, nil)

	for i := 0; i < 3; i++ {
		b, err := r.CreateBlock("blk", "sensor1", 2, "factory1", 32, mblk.Up, 0)
		require.NoError(t, err)
		require.GreaterOrEqual(t, b.ID, uint32(8), "ids below 8 are reserved")
		require.NoError(t, r.DeleteBlock(b.ID))
	}
}
