package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iocafe/iocom-go/pkg/iocstatus"
)

func TestEncodeDecodeRoundTripSocket(t *testing.T) {
	payload := []byte("hello iocom")
	opts := EncodeOpts{
		Transport: TransportTCP,
		MblkID:    12,
		Addr:      40,
	}
	buf, err := Encode(opts, payload)
	require.NoError(t, err)

	h, got, n, err := Decode(buf, TransportTCP)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, uint32(12), h.MblkID)
	assert.Equal(t, uint32(40), h.Addr)
	assert.Equal(t, payload, got)
}

func TestEncodeDecodeRoundTripSerial(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	opts := EncodeOpts{
		Transport: TransportSerial,
		FrameNr:   5,
		MblkID:    300,
		Addr:      70000,
	}
	buf, err := Encode(opts, payload)
	require.NoError(t, err)

	h, got, n, err := Decode(buf, TransportSerial)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, byte(5), h.FrameNr)
	assert.Equal(t, uint32(300), h.MblkID)
	assert.Equal(t, uint32(70000), h.Addr)
	assert.Equal(t, payload, got)
}

func TestSerialChecksumRejectsBitFlip(t *testing.T) {
	opts := EncodeOpts{Transport: TransportSerial, FrameNr: 1, MblkID: 8, Addr: 0}
	buf, err := Encode(opts, []byte{0xAA})
	require.NoError(t, err)

	corrupt := append([]byte(nil), buf...)
	corrupt[len(corrupt)-1] ^= 0x01 // flip a payload bit

	_, _, _, err = Decode(corrupt, TransportSerial)
	assert.ErrorIs(t, err, iocstatus.ErrChecksumError)
}

func TestAddrWidthSelection(t *testing.T) {
	cases := []struct {
		addr  uint32
		flags Flags
	}{
		{0, 0},
		{255, 0},
		{256, FlagAddrHasTwoBytes},
		{65535, FlagAddrHasTwoBytes},
		{65536, FlagAddrHasFourByte},
	}
	for _, c := range cases {
		got := addrFlags(c.addr)
		assert.Equal(t, c.flags, got, "addr=%d", c.addr)
	}
}

func TestFrameNrWrap(t *testing.T) {
	assert.Equal(t, byte(2), NextFrameNr(1))
	assert.Equal(t, byte(1), NextFrameNr(FrameNrMax))
	assert.NoError(t, CheckFrameNr(FrameNrMax, 1))
	assert.Error(t, CheckFrameNr(1, 3))
}

func TestDecodeIncompleteReturnsPending(t *testing.T) {
	opts := EncodeOpts{Transport: TransportTCP, MblkID: 1, Addr: 1}
	buf, err := Encode(opts, []byte("payload"))
	require.NoError(t, err)

	_, _, _, err = Decode(buf[:len(buf)-2], TransportTCP)
	assert.Error(t, err)
}

func TestFrameOverheadMatchesEncodedSize(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	tests := []struct {
		transport Transport
		mblkID    uint32
		addr      uint32
	}{
		{TransportTCP, 8, 0},
		{TransportTCP, 8, 300},
		{TransportTCP, 300, 70000},
		{TransportSerial, 8, 0},
		{TransportSerial, 300, 65535},
		{TransportTLS, 9, 255},
	}
	for _, tt := range tests {
		frame, err := Encode(EncodeOpts{
			Transport: tt.transport,
			FrameNr:   1,
			MblkID:    tt.mblkID,
			Addr:      tt.addr,
		}, payload)
		require.NoError(t, err)
		require.Equal(t, len(frame)-len(payload), FrameOverhead(tt.transport, tt.mblkID, tt.addr),
			"transport=%v mblk=%d addr=%d", tt.transport, tt.mblkID, tt.addr)
	}
}
