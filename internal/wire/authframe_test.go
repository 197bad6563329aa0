package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthFrameRoundTripPassword(t *testing.T) {
	a := AuthFrame{
		UserName:    "device1",
		DeviceNr:    42,
		NetworkName: "acme",
		Password:    "secret",
	}
	buf := EncodeAuthFrame(a)
	got, n, err := DecodeAuthFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, a.UserName, got.UserName)
	assert.Equal(t, a.DeviceNr, got.DeviceNr)
	assert.Equal(t, a.NetworkName, got.NetworkName)
	assert.Equal(t, a.Password, got.Password)
	assert.False(t, got.HasUniqueID)
}

func TestAuthFrameRoundTripWithUniqueIDAndWideDeviceNr(t *testing.T) {
	a := AuthFrame{
		UserName:    "iob1",
		DeviceNr:    70000,
		HasUniqueID: true,
		NetworkName: "acme",
	}
	copy(a.UniqueID[:], []byte("0123456789abcdef"))

	buf := EncodeAuthFrame(a)
	got, n, err := DecodeAuthFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, a.DeviceNr, got.DeviceNr)
	assert.True(t, got.HasUniqueID)
	assert.Equal(t, a.UniqueID, got.UniqueID)
}

func TestAuthFrameCloudConCarriesNickname(t *testing.T) {
	a := AuthFrame{
		Flags:        AuthCloudCon,
		UserName:     "iob1",
		NetworkName:  "acme",
		Password:     "jwt-token-value",
		ConnNickname: "relay-7",
	}
	buf := EncodeAuthFrame(a)
	got, n, err := DecodeAuthFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.True(t, got.Flags.Has(AuthCloudCon))
	assert.Equal(t, "relay-7", got.ConnNickname)
	assert.Equal(t, "jwt-token-value", got.Password)
}

func TestDecodeAuthFrameRejectsWrongType(t *testing.T) {
	_, _, err := DecodeAuthFrame([]byte{byte(SysMblkInfo), 0})
	assert.Error(t, err)
}

func TestDecodeAuthFrameIncompleteReturnsZeroConsumed(t *testing.T) {
	full := EncodeAuthFrame(AuthFrame{
		UserName:    "device1",
		DeviceNr:    42,
		NetworkName: "acme",
		Password:    "secret",
	})
	for cut := 0; cut < len(full); cut++ {
		_, n, err := DecodeAuthFrame(full[:cut])
		require.NoError(t, err, "cut=%d", cut)
		assert.Zero(t, n, "cut=%d", cut)
	}
}
