package devicenr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEntriesRoundTrip(t *testing.T) {
	in := []entry{
		{uniqueID: uid(1), nr: 5, lastUsed: 100},
		{uniqueID: uid(9), nr: 12, lastUsed: 200},
	}

	out, err := decodeEntries(encodeEntries(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeEntriesRejectsMalformedData(t *testing.T) {
	_, err := decodeEntries([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeEntriesEmpty(t *testing.T) {
	out, err := decodeEntries(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
