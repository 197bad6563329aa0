package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestProvider(t *testing.T) *BadgerProvider {
	t.Helper()
	p, err := OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestBadgerLoadMissingReturnsNil(t *testing.T) {
	p := openTestProvider(t)
	data, err := p.Load(context.Background(), BlockWifiConfig)
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestBadgerSaveThenLoadRoundTrip(t *testing.T) {
	p := openTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, BlockNetworkConfig, []byte("mynetwork"), false))

	got, err := p.Load(ctx, BlockNetworkConfig)
	require.NoError(t, err)
	require.Equal(t, []byte("mynetwork"), got)
}

func TestBadgerSaveWithCommitFlushes(t *testing.T) {
	p := openTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, BlockAutoDeviceNrTable, []byte{1, 2, 3, 4}, true))

	got, err := p.Load(ctx, BlockAutoDeviceNrTable)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestBadgerSaveOverwritesPreviousValue(t *testing.T) {
	p := openTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, BlockAccountConfig, []byte("v1"), false))
	require.NoError(t, p.Save(ctx, BlockAccountConfig, []byte("v2"), false))

	got, err := p.Load(ctx, BlockAccountConfig)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)
}

func TestBadgerKeysAreIsolatedPerBlockID(t *testing.T) {
	p := openTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, BlockWifiConfig, []byte("wifi"), false))
	require.NoError(t, p.Save(ctx, BlockClientCertChain, []byte("cert"), false))

	wifi, err := p.Load(ctx, BlockWifiConfig)
	require.NoError(t, err)
	require.Equal(t, []byte("wifi"), wifi)

	cert, err := p.Load(ctx, BlockClientCertChain)
	require.NoError(t, err)
	require.Equal(t, []byte("cert"), cert)
}

func TestBadgerLoadRespectsCanceledContext(t *testing.T) {
	p := openTestProvider(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Load(ctx, BlockWifiConfig)
	require.Error(t, err)
}
