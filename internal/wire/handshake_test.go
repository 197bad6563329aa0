package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelloRoundTrip(t *testing.T) {
	h := HandshakeHello{Role: RoleClient, NetworkName: "acme", RequestTrustCrt: true}
	buf := EncodeHello(h)

	got, n, err := DecodeHello(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, h, got)
}

func TestHelloWithoutNetworkName(t *testing.T) {
	h := HandshakeHello{Role: RoleNetworkService}
	buf := EncodeHello(h)
	got, n, err := DecodeHello(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "", got.NetworkName)
}

func TestHelloIncompleteWaitsForMore(t *testing.T) {
	h := HandshakeHello{Role: RoleClient, NetworkName: "acme"}
	buf := EncodeHello(h)
	_, n, err := DecodeHello(buf[:1])
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTrustCertRoundTrip(t *testing.T) {
	cert := []byte("fake-der-bytes")
	buf := EncodeTrustCert(cert)
	got, n, err := DecodeTrustCert(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, cert, got)
}

func TestTrustCertEmpty(t *testing.T) {
	buf := EncodeTrustCert(nil)
	got, n, err := DecodeTrustCert(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Nil(t, got)
}
