package idpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocMonotonic(t *testing.T) {
	p := New(8, 0)
	a, err := p.Alloc()
	require.NoError(t, err)
	b, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, uint32(8), a)
	assert.Equal(t, uint32(9), b)
}

func TestFreeThenReuse(t *testing.T) {
	p := New(8, 0)
	a, _ := p.Alloc()
	b, _ := p.Alloc()
	p.Free(a)
	assert.False(t, p.InUse(a))

	c, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, a, c, "freed id should be reused before minting a new one")
	assert.NotEqual(t, b, c)
}

func TestReserveAdvancesCounter(t *testing.T) {
	p := New(1, 0)
	p.Reserve(100)
	next, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, uint32(101), next)
	assert.True(t, p.InUse(100))
}

func TestBoundedSpanReusesFreedIDAfterExhaustion(t *testing.T) {
	p := New(0, 2)
	a, err := p.Alloc()
	require.NoError(t, err)
	b, err := p.Alloc()
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{0, 1}, []uint32{a, b})

	p.Free(a)
	c, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestBoundedSpanExhaustionErrors(t *testing.T) {
	p := New(0, 1)
	_, err := p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	assert.Error(t, err)
}
