package chain

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

func TestPoolAddress_Deterministic(t *testing.T) {
	a, err := PoolAddress(testProgram, 7)
	require.NoError(t, err)

	b, err := PoolAddress(testProgram, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := PoolAddress(testProgram, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestParticipantAddress_VariesByWallet(t *testing.T) {
	pool, err := PoolAddress(testProgram, 1)
	require.NoError(t, err)

	w1 := solana.NewWallet().PublicKey()
	w2 := solana.NewWallet().PublicKey()

	a, err := ParticipantAddress(testProgram, pool, w1)
	require.NoError(t, err)
	b, err := ParticipantAddress(testProgram, pool, w2)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVaultAddress_BoundToPool(t *testing.T) {
	p1, err := PoolAddress(testProgram, 1)
	require.NoError(t, err)
	p2, err := PoolAddress(testProgram, 2)
	require.NoError(t, err)

	v1, err := VaultAddress(testProgram, p1)
	require.NoError(t, err)
	v2, err := VaultAddress(testProgram, p2)
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}
