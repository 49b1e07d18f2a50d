package chain

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Program-derived addresses. The seed layouts mirror the deployed program's
// account constraints and are as much a part of the wire contract as the
// instruction encodings.

// PoolAddress derives the pool account PDA from its numeric id.
func PoolAddress(programID solana.PublicKey, poolID int64) (solana.PublicKey, error) {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, uint64(poolID))

	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("pool"), seed}, programID)
	return addr, err
}

// ParticipantAddress derives the participant account PDA for a wallet within
// a pool.
func ParticipantAddress(programID, pool, wallet solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("participant"), pool[:], wallet[:]}, programID)
	return addr, err
}

// VaultAddress derives the stake vault PDA owned by the pool.
func VaultAddress(programID, pool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("vault"), pool[:]}, programID)
	return addr, err
}
