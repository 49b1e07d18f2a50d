package validation

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

// WalletAddress validates a base58 Solana public key.
func WalletAddress(address string) error {
	if address == "" {
		return errors.New("wallet address is required")
	}

	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return errors.New("invalid wallet address")
	}

	return nil
}
