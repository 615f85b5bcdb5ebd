package eth

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a raw 32-byte private key. The caller's slice is
// zeroed once parsed.
func NewKeySigner(privateKey []byte) (*KeySigner, error) {
	defer ZeroPrivateKey(privateKey)

	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the signing account.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignTx signs tx with an EIP-155 signer for chainID.
func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return signed, nil
}

// DeriveAddress derives the checksummed account address of a private key.
func DeriveAddress(privateKey []byte) (string, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// ZeroPrivateKey zeros out a private key byte slice.
func ZeroPrivateKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
