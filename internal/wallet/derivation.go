package wallet

import (
	"fmt"
	"strconv"

	"github.com/tyler-smith/go-bip32"

	"github.com/mrz1836/coffer/internal/chain/eth"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// BIP44 path components for Ethereum accounts.
const (
	purpose  = 44
	coinType = 60
	account  = 0
	external = 0

	privateKeyLen = 32
)

// Account is one derived key's public view.
type Account struct {
	Index   uint32 `json:"index"`
	Path    string `json:"path"`
	Address string `json:"address"`
}

// DerivationPath returns the BIP44 path m/44'/60'/0'/0/index.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%s", purpose, coinType, account, external, strconv.FormatUint(uint64(index), 10))
}

// DerivePrivateKey derives the 32-byte private key at m/44'/60'/0'/0/index.
// The caller should zero the returned key after use.
func DerivePrivateKey(seed []byte, index uint32) ([]byte, error) {
	if len(seed) == 0 {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidInput, map[string]string{"reason": "empty seed"})
	}

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, coffererr.Wrap(err, "deriving master key")
	}

	path := []uint32{
		bip32.FirstHardenedChild + purpose,
		bip32.FirstHardenedChild + coinType,
		bip32.FirstHardenedChild + account,
		external,
		index,
	}
	for _, child := range path {
		if key, err = key.NewChildKey(child); err != nil {
			return nil, coffererr.Wrap(err, "deriving %s", DerivationPath(index))
		}
	}

	if len(key.Key) != privateKeyLen {
		return nil, coffererr.WithDetails(coffererr.ErrGeneral, map[string]string{"reason": "unexpected key length"})
	}
	return append([]byte(nil), key.Key...), nil
}

// DeriveAccount derives the account at index and returns its address.
func DeriveAccount(seed []byte, index uint32) (*Account, error) {
	priv, err := DerivePrivateKey(seed, index)
	if err != nil {
		return nil, err
	}
	defer eth.ZeroPrivateKey(priv)

	addr, err := eth.DeriveAddress(priv)
	if err != nil {
		return nil, err
	}

	return &Account{
		Index:   index,
		Path:    DerivationPath(index),
		Address: addr,
	}, nil
}
