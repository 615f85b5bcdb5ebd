package eth

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// IsValidAddress reports whether s is 0x followed by 40 hex characters.
// The checksum is not verified.
func IsValidAddress(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// ToChecksumAddress converts an address to EIP-55 checksum form.
// Invalid input is returned unchanged.
func ToChecksumAddress(address string) string {
	if !IsValidAddress(address) {
		return address
	}

	lower := strings.ToLower(address[2:])
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	hash := hex.EncodeToString(hasher.Sum(nil))

	var b strings.Builder
	b.Grow(42)
	b.WriteString("0x")
	for i := range 40 {
		c := lower[i]
		if hash[i] >= '8' && c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ValidateChecksumAddress checks the EIP-55 checksum of a mixed-case address.
// All-lowercase and all-uppercase addresses carry no checksum and pass.
func ValidateChecksumAddress(address string) error {
	if !IsValidAddress(address) {
		return coffererr.WithDetails(coffererr.ErrInvalidAddress, map[string]string{
			"address": address,
		})
	}

	body := address[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}

	if expected := ToChecksumAddress(address); address != expected {
		return coffererr.WithDetails(coffererr.ErrInvalidChecksum, map[string]string{
			"expected": expected,
			"actual":   address,
		})
	}
	return nil
}

// ParseAddress validates an account or contract address and returns it in
// go-ethereum form.
func ParseAddress(address string) (common.Address, error) {
	if err := ValidateChecksumAddress(address); err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(address), nil
}

// NormalizeAddress validates and converts an address to EIP-55 checksum form.
func NormalizeAddress(address string) (string, error) {
	if !IsValidAddress(address) {
		return "", coffererr.WithDetails(coffererr.ErrInvalidAddress, map[string]string{
			"address": address,
		})
	}
	return ToChecksumAddress(address), nil
}
