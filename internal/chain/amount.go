package chain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// maxUint256 is the largest value a contract uint256 parameter can hold.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxUint256 returns a copy of 2^256-1.
func MaxUint256() *big.Int {
	return new(big.Int).Set(maxUint256)
}

// ParseDecimalAmount parses a decimal amount string to big.Int with the given decimal places.
// For example, "1.5" with 18 decimals returns 1500000000000000000.
// Amounts that are negative, have more fractional digits than decimalPlaces,
// or do not fit a uint256 once scaled return ErrInvalidAmount.
func ParseDecimalAmount(amount string, decimalPlaces int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidAmount, map[string]string{"reason": "empty"})
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "not a number",
		})
	}

	if d.IsNegative() {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "negative",
		})
	}

	scaled := d.Shift(decimalPlaces)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "too many decimal places",
		})
	}

	result := scaled.BigInt()
	if result.Cmp(maxUint256) > 0 {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidAmount, map[string]string{
			"amount": amount,
			"reason": "too large",
		})
	}

	return result, nil
}

// ParseETH parses an ether amount into wei.
func ParseETH(amount string) (*big.Int, error) {
	return ParseDecimalAmount(amount, WeiDecimals)
}

// FormatDecimalAmount converts a big.Int to a human-readable string with the given decimal places.
// Trailing zeros after the decimal point are removed.
// For example, 1500000000000000000 with 18 decimals returns "1.5".
func FormatDecimalAmount(amount *big.Int, decimalPlaces int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimalPlaces).String()
}

// FormatETH formats a wei amount in ether.
func FormatETH(wei *big.Int) string {
	return FormatDecimalAmount(wei, WeiDecimals)
}
