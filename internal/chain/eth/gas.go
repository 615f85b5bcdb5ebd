package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// GasSpeed represents the transaction speed preference.
type GasSpeed string

const (
	// GasSpeedSlow uses lower gas price for cheaper, slower transactions.
	GasSpeedSlow GasSpeed = "slow"
	// GasSpeedMedium uses the node's suggested gas price.
	GasSpeedMedium GasSpeed = "medium"
	// GasSpeedFast uses higher gas price for faster confirmation.
	GasSpeedFast GasSpeed = "fast"

	// slowPercent reduces gas price by 20% for slow transactions.
	slowPercent = 80
	// fastPercent increases gas price by 20% for fast transactions.
	fastPercent = 120

	// gasLimitHeadroom is added to every estimate, in percent.
	gasLimitHeadroom = 20
)

// ParseGasSpeed parses a string into a GasSpeed.
func ParseGasSpeed(s string) (GasSpeed, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slow":
		return GasSpeedSlow, nil
	case "", "medium":
		return GasSpeedMedium, nil
	case "fast":
		return GasSpeedFast, nil
	default:
		return "", coffererr.WithDetails(coffererr.ErrInvalidGasSpeed, map[string]string{
			"speed":   s,
			"allowed": "slow, medium, or fast",
		})
	}
}

// GasPrices contains gas prices for different speeds.
type GasPrices struct {
	Slow   *big.Int
	Medium *big.Int
	Fast   *big.Int
}

// For returns the price for speed, defaulting to medium.
func (p *GasPrices) For(speed GasSpeed) *big.Int {
	switch speed {
	case GasSpeedSlow:
		return p.Slow
	case GasSpeedFast:
		return p.Fast
	case GasSpeedMedium:
		return p.Medium
	default:
		return p.Medium
	}
}

// GasPrices fetches the suggested gas price and derives all speed levels.
func (c *Client) GasPrices(ctx context.Context) (*GasPrices, error) {
	var suggested *big.Int
	err := c.call(ctx, "eth_gasPrice", func(ctx context.Context) error {
		var err error
		suggested, err = c.backend.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting suggested gas price: %w", err)
	}

	return &GasPrices{
		Slow:   percentOf(suggested, slowPercent),
		Medium: suggested,
		Fast:   percentOf(suggested, fastPercent),
	}, nil
}

// FormatGasPrice formats a gas price in wei as Gwei.
func FormatGasPrice(weiPrice *big.Int) string {
	if weiPrice == nil {
		return "0 Gwei"
	}

	gwei := new(big.Float).SetInt(weiPrice)
	gwei.Quo(gwei, new(big.Float).SetInt64(1_000_000_000))
	return fmt.Sprintf("%.2f Gwei", gwei)
}

// withHeadroom pads a gas estimate so small state changes between
// estimation and inclusion do not run the call out of gas.
func withHeadroom(limit uint64) uint64 {
	return limit + limit*gasLimitHeadroom/100
}

// percentOf returns n * pct / 100, truncated.
func percentOf(n *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(n, big.NewInt(pct))
	return out.Quo(out, big.NewInt(100))
}
