package config

import (
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// ValidateRPCURL checks that an endpoint uses a node transport scheme.
// An empty URL is valid and means "not configured".
func ValidateRPCURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return coffererr.WithDetails(coffererr.ErrConfigInvalid, map[string]string{"url": raw, "reason": err.Error()})
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return coffererr.WithDetails(coffererr.ErrConfigInvalid, map[string]string{"url": raw, "reason": "unsupported scheme"})
	}
	if u.Host == "" {
		return coffererr.WithDetails(coffererr.ErrConfigInvalid, map[string]string{"url": raw, "reason": "missing host"})
	}
	return nil
}

// Validate reports the first invalid setting.
// The Bank address may be empty; commands that need it check separately.
func (c *Config) Validate() error {
	invalid := func(field, value, reason string) error {
		return coffererr.WithDetails(coffererr.ErrConfigInvalid, map[string]string{
			"field":  field,
			"value":  value,
			"reason": reason,
		})
	}

	if c.Network.RPC == "" {
		return invalid("network.rpc", "", "required")
	}
	if err := ValidateRPCURL(c.Network.RPC); err != nil {
		return err
	}
	if err := ValidateRPCURL(c.Network.WS); err != nil {
		return err
	}
	if c.Bank.Address != "" && !common.IsHexAddress(c.Bank.Address) {
		return invalid("bank.address", c.Bank.Address, "not a hex address")
	}
	if c.Tx.Debounce <= 0 {
		return invalid("tx.debounce", c.Tx.Debounce.String(), "must be positive")
	}
	if c.Tx.PollInterval <= 0 {
		return invalid("tx.poll_interval", c.Tx.PollInterval.String(), "must be positive")
	}
	if c.Tx.EventWait < 0 {
		return invalid("tx.event_wait", c.Tx.EventWait.String(), "must not be negative")
	}
	switch strings.ToLower(c.Tx.GasSpeed) {
	case "slow", "medium", "fast":
	default:
		return invalid("tx.gas_speed", c.Tx.GasSpeed, "must be slow, medium or fast")
	}
	switch strings.ToLower(c.Output.DefaultFormat) {
	case "auto", "text", "json":
	default:
		return invalid("output.default_format", c.Output.DefaultFormat, "must be auto, text or json")
	}
	if c.Journal.Enabled && c.Journal.SegmentThreshold <= 0 {
		return invalid("journal.segment_threshold", "", "must be positive")
	}
	return nil
}
