package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Environment variable names.
const (
	EnvHome         = "COFFER_HOME"
	EnvRPC          = "COFFER_RPC"
	EnvWS           = "COFFER_WS"
	EnvBankAddress  = "COFFER_BANK_ADDRESS"
	EnvDebounce     = "COFFER_DEBOUNCE"
	EnvOutputFormat = "COFFER_OUTPUT_FORMAT"
	EnvVerbose      = "COFFER_VERBOSE"
	EnvLogLevel     = "COFFER_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvRPC); v != "" {
		cfg.Network.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvWS); v != "" {
		cfg.Network.WS = SanitizeURL(v)
	}

	if v := os.Getenv(EnvBankAddress); v != "" {
		cfg.Bank.Address = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvDebounce); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			cfg.Tx.Debounce = d
		}
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL strips whitespace and control characters that copy-paste
// tends to leave in RPC URLs.
func SanitizeURL(url string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, url)
}
