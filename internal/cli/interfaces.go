package cli

import (
	"github.com/mrz1836/coffer/internal/bank"
	"github.com/mrz1836/coffer/internal/chain/eth"
	"github.com/mrz1836/coffer/internal/config"
	"github.com/mrz1836/coffer/internal/output"
)

// Compile-time interface checks.
var (
	_ ConfigProvider = (*config.Config)(nil)
	_ LogWriter      = (*config.Logger)(nil)
	_ FormatProvider = (*output.Formatter)(nil)
	_ bank.LogWriter = (*config.Logger)(nil)
	_ eth.LogWriter  = (*config.Logger)(nil)
	_ Ledger         = (*eth.Client)(nil)
)

// ConfigProvider provides read access to configuration values.
// This interface enables mocking configuration in tests.
type ConfigProvider interface {
	// GetHome returns the coffer home directory path.
	GetHome() string

	// GetRPC returns the node RPC URL.
	GetRPC() string

	// GetWS returns the websocket URL used for live events.
	GetWS() string

	// GetBankAddress returns the Bank contract address.
	GetBankAddress() string

	// KeystorePath returns the keystore file path.
	KeystorePath() string

	// JournalDir returns the transaction journal directory.
	JournalDir() string

	// BalanceCachePath returns the last known balance cache file.
	BalanceCachePath() string

	// GetLoggingLevel returns the configured logging level.
	GetLoggingLevel() string

	// GetLoggingFile returns the configured log file path.
	GetLoggingFile() string

	// GetOutputFormat returns the default output format.
	GetOutputFormat() string

	// IsVerbose returns true if verbose output is enabled.
	IsVerbose() bool
}

// LogWriter provides logging capabilities.
// This interface enables mocking logging in tests.
type LogWriter interface {
	// Debug logs a debug-level message.
	Debug(format string, args ...any)

	// Error logs an error-level message.
	Error(format string, args ...any)

	// Close closes the logger and releases resources.
	Close() error
}

// FormatProvider provides output format information.
// This interface enables mocking output formatting in tests.
type FormatProvider interface {
	// Format returns the current output format.
	Format() output.Format
}
