// Package config provides configuration management for Coffer.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/coffer/internal/fileutil"
)

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version"`
	Home    string        `yaml:"home"`
	Network NetworkConfig `yaml:"network"`
	Bank    BankConfig    `yaml:"bank"`
	Tx      TxConfig      `yaml:"tx"`
	Wallet  WalletConfig  `yaml:"wallet"`
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// NetworkConfig defines how the ledger node is reached.
type NetworkConfig struct {
	RPC            string        `yaml:"rpc"`
	WS             string        `yaml:"ws,omitempty"`
	ChainID        int64         `yaml:"chain_id"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// BankConfig identifies the Bank contract.
type BankConfig struct {
	Address      string `yaml:"address"`
	GenesisBlock uint64 `yaml:"genesis_block"`
}

// TxConfig defines transaction lifecycle settings.
type TxConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	GasSpeed       string        `yaml:"gas_speed"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Confirmations  uint64        `yaml:"confirmations"`
	EventWait      time.Duration `yaml:"event_wait"`
}

// WalletConfig defines where the signing key lives.
type WalletConfig struct {
	Keystore     string `yaml:"keystore"`
	AccountIndex uint32 `yaml:"account_index"`
	MemoryLock   bool   `yaml:"memory_lock"`
}

// JournalConfig defines the transaction journal.
type JournalConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Dir              string `yaml:"dir"`
	SegmentThreshold int    `yaml:"segment_threshold"`
	MaxSegments      int    `yaml:"max_segments"`
	SyncWrites       bool   `yaml:"sync_writes"`
}

// MetricsConfig defines the metrics endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(ExpandPath(home), "config.yaml")
}

// DefaultHome returns the default coffer home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coffer"
	}
	return filepath.Join(home, ".coffer")
}

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// GetHome returns the coffer home directory path.
func (c *Config) GetHome() string {
	return ExpandPath(c.Home)
}

// GetRPC returns the ledger RPC URL.
func (c *Config) GetRPC() string {
	return c.Network.RPC
}

// GetWS returns the websocket URL used for log subscriptions.
func (c *Config) GetWS() string {
	return c.Network.WS
}

// GetBankAddress returns the Bank contract address.
func (c *Config) GetBankAddress() string {
	return c.Bank.Address
}

// KeystorePath returns the resolved keystore file path.
func (c *Config) KeystorePath() string {
	if c.Wallet.Keystore != "" {
		return ExpandPath(c.Wallet.Keystore)
	}
	return filepath.Join(c.GetHome(), "keystore.age")
}

// JournalDir returns the resolved journal directory.
func (c *Config) JournalDir() string {
	if c.Journal.Dir != "" {
		return ExpandPath(c.Journal.Dir)
	}
	return filepath.Join(c.GetHome(), "journal")
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// BalanceCachePath returns the file holding last known balances.
func (c *Config) BalanceCachePath() string {
	return filepath.Join(c.GetHome(), "cache", "balances.json")
}

// GetEventWait returns the wait for the Bank event after confirmation.
// Zero means DefaultEventWait.
func (c *Config) GetEventWait() time.Duration {
	if c.Tx.EventWait <= 0 {
		return DefaultEventWait
	}
	return c.Tx.EventWait
}

// GetLoggingFile returns the log file path, coffer.log in the home
// directory unless configured.
func (c *Config) GetLoggingFile() string {
	if c.Logging.File != "" {
		return ExpandPath(c.Logging.File)
	}
	return filepath.Join(c.GetHome(), "coffer.log")
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}
