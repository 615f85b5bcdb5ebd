package config

import "time"

// DefaultRPCURL is the default ledger RPC endpoint, a local development node.
const DefaultRPCURL = "http://127.0.0.1:8545"

// DefaultDebounce is the quiet interval before typed amounts are prepared.
const DefaultDebounce = time.Second

// DefaultEventWait is how long a command waits for the Bank event after
// its transaction is confirmed.
const DefaultEventWait = 30 * time.Second

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.coffer",
		Network: NetworkConfig{
			RPC:            DefaultRPCURL,
			ChainID:        0, // read from the node
			RateLimit:      10,
			RateBurst:      20,
			RequestTimeout: 30 * time.Second,
		},
		Bank: BankConfig{
			GenesisBlock: 0,
		},
		Tx: TxConfig{
			Debounce:       DefaultDebounce,
			GasSpeed:       "medium",
			ConfirmTimeout: 5 * time.Minute,
			PollInterval:   2 * time.Second,
			Confirmations:  1,
			EventWait:      DefaultEventWait,
		},
		Wallet: WalletConfig{
			AccountIndex: 0,
			MemoryLock:   true,
		},
		Journal: JournalConfig{
			Enabled:          true,
			SegmentThreshold: 1000,
			MaxSegments:      10,
			SyncWrites:       false,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "", // <home>/coffer.log
		},
	}
}
