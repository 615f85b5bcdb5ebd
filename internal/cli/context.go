package cli

import (
	"context"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/mrz1836/coffer/internal/bank"
	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/chain/eth"
	"github.com/mrz1836/coffer/internal/config"
	"github.com/mrz1836/coffer/internal/journal"
	"github.com/mrz1836/coffer/internal/notify"
	"github.com/mrz1836/coffer/internal/output"
	"github.com/mrz1836/coffer/internal/wallet"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// Ledger is a connected Bank client.
type Ledger interface {
	chain.Ledger
	Close()
}

// dialLedgerFn opens the Bank client; tests replace it with a fake.
//
//nolint:gochecknoglobals // test seam
var dialLedgerFn = dialLedger

// keystoreOptions are appended to every keystore; tests lower the work factor.
//
//nolint:gochecknoglobals // test seam
var keystoreOptions []wallet.KeystoreOption

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Cfg *config.Config
	Log *config.Logger
	Fmt *output.Formatter
}

type cmdContextKey struct{}

// NewCommandContext creates a context with the given dependencies.
func NewCommandContext(c *config.Config, l *config.Logger, f *output.Formatter) *CommandContext {
	return &CommandContext{Cfg: c, Log: l, Fmt: f}
}

// SetCmdContext attaches cc to the command's context.
func SetCmdContext(cmd *cobra.Command, cc *CommandContext) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	cmd.SetContext(context.WithValue(base, cmdContextKey{}, cc))
}

// GetCmdContext returns the command's context, falling back to the globals.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	if ctx := cmd.Context(); ctx != nil {
		if cc, ok := ctx.Value(cmdContextKey{}).(*CommandContext); ok {
			return cc
		}
	}
	return NewCommandContext(cfg, logger, formatter)
}

// Keystore returns the configured keystore.
func (c *CommandContext) Keystore() *wallet.Keystore {
	opts := append([]wallet.KeystoreOption{wallet.WithMemoryLock(c.Cfg.Wallet.MemoryLock)}, keystoreOptions...)
	return wallet.NewKeystore(c.Cfg.KeystorePath(), opts...)
}

// ResolveAccount returns flag as a checksummed address, or the keystore's
// address when flag is empty.
func (c *CommandContext) ResolveAccount(flag string) (string, error) {
	if flag != "" {
		return eth.NormalizeAddress(flag)
	}
	meta, err := c.Keystore().Metadata()
	if err != nil {
		return "", coffererr.WithSuggestion(err, "pass --account or create a wallet with 'coffer wallet create'")
	}
	return meta.Address, nil
}

// Ledger dials the configured node. A nil signer gives a read-only client.
func (c *CommandContext) Ledger(ctx context.Context, signer eth.Signer) (Ledger, error) {
	if err := c.Cfg.Validate(); err != nil {
		return nil, coffererr.WithSuggestion(err, "fix "+config.Path(c.Cfg.Home)+" or run 'coffer config set'")
	}
	if c.Cfg.GetBankAddress() == "" {
		return nil, coffererr.WithSuggestion(
			coffererr.WithDetails(coffererr.ErrConfigInvalid, map[string]string{"field": "bank.address", "reason": "required"}),
			"run 'coffer config set bank.address 0x...' or set "+config.EnvBankAddress,
		)
	}
	return dialLedgerFn(ctx, c, signer)
}

// Session creates a bank session over ledger publishing to hub.
func (c *CommandContext) Session(ledger chain.Ledger, hub *notify.Hub) *bank.Session {
	return bank.New(&bank.Config{
		Ledger:         ledger,
		Logger:         c.Log,
		Hub:            hub,
		Debounce:       c.Cfg.Tx.Debounce,
		ConfirmTimeout: c.Cfg.Tx.ConfirmTimeout,
		GenesisBlock:   c.Cfg.Bank.GenesisBlock,
	})
}

// Journal opens the transaction journal, or returns nil when disabled.
func (c *CommandContext) Journal() (*journal.Journal, error) {
	if !c.Cfg.Journal.Enabled {
		return nil, nil //nolint:nilnil // disabled journal
	}
	return journal.Open(journal.Config{
		Dir:              c.Cfg.JournalDir(),
		SegmentThreshold: c.Cfg.Journal.SegmentThreshold,
		MaxSegments:      c.Cfg.Journal.MaxSegments,
		SyncWrites:       c.Cfg.Journal.SyncWrites,
	}, c.Log.Zap())
}

func dialLedger(ctx context.Context, c *CommandContext, signer eth.Signer) (Ledger, error) {
	endpoint := c.Cfg.GetWS()
	if endpoint == "" {
		endpoint = c.Cfg.GetRPC()
	}
	speed, err := eth.ParseGasSpeed(c.Cfg.Tx.GasSpeed)
	if err != nil {
		return nil, err
	}

	c.Log.Debug("dialing %s", endpoint)
	backend, err := eth.Dial(ctx, endpoint)
	if err != nil {
		return nil, coffererr.WithSuggestion(
			coffererr.WithCause(coffererr.ErrNetworkError, err),
			"check network.rpc in your configuration",
		)
	}

	opts := &eth.ClientOptions{
		Bank:          c.Cfg.GetBankAddress(),
		Endpoint:      endpoint,
		Signer:        signer,
		GasSpeed:      speed,
		PollInterval:  c.Cfg.Tx.PollInterval,
		Confirmations: c.Cfg.Tx.Confirmations,
		Limiter:       chain.NewRateLimiter(c.Cfg.Network.RateLimit, c.Cfg.Network.RateBurst),
		Logger:        c.Log,
	}
	if c.Cfg.Network.ChainID > 0 {
		opts.ChainID = big.NewInt(c.Cfg.Network.ChainID)
	}
	client, err := eth.NewClient(backend, opts)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return client, nil
}
