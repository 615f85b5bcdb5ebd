package cli

import (
	"errors"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/coffer/internal/cache"
	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/output"
	"github.com/mrz1836/coffer/internal/service/snapshot"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// balanceCacheRetention drops accounts not looked up for this long.
const balanceCacheRetention = 90 * 24 * time.Hour

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// balanceAccount overrides the keystore account.
	balanceAccount string
	// balanceCached shows the last known balance without contacting the node.
	balanceCached bool
)

// balanceCmd shows the Bank balance of an account.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the Bank balance of your account",
	Long: `Show the ETH held by the Bank for your account together with the number
of deposits and withdrawals recorded on-chain since the Bank's genesis block.

The account defaults to the keystore's address; no password is needed.
Every successful lookup is cached. With --cached, or when the node cannot be
reached, the last known balance is shown instead.`,
	Example: `  coffer balance
  coffer balance --account 0x742d35Cc6634C0532925a3b844Bc454e4438f44e
  coffer balance --cached -o json`,
	Args: cobra.NoArgs,
	RunE: runBalance,
}

// BalanceResponse is the output of the balance command.
type BalanceResponse struct {
	Account     string `json:"account"`
	Bank        string `json:"bank"`
	Balance     string `json:"balance"`
	BalanceWei  string `json:"balance_wei"`
	Deposits    int    `json:"deposits"`
	Withdrawals int    `json:"withdrawals"`
	Timestamp   string `json:"timestamp"`
	Cached      bool   `json:"cached,omitempty"`
	Stale       bool   `json:"stale,omitempty"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	balanceCmd.GroupID = groupBank
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceAccount, "account", "", "account address (default: keystore account)")
	balanceCmd.Flags().BoolVar(&balanceCached, "cached", false, "show the last known balance without contacting the node")
}

func runBalance(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	account, err := cc.ResolveAccount(balanceAccount)
	if err != nil {
		return err
	}

	storage := cache.NewFileStorage(cc.Cfg.BalanceCachePath())
	balances, err := storage.Load()
	if err != nil {
		cc.Log.Error("balance cache: %v", err)
	}
	if balances == nil {
		balances = cache.NewBalanceCache()
	}

	var resp *BalanceResponse
	if balanceCached {
		resp, err = cachedBalance(cc, balances, account)
	} else {
		resp, err = liveBalance(cmd, cc, account)
		switch {
		case err == nil:
			balances.Set(cache.BalanceEntry{
				Bank:        resp.Bank,
				Account:     resp.Account,
				BalanceWei:  resp.BalanceWei,
				Deposits:    resp.Deposits,
				Withdrawals: resp.Withdrawals,
			})
			balances.Prune(balanceCacheRetention)
			if saveErr := storage.Save(balances); saveErr != nil {
				cc.Log.Error("saving balance cache: %v", saveErr)
			}
		case errors.Is(err, coffererr.ErrNetworkError):
			if cached, cacheErr := cachedBalance(cc, balances, account); cacheErr == nil {
				cc.Log.Error("node unreachable, showing cached balance: %v", err)
				resp, err = cached, nil
			}
		}
	}
	if err != nil {
		return err
	}

	if cc.Fmt.IsJSON() {
		return cc.Fmt.Print(resp)
	}

	w := cmd.OutOrStdout()
	out(w, "Account:     %s\n", resp.Account)
	out(w, "Bank:        %s\n", resp.Bank)
	out(w, "Balance:     %s ETH\n", resp.Balance)
	out(w, "Deposits:    %d\n", resp.Deposits)
	out(w, "Withdrawals: %d\n", resp.Withdrawals)
	if resp.Cached {
		out(w, "Cached at:   %s\n", resp.Timestamp)
		if resp.Stale {
			output.Warn("This balance is cached and may be out of date.")
		}
	}
	return nil
}

func liveBalance(cmd *cobra.Command, cc *CommandContext, account string) (*BalanceResponse, error) {
	ctx, cancel := contextWithTimeout(cmd, cc.Cfg.Network.RequestTimeout)
	defer cancel()

	ledger, err := cc.Ledger(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	snaps := snapshot.New(&snapshot.Config{
		Source:       ledger,
		Logger:       cc.Log,
		GenesisBlock: cc.Cfg.Bank.GenesisBlock,
	})
	snap, err := snaps.Refresh(ctx, account)
	if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		Account:     account,
		Bank:        cc.Cfg.GetBankAddress(),
		Balance:     chain.FormatETH(snap.Balance),
		BalanceWei:  snap.Balance.String(),
		Deposits:    len(snap.AccountEvents(chain.Deposit, account)),
		Withdrawals: len(snap.AccountEvents(chain.Withdraw, account)),
		Timestamp:   snap.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func cachedBalance(cc *CommandContext, balances *cache.BalanceCache, account string) (*BalanceResponse, error) {
	bank := cc.Cfg.GetBankAddress()
	entry, ok, age := balances.Get(bank, account)
	if !ok {
		return nil, coffererr.WithSuggestion(
			coffererr.WithDetails(coffererr.ErrNotFound, map[string]string{"account": account}),
			"run 'coffer balance' while the node is reachable",
		)
	}
	wei, ok := new(big.Int).SetString(entry.BalanceWei, 10)
	if !ok {
		wei = new(big.Int)
	}
	return &BalanceResponse{
		Account:     account,
		Bank:        bank,
		Balance:     chain.FormatETH(wei),
		BalanceWei:  wei.String(),
		Deposits:    entry.Deposits,
		Withdrawals: entry.Withdrawals,
		Timestamp:   entry.UpdatedAt.UTC().Format(time.RFC3339),
		Cached:      true,
		Stale:       age > cache.DefaultStaleness,
	}, nil
}
