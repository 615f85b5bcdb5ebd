package cli

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/chain/eth"
	"github.com/mrz1836/coffer/internal/notify"
	"github.com/mrz1836/coffer/internal/output"
	"github.com/mrz1836/coffer/internal/service/transaction"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// ErrCancelled is returned when the user declines to submit.
var ErrCancelled = &coffererr.CofferError{
	Code:     "CANCELLED",
	Message:  "transaction cancelled",
	ExitCode: coffererr.ExitGeneral,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// txYes skips the confirmation prompt.
	txYes bool
	// txGasSpeed overrides tx.gas_speed.
	txGasSpeed string
	// txEventWait overrides tx.event_wait.
	txEventWait time.Duration
)

// depositCmd deposits ETH into the Bank.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Deposit ETH into the Bank",
	Long: `Deposit ETH from your wallet into the Bank contract.

The amount is in ETH with up to 18 decimal places. The call is estimated
before anything is signed; after broadcast coffer waits for the receipt and
then for the Bank's etherDeposited event.`,
	Example: `  coffer deposit 0.5
  coffer deposit 1 --yes --gas fast`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBankTx(cmd, chain.Deposit, args[0])
	},
}

// withdrawCmd withdraws ETH from the Bank.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Withdraw ETH from the Bank",
	Long: `Withdraw ETH held by the Bank back to your wallet.

The amount cannot exceed your Bank balance. After broadcast coffer waits for
the receipt and then for the Bank's etherWithdrawed event.`,
	Example: `  coffer withdraw 0.25
  coffer withdraw 2 --yes -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBankTx(cmd, chain.Withdraw, args[0])
	},
}

// TxResponse is the output of deposit and withdraw.
type TxResponse struct {
	Kind          chain.Kind            `json:"kind"`
	Account       string                `json:"account"`
	Amount        string                `json:"amount"`
	MaxFee        string                `json:"max_fee"`
	TxHash        string                `json:"tx_hash"`
	Status        string                `json:"status"`
	EventObserved bool                  `json:"event_observed"`
	Balance       string                `json:"balance,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	for _, c := range []*cobra.Command{depositCmd, withdrawCmd} {
		c.GroupID = groupBank
		rootCmd.AddCommand(c)
		c.Flags().BoolVarP(&txYes, "yes", "y", false, "skip the confirmation prompt")
		c.Flags().StringVar(&txGasSpeed, "gas", "", "gas speed: slow, medium, fast (default: tx.gas_speed)")
		c.Flags().DurationVar(&txEventWait, "event-wait", 0, "how long to wait for the Bank event (default: tx.event_wait)")
	}
}

//nolint:gocyclo // CLI flow walks the whole transaction lifecycle
func runBankTx(cmd *cobra.Command, kind chain.Kind, raw string) error {
	cc := GetCmdContext(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if txGasSpeed != "" {
		if _, err := eth.ParseGasSpeed(txGasSpeed); err != nil {
			return err
		}
		cc.Cfg.Tx.GasSpeed = txGasSpeed
	}
	eventWait := cc.Cfg.GetEventWait()
	if txEventWait > 0 {
		eventWait = txEventWait
	}

	signer, account, err := unlockSigner(cc)
	if err != nil {
		return err
	}

	ledger, err := cc.Ledger(ctx, signer)
	if err != nil {
		return err
	}
	defer ledger.Close()

	hub := notify.NewHub()
	defer hub.Close()
	sub := hub.Subscribe()
	defer sub.Close()

	session := cc.Session(ledger, hub)
	j, err := cc.Journal()
	if err != nil {
		cc.Log.Error("journal unavailable: %v", err)
	} else if j != nil {
		session.Observe(j.Observe)
	}
	defer func() {
		session.Close()
		if j != nil {
			_ = j.Close()
		}
	}()

	var mu sync.Mutex
	var final transaction.Transition
	session.Observe(func(tr transaction.Transition) {
		if tr.To == transaction.Confirmed || tr.To == transaction.Failed {
			mu.Lock()
			final = tr
			mu.Unlock()
		}
	})

	if _, err = session.Connect(ctx, account); err != nil {
		return err
	}
	if err = session.SetInput(kind, raw); err != nil {
		return err
	}
	prepared, err := session.Settle(ctx, kind)
	if err != nil {
		return err
	}
	if !prepared.Enabled {
		return coffererr.WithSuggestion(
			coffererr.WithDetails(coffererr.ErrInvalidAmount, map[string]string{"amount": raw}),
			"enter an amount greater than zero",
		)
	}

	resp := TxResponse{
		Kind:          kind,
		Account:       account,
		Amount:        chain.FormatETH(prepared.Amount),
		MaxFee:        chain.FormatETH(prepared.Call.Fee()),
		Notifications: []notify.Notification{},
	}

	stderr := cmd.ErrOrStderr()
	if !cc.Fmt.IsJSON() {
		balance := "?"
		if snap := session.View().Snapshot; snap != nil {
			balance = chain.FormatETH(snap.Balance)
		}
		out(stderr, "%s %s ETH (Bank balance %s ETH, max fee %s ETH)\n", kind.Title(), resp.Amount, balance, resp.MaxFee)
	}
	if !txYes && !promptConfirmFn("Submit this "+kind.String()+"?") {
		return ErrCancelled
	}

	tx, err := session.Submit(ctx, kind)
	if err != nil {
		return err
	}
	resp.TxHash = tx.Hash
	if !cc.Fmt.IsJSON() {
		out(stderr, "Broadcast %s, waiting for confirmation...\n", tx.Hash)
	}

	observed, err := awaitOutcome(ctx, sub, tx.Hash, eventWait, func(n notify.Notification) {
		if cc.Fmt.IsJSON() {
			resp.Notifications = append(resp.Notifications, n)
			return
		}
		_ = output.Notification(stderr, n, output.FormatText)
	})
	if err != nil {
		return err
	}
	resp.EventObserved = observed

	mu.Lock()
	outcome := final
	mu.Unlock()
	if outcome.To == transaction.Failed {
		return outcome.Err
	}
	resp.Status = transaction.Confirmed.String()
	if snap := session.View().Snapshot; snap != nil {
		resp.Balance = chain.FormatETH(snap.Balance)
	}

	if cc.Fmt.IsJSON() {
		return cc.Fmt.Print(resp)
	}
	if !observed {
		output.Warnf("The %s event was not observed within %s; it may still arrive.", kind.EventName(), eventWait)
	}
	if resp.Balance != "" {
		out(cmd.OutOrStdout(), "Bank balance: %s ETH\n", resp.Balance)
	}
	return nil
}

// awaitOutcome relays notifications about hash until the transaction failed,
// or it succeeded and its event arrived, or eventWait passed after success.
// It reports whether the event was observed.
func awaitOutcome(ctx context.Context, sub *notify.Subscription, hash string, eventWait time.Duration,
	relay func(notify.Notification),
) (bool, error) {
	successes := 0
	var eventTimeout <-chan time.Time
	for {
		select {
		case n, ok := <-sub.C():
			if !ok {
				return false, coffererr.ErrNotConnected
			}
			relay(n)
			if !strings.EqualFold(n.TxHash, hash) {
				continue
			}
			switch n.Level {
			case notify.LevelError:
				return false, nil
			case notify.LevelSuccess:
				successes++
				if successes == 2 {
					return true, nil
				}
				if eventTimeout == nil {
					eventTimeout = time.After(eventWait)
				}
			case notify.LevelWarning:
			}
		case <-eventTimeout:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// unlockSigner prompts for the keystore password and returns the signer and
// its account.
func unlockSigner(cc *CommandContext) (eth.Signer, string, error) {
	ks := cc.Keystore()
	if _, err := ks.Metadata(); err != nil {
		return nil, "", err
	}

	password, err := promptPasswordFn("Keystore password: ")
	if err != nil {
		return nil, "", err
	}
	w, err := ks.Load(string(password))
	clear(password)
	if err != nil {
		return nil, "", err
	}
	defer w.Destroy()

	signer, err := w.Signer()
	if err != nil {
		return nil, "", err
	}
	return signer, w.Address(), nil
}
