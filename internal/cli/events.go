package cli

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// eventsKind limits output to one kind.
	eventsKind string
	// eventsAccount overrides the keystore account.
	eventsAccount string
	// eventsFromBlock overrides the Bank genesis block.
	eventsFromBlock uint64
	// eventsAll includes events of every account.
	eventsAll bool
)

// eventsCmd lists Bank events.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List Bank deposit and withdraw events",
	Long: `List the etherDeposited and etherWithdrawed events emitted by the Bank,
oldest first.

By default only events of your account are shown, starting at the configured
genesis block.`,
	Example: `  coffer events
  coffer events --kind withdraw
  coffer events --all --from-block 19000000 -o json`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

// EventsResponse is the output of the events command.
type EventsResponse struct {
	Account string        `json:"account,omitempty"`
	Events  []chain.Event `json:"events"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	eventsCmd.GroupID = groupBank
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventsKind, "kind", "", "only show one kind: deposit or withdraw")
	eventsCmd.Flags().StringVar(&eventsAccount, "account", "", "account address (default: keystore account)")
	eventsCmd.Flags().Uint64Var(&eventsFromBlock, "from-block", 0, "first block to scan (default: bank.genesis_block)")
	eventsCmd.Flags().BoolVar(&eventsAll, "all", false, "show events of every account")
	eventsCmd.MarkFlagsMutuallyExclusive("account", "all")
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx, cancel := contextWithTimeout(cmd, cc.Cfg.Network.RequestTimeout)
	defer cancel()

	kinds := chain.Kinds()
	if eventsKind != "" {
		kind, err := chain.ParseKind(eventsKind)
		if err != nil {
			return err
		}
		kinds = []chain.Kind{kind}
	}

	account := ""
	if !eventsAll {
		var err error
		if account, err = cc.ResolveAccount(eventsAccount); err != nil {
			return err
		}
	}

	from := cc.Cfg.Bank.GenesisBlock
	if eventsFromBlock > 0 {
		from = eventsFromBlock
	}

	ledger, err := cc.Ledger(ctx, nil)
	if err != nil {
		return err
	}
	defer ledger.Close()

	resp := EventsResponse{Account: account, Events: []chain.Event{}}
	for _, kind := range kinds {
		events, err := ledger.QueryHistoricalEvents(ctx, kind, from, nil)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if account == "" || strings.EqualFold(ev.Account, account) {
				resp.Events = append(resp.Events, ev)
			}
		}
	}
	sort.SliceStable(resp.Events, func(i, j int) bool {
		a, b := resp.Events[i], resp.Events[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		return a.LogIndex < b.LogIndex
	})

	if cc.Fmt.IsJSON() {
		return cc.Fmt.Print(resp)
	}

	w := cmd.OutOrStdout()
	if len(resp.Events) == 0 {
		outln(w, "No events found.")
		return nil
	}
	table := output.NewTable("BLOCK", "KIND", "AMOUNT (ETH)", "ACCOUNT", "TX")
	table.AlignRight(0, 2)
	for _, ev := range resp.Events {
		table.AddRow(
			strconv.FormatUint(ev.BlockNumber, 10),
			ev.Kind.String(),
			chain.FormatETH(ev.Amount),
			ev.Account,
			ev.TxHash,
		)
	}
	return table.Render(w)
}
