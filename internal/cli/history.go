package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/journal"
	"github.com/mrz1836/coffer/internal/output"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// historyKind limits output to one kind.
	historyKind string
	// historyLimit caps the number of attempts shown.
	historyLimit int
)

// historyCmd lists journaled transaction attempts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show deposits and withdrawals submitted from this machine",
	Long: `Show the transaction attempts recorded in the local journal, newest first.

The journal is written by deposit and withdraw when journal.enabled is true.
It is a local history only; on-chain events are listed by 'coffer events'.`,
	Example: `  coffer history
  coffer history --kind deposit --limit 5
  coffer history -o json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

// HistoryResponse is the output of the history command.
type HistoryResponse struct {
	Attempts []journal.Attempt `json:"attempts"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	historyCmd.GroupID = groupBank
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only show one kind: deposit or withdraw")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show at most this many attempts (0 for all)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	var kind chain.Kind
	if historyKind != "" {
		var err error
		if kind, err = chain.ParseKind(historyKind); err != nil {
			return err
		}
	}

	j, err := cc.Journal()
	if err != nil {
		return err
	}
	if j == nil {
		return coffererr.WithSuggestion(
			coffererr.WithDetails(coffererr.ErrNotFound, map[string]string{"journal": "disabled"}),
			"enable it with 'coffer config set journal.enabled true'",
		)
	}
	defer func() { _ = j.Close() }()

	attempts := j.Attempts(kind)
	if historyLimit > 0 && len(attempts) > historyLimit {
		attempts = attempts[:historyLimit]
	}

	if cc.Fmt.IsJSON() {
		return cc.Fmt.Print(HistoryResponse{Attempts: attempts})
	}

	w := cmd.OutOrStdout()
	if len(attempts) == 0 {
		out(w, "No transactions recorded.\n")
		return nil
	}

	table := output.NewTable("STARTED", "KIND", "AMOUNT", "STATUS", "TX HASH", "ERROR")
	table.AlignRight(2)
	for _, a := range attempts {
		table.AddRow(
			a.StartedAt.Local().Format(time.DateTime),
			a.Kind.String(),
			a.Amount,
			a.Status,
			shortHash(a.TxHash),
			a.Error,
		)
	}
	return table.Render(w)
}

// shortHash abbreviates a transaction hash for tables.
func shortHash(hash string) string {
	if len(hash) <= 18 {
		return hash
	}
	return hash[:10] + "…" + hash[len(hash)-6:]
}
