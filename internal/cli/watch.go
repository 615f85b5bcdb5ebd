package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/metrics"
	"github.com/mrz1836/coffer/internal/notify"
	"github.com/mrz1836/coffer/internal/output"
	"github.com/mrz1836/coffer/internal/service/snapshot"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// watchAccount overrides the keystore account.
	watchAccount string
	// watchMetricsAddr overrides metrics.addr.
	watchMetricsAddr string
	// watchAll prints events of every account.
	watchAll bool
)

// watchCmd follows Bank events as they are emitted.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow Bank events and balance changes",
	Long: `Follow etherDeposited and etherWithdrawed events as the Bank emits them.

Events for your account refresh the displayed balance. With --metrics-addr a
Prometheus endpoint is served at /metrics until the command is interrupted.`,
	Example: `  coffer watch
  coffer watch --all
  coffer watch --metrics-addr 127.0.0.1:9464`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

// WatchEvent is one line of watch output in JSON mode.
type WatchEvent struct {
	Event   *chain.Event `json:"event,omitempty"`
	Amount  string       `json:"amount,omitempty"`
	Balance string       `json:"balance,omitempty"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	watchCmd.GroupID = groupBank
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchAccount, "account", "", "account address (default: keystore account)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default: metrics.addr)")
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "print events of every account")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	account, err := cc.ResolveAccount(watchAccount)
	if err != nil {
		return err
	}
	ledger, err := cc.Ledger(ctx, nil)
	if err != nil {
		return err
	}
	defer ledger.Close()

	hub := notify.NewHub()
	defer hub.Close()
	session := cc.Session(ledger, hub)
	defer session.Close()

	snap, err := session.Connect(ctx, account)
	if err != nil {
		return err
	}
	if !cc.Fmt.IsJSON() && snap != nil {
		out(cmd.ErrOrStderr(), "Watching %s (Bank balance %s ETH). Press Ctrl+C to stop.\n",
			account, chain.FormatETH(snap.Balance))
	}

	addr := cc.Cfg.Metrics.Addr
	if watchMetricsAddr != "" {
		addr = watchMetricsAddr
	}

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []chain.Event)
	for _, kind := range chain.Kinds() {
		stop, subErr := ledger.SubscribeEvents(gctx, kind, func(events []chain.Event) {
			select {
			case batches <- events:
			case <-gctx.Done():
			}
		})
		if subErr != nil {
			return subErr
		}
		defer stop()
	}

	g.Go(func() error {
		for {
			select {
			case events := <-batches:
				printWatchBatch(gctx, cmd, cc, session.Refresh, account, events)
			case <-gctx.Done():
				return nil
			}
		}
	})
	if addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cc, addr)
		})
	}

	return g.Wait()
}

func printWatchBatch(ctx context.Context, cmd *cobra.Command, cc *CommandContext,
	refresh func(context.Context) (*snapshot.Snapshot, error), account string, events []chain.Event,
) {
	ours := false
	for i := range events {
		e := events[i]
		if e.Removed {
			continue
		}
		mine := strings.EqualFold(e.Account, account)
		ours = ours || mine
		if !mine && !watchAll {
			continue
		}
		amount := chain.FormatETH(e.Amount)
		if cc.Fmt.IsJSON() {
			_ = cc.Fmt.Print(WatchEvent{Event: &e, Amount: amount})
			continue
		}
		out(cmd.OutOrStdout(), "%s  block %-9d %-16s %s ETH  %s\n",
			e.ObservedAt.Local().Format(time.TimeOnly), e.BlockNumber, e.Kind.EventName(), amount, e.Account)
	}
	if !ours {
		return
	}

	snap, err := refresh(ctx)
	if err != nil {
		cc.Log.Error("refresh after event: %v", err)
		return
	}
	if snap == nil {
		return
	}
	if cc.Fmt.IsJSON() {
		_ = cc.Fmt.Print(WatchEvent{Balance: chain.FormatETH(snap.Balance)})
		return
	}
	output.Successf("Bank balance: %s ETH", chain.FormatETH(snap.Balance))
}

// serveMetrics serves the global metrics until ctx ends.
func serveMetrics(ctx context.Context, cc *CommandContext, addr string) error {
	handler, err := metrics.Handler(metrics.Global)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	cc.Log.Debug("serving metrics on %s", addr)
	if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
