package transaction

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/metrics"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// Preparer turns a validated amount into a submittable call.
type Preparer struct {
	builder chain.CallBuilder
	logger  LogWriter
	now     func() time.Time
}

// PreparerConfig holds dependencies for the Preparer.
type PreparerConfig struct {
	Builder chain.CallBuilder
	Logger  LogWriter
}

// NewPreparer creates a new Preparer.
func NewPreparer(cfg *PreparerConfig) *Preparer {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Preparer{
		builder: cfg.Builder,
		logger:  logger,
		now:     time.Now,
	}
}

// Prepare estimates the Bank call for amount. Without an account or a
// positive amount the call is disabled and no network request is made.
//
// A failed estimation returns a disabled call together with
// ErrPreparationFailed. A cancelled ctx returns the context error unwrapped.
// Preparation is never retried here; the caller re-prepares when the input
// changes.
func (p *Preparer) Prepare(ctx context.Context, kind chain.Kind, amount *big.Int, account string) (*PreparedCall, error) {
	disabled := &PreparedCall{Kind: kind, Amount: amount, Prepared: p.now()}

	if !kind.IsValid() {
		return disabled, coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{"kind": kind.String()})
	}
	if account == "" || amount == nil || amount.Sign() <= 0 {
		return disabled, nil
	}

	p.logger.Debug("preparing %s of %s wei from %s", kind, amount, account)
	call, err := p.builder.EstimateAndBuildCall(ctx, kind, account, amount)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return disabled, err
		}
		metrics.Global.RecordPrepareFailed()
		p.logger.Error("%s preparation failed: %v", kind, err)
		if errors.Is(err, coffererr.ErrPreparationFailed) {
			return disabled, err
		}
		return disabled, coffererr.WithDetails(coffererr.WithCause(coffererr.ErrPreparationFailed, err), map[string]string{
			"kind":   kind.String(),
			"amount": chain.FormatETH(amount) + " ETH",
		})
	}

	return &PreparedCall{
		Kind:     kind,
		Amount:   new(big.Int).Set(amount),
		Enabled:  true,
		Call:     call,
		Prepared: p.now(),
	}, nil
}
