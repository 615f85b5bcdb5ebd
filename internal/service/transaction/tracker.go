package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/metrics"
	"github.com/mrz1836/coffer/internal/notify"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// closedDone is returned by Done while no transaction is tracked.
//
//nolint:gochecknoglobals // shared immutable closed channel
var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Tracker drives the lifecycle of one kind's transactions:
// Idle -> Preparing -> Pending -> Confirmed|Failed -> Idle.
// At most one transaction per Tracker is in flight.
type Tracker struct {
	kind           chain.Kind
	submitter      chain.Submitter
	publisher      Publisher
	effects        Effects
	logger         LogWriter
	confirmTimeout time.Duration
	now            func() time.Time

	mu        sync.Mutex
	state     State
	gen       uint64
	tx        *chain.TxHandle
	amount    *big.Int
	cancel    context.CancelFunc
	done      chan struct{}
	observers []func(Transition)
}

// TrackerConfig holds dependencies for a Tracker.
type TrackerConfig struct {
	Kind      chain.Kind
	Submitter chain.Submitter
	Publisher Publisher
	Effects   Effects
	Logger    LogWriter

	// ConfirmTimeout bounds the confirmation wait. Zero waits until abandoned.
	ConfirmTimeout time.Duration
}

// NewTracker creates an Idle Tracker.
func NewTracker(cfg *TrackerConfig) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Tracker{
		kind:           cfg.Kind,
		submitter:      cfg.Submitter,
		publisher:      cfg.Publisher,
		effects:        cfg.Effects,
		logger:         logger,
		confirmTimeout: cfg.ConfirmTimeout,
		now:            time.Now,
		done:           closedDone,
	}
}

// Kind returns the kind this Tracker handles.
func (t *Tracker) Kind() chain.Kind {
	return t.kind
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current returns the tracked transaction, or nil before broadcast.
func (t *Tracker) Current() *chain.TxHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tx == nil {
		return nil
	}
	tx := *t.tx
	return &tx
}

// Done returns a channel closed once the tracked transaction has finished
// its effects and the track is Idle again. It is already closed when Idle.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Observe registers fn to be called for every state change.
func (t *Tracker) Observe(fn func(Transition)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Submit broadcasts a prepared call and starts tracking it.
//
// A disabled call fails with ErrNotEnabled and a busy track with
// ErrTxInFlight; neither touches the network, the state, or the
// notification stream. The broadcast uses ctx. The confirmation wait runs
// in the background on its own context and ends on confirmation, failure,
// or Abandon.
func (t *Tracker) Submit(ctx context.Context, prepared *PreparedCall) (*chain.TxHandle, error) {
	if prepared == nil || !prepared.Enabled || prepared.Call == nil {
		metrics.Global.RecordRejectedLocally()
		return nil, coffererr.WithDetails(coffererr.ErrNotEnabled, map[string]string{"kind": t.kind.String()})
	}
	if prepared.Kind != t.kind {
		metrics.Global.RecordRejectedLocally()
		return nil, coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{
			"kind":     prepared.Kind.String(),
			"expected": t.kind.String(),
		})
	}

	t.mu.Lock()
	if t.state != Idle {
		state := t.state
		t.mu.Unlock()
		metrics.Global.RecordRejectedLocally()
		return nil, coffererr.WithDetails(coffererr.ErrTxInFlight, map[string]string{
			"kind":  t.kind.String(),
			"state": state.String(),
		})
	}
	t.gen++
	gen := t.gen
	trackCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	t.tx = nil
	t.amount = new(big.Int).Set(prepared.Amount)
	obs := t.changeLocked(Preparing, "", nil)
	t.mu.Unlock()
	obs()

	t.logger.Debug("broadcasting %s of %s wei", t.kind, prepared.Amount)
	tx, err := t.submitter.Submit(ctx, prepared.Call)
	if err != nil {
		if !errors.Is(err, coffererr.ErrTxRejected) {
			err = coffererr.WithCause(coffererr.ErrTxRejected, err)
		}
		t.fail(trackCtx, gen, Preparing, Outcome{Kind: t.kind, Amount: prepared.Amount, Err: err})
		return nil, err
	}
	metrics.Global.RecordSubmitted()
	t.logger.Debug("%s broadcast as %s", t.kind, tx.Hash)

	t.mu.Lock()
	if t.gen != gen || t.state != Preparing {
		// Abandoned during broadcast; the transaction is on its way regardless.
		t.mu.Unlock()
		return tx, nil
	}
	t.tx = tx
	obs = t.changeLocked(Pending, tx.Hash, nil)
	t.mu.Unlock()
	obs()

	go t.await(trackCtx, gen, tx, prepared.Amount)
	return tx, nil
}

// Abandon stops tracking the current transaction without notifying. The
// broadcast transaction itself is unaffected. The track returns to Idle.
func (t *Tracker) Abandon() {
	t.mu.Lock()
	if t.state == Idle {
		t.mu.Unlock()
		return
	}
	hash := ""
	if t.tx != nil {
		hash = t.tx.Hash
	}
	t.gen++
	t.cancel()
	done := t.done
	t.done = closedDone
	t.tx = nil
	obs := t.changeLocked(Idle, hash, nil)
	t.mu.Unlock()

	metrics.Global.RecordAbandoned()
	t.logger.Debug("%s tracking abandoned (tx %s)", t.kind, hash)
	obs()
	close(done)
}

func (t *Tracker) await(ctx context.Context, gen uint64, tx *chain.TxHandle, amount *big.Int) {
	waitCtx := ctx
	if t.confirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.confirmTimeout)
		defer cancel()
	}

	receipt, err := t.submitter.AwaitConfirmation(waitCtx, tx)
	if ctx.Err() != nil {
		return
	}

	outcome := Outcome{Kind: t.kind, Amount: amount, Tx: tx, Receipt: receipt}
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		outcome.Err = coffererr.WithDetails(coffererr.WithCause(coffererr.ErrTimeout, err), map[string]string{"tx": tx.Hash})
	case err != nil && !errors.Is(err, coffererr.ErrConfirmationFailed) && !errors.Is(err, coffererr.ErrTimeout):
		outcome.Err = coffererr.WithCause(coffererr.ErrConfirmationFailed, err)
	case err != nil:
		outcome.Err = err
	case receipt != nil && !receipt.Success:
		outcome.Err = coffererr.WithDetails(coffererr.ErrConfirmationFailed, map[string]string{"tx": tx.Hash})
	}

	if outcome.Err != nil {
		t.fail(ctx, gen, Pending, outcome)
		return
	}
	t.confirm(ctx, gen, outcome)
}

func (t *Tracker) confirm(ctx context.Context, gen uint64, o Outcome) {
	if !t.advance(gen, Pending, Confirmed, o.Tx.Hash, nil) {
		return
	}
	metrics.Global.RecordConfirmed()
	t.logger.Debug("%s %s confirmed", t.kind, o.Tx.Hash)

	if t.effects.OnConfirmed != nil {
		t.effects.OnConfirmed(ctx, o)
	}
	if ctx.Err() == nil {
		t.publish(notify.Notification{
			Level:   notify.LevelSuccess,
			Title:   fmt.Sprintf("%s was successful.", t.kind.Title()),
			Message: fmt.Sprintf("%s ETH", chain.FormatETH(o.Amount)),
			Kind:    t.kind,
			TxHash:  o.Tx.Hash,
		})
	}
	t.finish(gen, Confirmed, o.Tx.Hash)
}

func (t *Tracker) fail(ctx context.Context, gen uint64, from State, o Outcome) {
	hash := ""
	if o.Tx != nil {
		hash = o.Tx.Hash
	}
	if !t.advance(gen, from, Failed, hash, o.Err) {
		return
	}
	metrics.Global.RecordFailed()
	t.logger.Error("%s failed: %v", t.kind, o.Err)

	if t.effects.OnFailed != nil {
		t.effects.OnFailed(o)
	}
	if ctx.Err() == nil {
		t.publish(notify.Notification{
			Level:   notify.LevelError,
			Title:   fmt.Sprintf("%s failed.", t.kind.Title()),
			Message: o.Err.Error(),
			Kind:    t.kind,
			TxHash:  hash,
		})
	}
	t.finish(gen, Failed, hash)
}

// finish returns a terminal track to Idle and releases Done waiters.
func (t *Tracker) finish(gen uint64, from State, hash string) {
	t.mu.Lock()
	if t.gen != gen || t.state != from {
		t.mu.Unlock()
		return
	}
	t.cancel()
	done := t.done
	t.done = closedDone
	t.tx = nil
	obs := t.changeLocked(Idle, hash, nil)
	t.mu.Unlock()
	obs()
	close(done)
}

func (t *Tracker) advance(gen uint64, from, to State, hash string, err error) bool {
	t.mu.Lock()
	if t.gen != gen || t.state != from {
		t.mu.Unlock()
		return false
	}
	obs := t.changeLocked(to, hash, err)
	t.mu.Unlock()
	obs()
	return true
}

// changeLocked sets the state and returns a function notifying observers,
// to be called after t.mu is released.
func (t *Tracker) changeLocked(to State, hash string, err error) func() {
	tr := Transition{
		Kind:   t.kind,
		From:   t.state,
		To:     to,
		TxHash: hash,
		Amount: t.amount,
		Err:    err,
		At:     t.now(),
	}
	t.state = to
	observers := append([]func(Transition){}, t.observers...)
	return func() {
		for _, fn := range observers {
			fn(tr)
		}
	}
}

func (t *Tracker) publish(n notify.Notification) {
	if t.publisher != nil {
		t.publisher.Publish(n)
	}
}
