// Package bank wires the deposit/withdraw core into a wallet-connected
// session: keystrokes are debounced, validated and prepared per kind,
// submissions are tracked, and chain events are reconciled against the
// session's own transactions so every action is announced exactly once.
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/debounce"
	"github.com/mrz1836/coffer/internal/notify"
	"github.com/mrz1836/coffer/internal/service/amount"
	"github.com/mrz1836/coffer/internal/service/reconcile"
	"github.com/mrz1836/coffer/internal/service/snapshot"
	"github.com/mrz1836/coffer/internal/service/transaction"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// DefaultDebounce is the quiet interval applied to amount input.
const DefaultDebounce = time.Second

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the dependencies of a Session.
type Config struct {
	Ledger chain.Ledger
	Logger LogWriter

	// Hub receives the session's notifications. A private Hub is created
	// when nil.
	Hub *notify.Hub

	Debounce       time.Duration
	ConfirmTimeout time.Duration
	GenesisBlock   uint64

	// Clock drives the debounce timers; tests pass a debounce.ManualClock.
	Clock debounce.Clock
}

// Session is one user's connection to the Bank.
type Session struct {
	ledger     chain.Ledger
	logger     LogWriter
	hub        *notify.Hub
	ownsHub    bool
	delay      time.Duration
	clock      debounce.Clock
	cache      *snapshot.Cache
	reconciler *reconcile.Reconciler
	preparer   *transaction.Preparer
	desks      map[chain.Kind]*desk

	mu        sync.Mutex
	account   string
	ctx       context.Context //nolint:containedctx // lifetime of the connection
	cancel    context.CancelFunc
	stopWatch func()
}

// New creates a disconnected Session.
func New(cfg *Config) *Session {
	s := &Session{
		ledger: cfg.Ledger,
		logger: cfg.Logger,
		hub:    cfg.Hub,
		delay:  cfg.Debounce,
		clock:  cfg.Clock,
		desks:  make(map[chain.Kind]*desk),
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.hub == nil {
		s.hub = notify.NewHub()
		s.ownsHub = true
	}
	if s.delay <= 0 {
		s.delay = DefaultDebounce
	}
	if s.clock == nil {
		s.clock = debounce.RealClock()
	}

	s.cache = snapshot.New(&snapshot.Config{
		Source:       cfg.Ledger,
		Logger:       s.logger,
		GenesisBlock: cfg.GenesisBlock,
		OnUpdate:     s.snapshotUpdated,
	})
	s.reconciler = reconcile.New(&reconcile.Config{
		Publisher: s.hub,
		Folder:    s.cache,
		Logger:    s.logger,
	})
	s.preparer = transaction.NewPreparer(&transaction.PreparerConfig{
		Builder: cfg.Ledger,
		Logger:  s.logger,
	})

	for _, kind := range chain.Kinds() {
		d := &desk{kind: kind}
		d.tracker = transaction.NewTracker(&transaction.TrackerConfig{
			Kind:           kind,
			Submitter:      cfg.Ledger,
			Publisher:      s.hub,
			Logger:         s.logger,
			ConfirmTimeout: cfg.ConfirmTimeout,
			Effects: transaction.Effects{
				OnConfirmed: func(ctx context.Context, o transaction.Outcome) {
					s.confirmed(ctx, d, o)
				},
			},
		})
		s.desks[kind] = d
	}
	return s
}

// Connect binds the session to account, starts watching Bank events and
// loads the initial snapshot. Connecting while connected to another account
// disconnects first.
func (s *Session) Connect(ctx context.Context, account string) (*snapshot.Snapshot, error) {
	if account == "" {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidAddress, map[string]string{"reason": "empty account"})
	}

	s.mu.Lock()
	current := s.account
	s.mu.Unlock()
	if current != "" {
		s.Disconnect()
	}

	connCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.account = account
	s.ctx = connCtx
	s.cancel = cancel
	s.mu.Unlock()

	for _, d := range s.desks {
		d.mu.Lock()
		d.debouncer = debounce.New(s.delay, func(v string) {
			s.debounced(d, v)
		}, debounce.WithClock(s.clock))
		d.mu.Unlock()
	}

	stop, err := s.reconciler.Watch(connCtx, s.ledger)
	if err != nil {
		s.Disconnect()
		return nil, coffererr.Wrap(err, "subscribing to bank events")
	}
	s.mu.Lock()
	if s.ctx != connCtx {
		s.mu.Unlock()
		stop()
		return nil, coffererr.ErrNotConnected
	}
	s.stopWatch = stop
	s.mu.Unlock()

	s.logger.Debug("connected %s", account)
	snap, err := s.cache.Refresh(ctx, account)
	if err != nil && !errors.Is(err, coffererr.ErrSuperseded) {
		s.Disconnect()
		return nil, err
	}
	return snap, nil
}

// Disconnect cancels debounce timers, preparations, refreshes and
// client-side tracking. Broadcast transactions are not affected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cancel, stop, account := s.cancel, s.stopWatch, s.account
	s.account = ""
	s.ctx = nil
	s.cancel = nil
	s.stopWatch = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if stop != nil {
		stop()
	}
	for _, d := range s.desks {
		d.detach()
		d.tracker.Abandon()
	}
	s.reconciler.Reset()
	s.cache.Reset()
	s.logger.Debug("disconnected %s", account)
}

// Close disconnects and, if the session created its Hub, closes it.
func (s *Session) Close() {
	s.Disconnect()
	if s.ownsHub {
		s.hub.Close()
	}
}

// Account returns the connected account, or "".
func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Subscribe returns a stream of every notification published after the
// call. Nothing is dropped or duplicated.
func (s *Session) Subscribe() *notify.Subscription {
	return s.hub.Subscribe()
}

// Observe registers fn for every lifecycle transition of both kinds.
func (s *Session) Observe(fn func(transaction.Transition)) {
	for _, kind := range chain.Kinds() {
		s.desks[kind].tracker.Observe(fn)
	}
}

// SetInput records a keystroke-level value for kind. Every value is kept;
// validation happens once the value has been stable for the debounce delay.
func (s *Session) SetInput(kind chain.Kind, raw string) error {
	d, err := s.connectedDesk(kind)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.input = raw
	deb := d.debouncer
	d.mu.Unlock()

	if deb != nil {
		deb.Observe(raw)
	}
	return nil
}

// Settle ends the quiet period for kind immediately and waits for the
// resulting preparation. It returns the prepared call together with the
// validation or preparation error of the current value, if any.
func (s *Session) Settle(ctx context.Context, kind chain.Kind) (*transaction.PreparedCall, error) {
	d, err := s.connectedDesk(kind)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	deb := d.debouncer
	d.mu.Unlock()
	if deb != nil {
		deb.Flush()
	}

	d.mu.Lock()
	done := d.prepDone
	d.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.valErr != nil:
		return &transaction.PreparedCall{Kind: kind}, d.valErr
	case d.prepared == nil:
		return &transaction.PreparedCall{Kind: kind}, nil
	default:
		prepared := *d.prepared
		return &prepared, d.prepErr
	}
}

// Submit broadcasts the prepared call of kind. It fails locally with
// ErrNotEnabled when nothing is prepared and ErrTxInFlight while a
// transaction of kind is being tracked.
func (s *Session) Submit(ctx context.Context, kind chain.Kind) (*chain.TxHandle, error) {
	d, err := s.connectedDesk(kind)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	prepared := d.prepared
	d.mu.Unlock()

	return d.tracker.Submit(ctx, prepared)
}

// Wait blocks until the tracked transaction of kind has finished and its
// effects have run.
func (s *Session) Wait(ctx context.Context, kind chain.Kind) error {
	d, ok := s.desks[kind]
	if !ok {
		return coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{"kind": kind.String()})
	}
	select {
	case <-d.tracker.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh reloads the snapshot from the ledger.
func (s *Session) Refresh(ctx context.Context) (*snapshot.Snapshot, error) {
	account := s.Account()
	if account == "" {
		return nil, coffererr.ErrNotConnected
	}
	return s.cache.Refresh(ctx, account)
}

// View returns a consistent copy of everything the presentation shows.
func (s *Session) View() View {
	v := View{
		Account:  s.Account(),
		Snapshot: s.cache.Current(),
	}
	v.Connected = v.Account != ""
	for _, kind := range chain.Kinds() {
		d := s.desks[kind]
		dv := d.view()
		dv.State = d.tracker.State()
		if tx := d.tracker.Current(); tx != nil {
			dv.TxHash = tx.Hash
		}
		dv.AwaitingEvent = s.reconciler.Pending(kind)
		v.Desks = append(v.Desks, dv)
	}
	return v
}

func (s *Session) connectedDesk(kind chain.Kind) (*desk, error) {
	d, ok := s.desks[kind]
	if !ok {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{"kind": kind.String()})
	}
	if s.Account() == "" {
		return nil, coffererr.ErrNotConnected
	}
	return d, nil
}

func (s *Session) connection() (context.Context, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx, s.account
}

func (s *Session) balance() *big.Int {
	if snap := s.cache.Current(); snap != nil {
		return snap.Balance
	}
	return nil
}

// debounced handles a value that survived the quiet interval.
func (s *Session) debounced(d *desk, value string) {
	ctx, account := s.connection()
	if ctx == nil {
		return
	}
	s.evaluate(ctx, account, d, value, false)
}

// snapshotUpdated re-checks settled values against the new balance.
func (s *Session) snapshotUpdated(snap *snapshot.Snapshot) {
	if snap == nil {
		return
	}
	ctx, account := s.connection()
	if ctx == nil {
		return
	}
	for _, kind := range chain.Kinds() {
		d := s.desks[kind]
		d.mu.Lock()
		value := d.debounced
		d.mu.Unlock()
		if value != "" {
			s.evaluate(ctx, account, d, value, true)
		}
	}
}

// evaluate validates value and starts its preparation. With revalidate set
// nothing happens unless the outcome differs from the current one.
func (s *Session) evaluate(ctx context.Context, account string, d *desk, value string, revalidate bool) {
	res, err := amount.Validate(value, d.kind, s.balance())
	problem := amount.Problem(err)

	d.mu.Lock()
	if revalidate && (d.debounced != value ||
		((d.valErr == nil) == (err == nil) && d.problem == problem && sameAmount(d.amount, res.Amount))) {
		d.mu.Unlock()
		return
	}
	d.cancelPrepLocked()
	d.debounced = value
	d.amount = res.Amount
	d.valErr = err
	d.problem = problem
	d.prepared = nil
	d.prepErr = nil
	d.prepDone = nil

	if err != nil {
		report := d.report(value, problem)
		d.mu.Unlock()
		if report {
			s.hub.Publish(notify.Notification{
				Level:   notify.LevelWarning,
				Title:   fmt.Sprintf("Invalid %s amount.", d.kind),
				Message: problem,
				Kind:    d.kind,
			})
		}
		return
	}
	if res.Inert {
		d.mu.Unlock()
		return
	}

	gen := d.prepGen
	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.prepCancel = cancel
	d.prepDone = done
	d.mu.Unlock()

	go s.prepare(pctx, cancel, done, d, gen, value, res.Amount, account)
}

func (s *Session) prepare(ctx context.Context, cancel context.CancelFunc, done chan struct{},
	d *desk, gen uint64, value string, wei *big.Int, account string,
) {
	defer close(done)
	defer cancel()

	prepared, err := s.preparer.Prepare(ctx, d.kind, wei, account)

	d.mu.Lock()
	if gen != d.prepGen {
		d.mu.Unlock()
		return
	}
	d.prepared = prepared
	d.prepErr = err
	d.prepCancel = nil
	report := err != nil && errors.Is(err, coffererr.ErrPreparationFailed) && d.report(value, err.Error())
	d.mu.Unlock()

	if report {
		s.hub.Publish(notify.Notification{
			Level:   notify.LevelError,
			Title:   fmt.Sprintf("%s cannot be prepared.", d.kind.Title()),
			Message: err.Error(),
			Kind:    d.kind,
		})
	}
}

// report reports whether problem has not yet been announced for value and
// marks it announced. d.mu must be held.
func (d *desk) report(value, problem string) bool {
	key := value + "\x00" + problem
	if d.reported == key {
		return false
	}
	d.reported = key
	return true
}

// confirmed runs the confirmation effects: correlate, clear, refresh.
func (s *Session) confirmed(ctx context.Context, d *desk, o transaction.Outcome) {
	s.reconciler.Record(o.Kind, o.Tx.Hash, o.Amount)
	d.clearInput()

	account := s.Account()
	if account == "" {
		return
	}
	if _, err := s.cache.Refresh(ctx, account); err != nil && !errors.Is(err, coffererr.ErrSuperseded) {
		s.logger.Error("refresh after %s %s failed: %v", o.Kind, o.Tx.Hash, err)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
