// Package snapshot caches the connected account's Bank balance and the
// Bank's full event history.
//
// A refresh rebuilds the snapshot wholesale from the ledger. Refreshes are
// numbered; a result is applied only if it is newer than the last applied
// one, so a slow refresh can never overwrite a fresher view.
package snapshot

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/metrics"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// Source is the subset of the ledger a refresh reads.
type Source interface {
	chain.BalanceReader
	QueryHistoricalEvents(ctx context.Context, kind chain.Kind, fromBlock uint64, toBlock *uint64) ([]chain.Event, error)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Snapshot is a point-in-time view of the Bank: the connected account's
// balance and every account's deposit and withdrawal history.
type Snapshot struct {
	Account     string        `json:"account"`
	Balance     *big.Int      `json:"balance"`
	Deposits    []chain.Event `json:"deposits"`
	Withdrawals []chain.Event `json:"withdrawals"`
	Seq         uint64        `json:"seq"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Events returns the event list for kind.
func (s *Snapshot) Events(kind chain.Kind) []chain.Event {
	if s == nil {
		return nil
	}
	if kind == chain.Withdraw {
		return s.Withdrawals
	}
	return s.Deposits
}

// AccountEvents returns the events of kind emitted for account.
func (s *Snapshot) AccountEvents(kind chain.Kind, account string) []chain.Event {
	var out []chain.Event
	for _, ev := range s.Events(kind) {
		if sameAccount(ev.Account, account) {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Balance != nil {
		c.Balance = new(big.Int).Set(s.Balance)
	}
	c.Deposits = append([]chain.Event(nil), s.Deposits...)
	c.Withdrawals = append([]chain.Event(nil), s.Withdrawals...)
	return &c
}

// Config holds dependencies for the Cache.
type Config struct {
	Source Source
	Logger LogWriter

	// GenesisBlock is the first block scanned for Bank events.
	GenesisBlock uint64

	// OnUpdate, when set, is called with a copy after every change.
	OnUpdate func(*Snapshot)
}

// Cache owns the current Snapshot. Callers only ever receive copies.
type Cache struct {
	source   Source
	logger   LogWriter
	genesis  uint64
	onUpdate func(*Snapshot)
	now      func() time.Time

	mu      sync.Mutex
	current *Snapshot
	nextSeq uint64
	applied uint64
	epoch   uint64
	cancels map[uint64]context.CancelFunc
}

// New creates an empty Cache.
func New(cfg *Config) *Cache {
	return &Cache{
		source:   cfg.Source,
		logger:   cfg.Logger,
		genesis:  cfg.GenesisBlock,
		onUpdate: cfg.OnUpdate,
		now:      time.Now,
		cancels:  make(map[uint64]context.CancelFunc),
	}
}

// Current returns a copy of the current snapshot, or nil before the first
// successful refresh.
func (c *Cache) Current() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.clone()
}

// Refresh reads the balance of account and the Bank's full deposit and
// withdraw histories and replaces the snapshot.
//
// If a newer refresh has already been applied the result is discarded and
// the newer snapshot is returned with ErrSuperseded. Reset cancels in-flight
// refreshes; their results are discarded the same way.
func (c *Cache) Refresh(ctx context.Context, account string) (*Snapshot, error) {
	c.mu.Lock()
	c.nextSeq++
	seq := c.nextSeq
	epoch := c.epoch
	ctx, cancel := context.WithCancel(ctx)
	c.cancels[seq] = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.cancels, seq)
		c.mu.Unlock()
		cancel()
	}()

	fresh, err := c.load(ctx, account)
	if err != nil {
		c.mu.Lock()
		stale := epoch != c.epoch
		c.mu.Unlock()
		if stale {
			metrics.Global.RecordRefresh(false)
			return nil, coffererr.WithCause(coffererr.ErrSuperseded, err)
		}
		c.logError("refresh of %s failed: %v", account, err)
		return nil, err
	}
	fresh.Seq = seq

	c.mu.Lock()
	if epoch != c.epoch || seq <= c.applied {
		current := c.current.clone()
		c.mu.Unlock()
		metrics.Global.RecordRefresh(false)
		c.logDebug("refresh %d discarded (applied %d)", seq, c.applied)
		return current, coffererr.ErrSuperseded
	}
	c.applied = seq
	c.current = fresh
	out := fresh.clone()
	c.mu.Unlock()

	metrics.Global.RecordRefresh(true)
	c.updated(out)
	return out.clone(), nil
}

// Reset drops the snapshot and cancels in-flight refreshes.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.epoch++
	c.current = nil
	c.applied = c.nextSeq
	cancels := c.cancels
	c.cancels = make(map[uint64]context.CancelFunc)
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	c.updated(nil)
}

// Fold merges live events of kind into the current lists without touching
// the balance, which only ever comes from the ledger. Entries are keyed by
// transaction hash and log index; removed entries are dropped. It returns
// the number of list changes.
func (c *Cache) Fold(kind chain.Kind, events []chain.Event) int {
	c.mu.Lock()
	if c.current == nil || len(events) == 0 {
		c.mu.Unlock()
		return 0
	}

	list := c.current.Events(kind)
	index := make(map[string]int, len(list))
	for i, ev := range list {
		index[ev.Key()] = i
	}

	changes := 0
	for _, ev := range events {
		key := ev.Key()
		i, exists := index[key]
		switch {
		case ev.Removed && exists:
			list = append(list[:i], list[i+1:]...)
			index = reindex(list)
			changes++
		case !ev.Removed && !exists:
			list = append(list, ev)
			index[key] = len(list) - 1
			changes++
		}
	}

	if changes > 0 {
		sortEvents(list)
		if kind == chain.Withdraw {
			c.current.Withdrawals = list
		} else {
			c.current.Deposits = list
		}
		c.current.UpdatedAt = c.now()
	}
	out := c.current.clone()
	c.mu.Unlock()

	if changes > 0 {
		c.updated(out)
	}
	return changes
}

func (c *Cache) load(ctx context.Context, account string) (*Snapshot, error) {
	snap := &Snapshot{Account: account}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balance, err := c.source.ReadBalance(gctx, account)
		snap.Balance = balance
		return err
	})
	g.Go(func() error {
		events, err := c.source.QueryHistoricalEvents(gctx, chain.Deposit, c.genesis, nil)
		snap.Deposits = withoutRemoved(events)
		return err
	})
	g.Go(func() error {
		events, err := c.source.QueryHistoricalEvents(gctx, chain.Withdraw, c.genesis, nil)
		snap.Withdrawals = withoutRemoved(events)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if snap.Balance == nil {
		snap.Balance = new(big.Int)
	}
	sortEvents(snap.Deposits)
	sortEvents(snap.Withdrawals)
	snap.UpdatedAt = c.now()
	return snap, nil
}

func (c *Cache) updated(s *Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(s)
	}
}

func (c *Cache) logDebug(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(format, args...)
	}
}

func (c *Cache) logError(format string, args ...any) {
	if c.logger != nil {
		c.logger.Error(format, args...)
	}
}

func withoutRemoved(events []chain.Event) []chain.Event {
	out := make([]chain.Event, 0, len(events))
	for _, ev := range events {
		if !ev.Removed {
			out = append(out, ev)
		}
	}
	return out
}

func sortEvents(events []chain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
}

func reindex(list []chain.Event) map[string]int {
	index := make(map[string]int, len(list))
	for i, ev := range list {
		index[ev.Key()] = i
	}
	return index
}

func sameAccount(a, b string) bool {
	return strings.EqualFold(a, b)
}
