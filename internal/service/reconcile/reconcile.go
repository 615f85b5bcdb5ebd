// Package reconcile matches chain events to transactions sent by this client.
//
// The Reconciler keeps one correlation slot per kind holding the hash of the
// last own confirmed transaction. An event carrying that hash produces the
// "event recorded" notification exactly once and clears the slot. Nothing is
// persisted: after a restart no slot is set, so history never re-notifies.
package reconcile

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/metrics"
	"github.com/mrz1836/coffer/internal/notify"
)

// DefaultRecentWindow is the number of unmatched event hashes remembered per kind.
const DefaultRecentWindow = 256

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Publisher publishes user notifications.
type Publisher interface {
	Publish(n notify.Notification) notify.Notification
}

// Folder merges live events into the cached ledger view.
type Folder interface {
	Fold(kind chain.Kind, events []chain.Event) int
}

// Config holds dependencies for the Reconciler.
type Config struct {
	Publisher Publisher
	Folder    Folder
	Logger    LogWriter

	// RecentWindow bounds the unmatched hashes remembered per kind, so an
	// event that beats the confirmation still matches on Record.
	RecentWindow int
}

// Reconciler correlates own transactions with Bank events.
type Reconciler struct {
	publisher Publisher
	folder    Folder
	logger    LogWriter
	window    int

	mu     sync.Mutex
	slots  map[chain.Kind]string
	recent map[chain.Kind]*recentSet
}

// New creates a Reconciler with empty slots.
func New(cfg *Config) *Reconciler {
	window := cfg.RecentWindow
	if window <= 0 {
		window = DefaultRecentWindow
	}
	return &Reconciler{
		publisher: cfg.Publisher,
		folder:    cfg.Folder,
		logger:    cfg.Logger,
		window:    window,
		slots:     make(map[chain.Kind]string),
		recent:    make(map[chain.Kind]*recentSet),
	}
}

// Record stores hash as the last own transaction of kind. If the matching
// event was already delivered, the notification fires now and the slot stays
// empty. It reports whether the event had already been seen.
func (r *Reconciler) Record(kind chain.Kind, hash string, amount *big.Int) bool {
	key := strings.ToLower(hash)

	r.mu.Lock()
	seen := r.recentFor(kind).take(key)
	if !seen {
		r.slots[kind] = key
	}
	r.mu.Unlock()

	if seen {
		r.debug("%s event for %s arrived before confirmation", kind, hash)
		r.notifyMatched(chain.Event{Kind: kind, TxHash: hash}, amount)
	}
	return seen
}

// Pending returns the hash awaiting its event for kind, or "".
func (r *Reconciler) Pending(kind chain.Kind) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[kind]
}

// Reset empties every slot and the recently seen hashes.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = make(map[chain.Kind]string)
	r.recent = make(map[chain.Kind]*recentSet)
}

// HandleBatch folds a live batch into the cache and notifies for the event
// matching the slot of kind, if present. Removed (reorged) entries are
// folded as removals and never notify. It returns the number of matches.
func (r *Reconciler) HandleBatch(kind chain.Kind, events []chain.Event) int {
	if len(events) == 0 {
		return 0
	}
	if r.folder != nil {
		metrics.Global.RecordEventsFolded(r.folder.Fold(kind, events))
	}

	var matched []chain.Event
	r.mu.Lock()
	recent := r.recentFor(kind)
	for _, ev := range events {
		key := strings.ToLower(ev.TxHash)
		if ev.Removed {
			recent.take(key)
			continue
		}
		if slot := r.slots[kind]; slot != "" && slot == key {
			delete(r.slots, kind)
			matched = append(matched, ev)
			continue
		}
		recent.add(key)
	}
	r.mu.Unlock()

	for _, ev := range matched {
		r.notifyMatched(ev, ev.Amount)
	}
	return len(matched)
}

// Watch subscribes to live events of every kind and feeds them to
// HandleBatch. The returned function stops all subscriptions.
func (r *Reconciler) Watch(ctx context.Context, source chain.EventSource) (func(), error) {
	var stops []func()
	stopAll := func() {
		for _, stop := range stops {
			stop()
		}
	}
	for _, kind := range chain.Kinds() {
		stop, err := source.SubscribeEvents(ctx, kind, func(events []chain.Event) {
			r.HandleBatch(kind, events)
		})
		if err != nil {
			stopAll()
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stopAll, nil
}

func (r *Reconciler) notifyMatched(ev chain.Event, amount *big.Int) {
	metrics.Global.RecordEventMatched()
	if r.publisher == nil {
		return
	}
	msg := ""
	if amount != nil {
		msg = chain.FormatETH(amount) + " ETH"
	}
	r.publisher.Publish(notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   fmt.Sprintf("A %s event has been emitted.", ev.Kind),
		Message: msg,
		Kind:    ev.Kind,
		TxHash:  ev.TxHash,
	})
}

func (r *Reconciler) recentFor(kind chain.Kind) *recentSet {
	s, ok := r.recent[kind]
	if !ok {
		s = newRecentSet(r.window)
		r.recent[kind] = s
	}
	return s
}

func (r *Reconciler) debug(format string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(format, args...)
	}
}
