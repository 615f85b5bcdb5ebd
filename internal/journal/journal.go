// Package journal appends every transaction lifecycle transition to a
// write-ahead log so past deposits and withdrawals can be listed later.
// The journal is history only; it is never used to restore tracking state.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/service/transaction"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

const (
	keyPrefix   = "tx_"
	segPrefix   = "seg_"
	dirPerm     = 0o700
	recordedErr = "journal write failed"
)

// Status values stored in entries.
const (
	StatusPreparing = "preparing"
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// Config configures the journal's WAL.
type Config struct {
	Dir              string
	SegmentThreshold int
	MaxSegments      int
	SyncWrites       bool
}

// Entry is one journaled transition.
type Entry struct {
	ID     string     `json:"id"`
	Kind   chain.Kind `json:"kind"`
	Status string     `json:"status"`
	TxHash string     `json:"tx_hash,omitempty"`
	Amount string     `json:"amount"`
	Error  string     `json:"error,omitempty"`
	At     time.Time  `json:"at"`
}

// Attempt is the latest known state of one submitted transaction.
type Attempt struct {
	ID        string     `json:"id"`
	Kind      chain.Kind `json:"kind"`
	Status    string     `json:"status"`
	TxHash    string     `json:"tx_hash,omitempty"`
	Amount    string     `json:"amount"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Journal records transitions of one or more trackers.
type Journal struct {
	mu      sync.Mutex
	wal     *gowal.Wal
	logger  *zap.Logger
	entries []Entry
	current map[chain.Kind]string
}

// Open opens or creates the journal in cfg.Dir and loads its entries.
func Open(cfg Config, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dir == "" {
		return nil, coffererr.WithDetails(coffererr.ErrConfigInvalid, map[string]string{"field": "journal.dir"})
	}
	if err := os.MkdirAll(cfg.Dir, dirPerm); err != nil {
		return nil, coffererr.Wrap(err, "creating journal directory %s", cfg.Dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              cfg.Dir,
		Prefix:           segPrefix,
		SegmentThreshold: cfg.SegmentThreshold,
		MaxSegments:      cfg.MaxSegments,
		IsInSyncDiskMode: cfg.SyncWrites,
	})
	if err != nil {
		return nil, coffererr.Wrap(err, "opening journal")
	}

	j := &Journal{
		wal:     wal,
		logger:  logger,
		current: make(map[chain.Kind]string),
	}
	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, keyPrefix) {
			continue
		}
		var e Entry
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			logger.Error("skipping unreadable journal entry", zap.Error(err), zap.String("key", msg.Key))
			continue
		}
		j.entries = append(j.entries, e)
	}
	return j, nil
}

// Observe journals one tracker transition. It has the signature expected by
// transaction.Tracker.Observe. Write failures are logged, never returned:
// the journal must not disturb the lifecycle it records.
func (j *Journal) Observe(tr transaction.Transition) {
	if err := j.Record(tr); err != nil {
		j.logger.Error(recordedErr, zap.Error(err), zap.String("kind", tr.Kind.String()))
	}
}

// Record journals one tracker transition.
func (j *Journal) Record(tr transaction.Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	status, ok := statusOf(tr)
	if !ok {
		// Return to Idle after a terminal state is already journaled.
		delete(j.current, tr.Kind)
		return nil
	}

	if tr.From == transaction.Idle {
		j.current[tr.Kind] = uuid.New().String()
	}
	id, ok := j.current[tr.Kind]
	if !ok {
		id = uuid.New().String()
		j.current[tr.Kind] = id
	}
	if status == StatusAbandoned {
		delete(j.current, tr.Kind)
	}

	e := Entry{
		ID:     id,
		Kind:   tr.Kind,
		Status: status,
		TxHash: tr.TxHash,
		Amount: chain.FormatETH(tr.Amount),
		At:     tr.At.UTC(),
	}
	if tr.Err != nil {
		e.Error = tr.Err.Error()
	}
	return j.appendLocked(e)
}

// Entries returns every journaled transition in write order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}

// Attempts folds entries into one record per transaction attempt, newest
// first. A non-empty kind filters the result.
func (j *Journal) Attempts(kind chain.Kind) []Attempt {
	entries := j.Entries()

	byID := make(map[string]*Attempt)
	var order []string
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		a, ok := byID[e.ID]
		if !ok {
			a = &Attempt{ID: e.ID, Kind: e.Kind, Amount: e.Amount, StartedAt: e.At}
			byID[e.ID] = a
			order = append(order, e.ID)
		}
		a.Status = e.Status
		a.UpdatedAt = e.At
		if e.TxHash != "" {
			a.TxHash = e.TxHash
		}
		if e.Error != "" {
			a.Error = e.Error
		}
	}

	out := make([]Attempt, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].StartedAt.After(out[b].StartedAt)
	})
	return out
}

// Close flushes and closes the WAL.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.wal == nil {
		return nil
	}
	err := j.wal.Close()
	j.wal = nil
	return err
}

func (j *Journal) appendLocked(e Entry) error {
	if j.wal == nil {
		return coffererr.New("JOURNAL_CLOSED", "journal is closed")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return coffererr.Wrap(err, "encoding journal entry")
	}
	key := fmt.Sprintf("%s%s_%s", keyPrefix, e.Kind, e.ID)
	if err := j.wal.Write(j.wal.CurrentIndex()+1, key, data); err != nil {
		return coffererr.Wrap(err, recordedErr)
	}
	j.entries = append(j.entries, e)
	return nil
}

// statusOf maps a transition to the status it journals. Returns false for
// transitions that carry no new information.
func statusOf(tr transaction.Transition) (string, bool) {
	switch tr.To {
	case transaction.Preparing:
		return StatusPreparing, true
	case transaction.Pending:
		return StatusPending, true
	case transaction.Confirmed:
		return StatusConfirmed, true
	case transaction.Failed:
		return StatusFailed, true
	case transaction.Idle:
		if tr.From == transaction.Preparing || tr.From == transaction.Pending {
			return StatusAbandoned, true
		}
	}
	return "", false
}
