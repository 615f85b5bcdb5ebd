package bank

import (
	"context"
	"math/big"
	"sync"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/debounce"
	"github.com/mrz1836/coffer/internal/service/transaction"
)

// desk holds the input side of one kind: raw input, the debounced value,
// its validation result, and the prepared call. The transaction side lives
// in the kind's Tracker.
//
// All fields below mu are guarded by it. The debouncer's emit callback takes
// mu, so Flush and Close are always called without holding it.
type desk struct {
	kind    chain.Kind
	tracker *transaction.Tracker

	mu         sync.Mutex
	debouncer  *debounce.Debouncer[string]
	input      string
	debounced  string
	amount     *big.Int
	valErr     error
	problem    string
	prepared   *transaction.PreparedCall
	prepErr    error
	prepGen    uint64
	prepCancel context.CancelFunc
	prepDone   chan struct{}
	reported   string
}

// cancelPrepLocked abandons the running preparation, if any. Its result
// will be discarded because prepGen moved on.
func (d *desk) cancelPrepLocked() {
	d.prepGen++
	if d.prepCancel != nil {
		d.prepCancel()
		d.prepCancel = nil
	}
}

// resetLocked returns the desk to an empty input.
func (d *desk) resetLocked() {
	d.cancelPrepLocked()
	d.input = ""
	d.debounced = ""
	d.amount = nil
	d.valErr = nil
	d.problem = ""
	d.prepared = nil
	d.prepErr = nil
	d.prepDone = nil
	d.reported = ""
}

// clearInput empties the input after a confirmed transaction.
func (d *desk) clearInput() {
	d.mu.Lock()
	d.resetLocked()
	deb := d.debouncer
	d.mu.Unlock()

	// Supersede a value typed while the transaction was pending.
	if deb != nil {
		deb.Observe("")
	}
}

// detach closes the debouncer and drops all input state.
func (d *desk) detach() {
	d.mu.Lock()
	deb := d.debouncer
	d.debouncer = nil
	d.mu.Unlock()

	if deb != nil {
		deb.Close()
	}

	d.mu.Lock()
	d.resetLocked()
	d.mu.Unlock()
}

func (d *desk) view() DeskView {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := DeskView{
		Kind:      d.kind,
		Input:     d.input,
		Debounced: d.debounced,
		Problem:   d.problem,
		Preparing: d.prepCancel != nil,
	}
	if d.debouncer != nil {
		_, v.Settling = d.debouncer.Pending()
	}
	if d.amount != nil {
		v.Amount = new(big.Int).Set(d.amount)
	}
	if d.prepErr != nil {
		v.Problem = d.prepErr.Error()
	}
	if d.prepared != nil && d.prepared.Enabled {
		v.Enabled = true
		v.Fee = d.prepared.Call.Fee()
	}
	return v
}

func sameAmount(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}
