package transaction

import (
	"context"
	"math/big"
	"time"

	"github.com/mrz1836/coffer/internal/chain"
)

// PreparedCall is the result of preparing a Bank call for the current input.
// When Enabled is false there is no call to submit.
type PreparedCall struct {
	Kind     chain.Kind
	Amount   *big.Int
	Enabled  bool
	Call     *chain.CallDescriptor
	Prepared time.Time
}

// State is the lifecycle state of one kind's transaction track.
type State int

// Lifecycle states.
const (
	Idle State = iota
	Preparing
	Pending
	Confirmed
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition describes one state change of a track.
type Transition struct {
	Kind   chain.Kind
	From   State
	To     State
	TxHash string
	Amount *big.Int
	Err    error
	At     time.Time
}

// Outcome is handed to effects when a transaction reaches a terminal state.
type Outcome struct {
	Kind    chain.Kind
	Amount  *big.Int
	Tx      *chain.TxHandle // nil when the network refused the broadcast
	Receipt *chain.Receipt  // nil unless confirmed
	Err     error
}

// Effects are run exactly once per terminal state, before the success or
// error notification is published.
type Effects struct {
	// OnConfirmed runs on Pending -> Confirmed. ctx ends if tracking is abandoned.
	OnConfirmed func(ctx context.Context, o Outcome)

	// OnFailed runs on Preparing -> Failed and Pending -> Failed.
	OnFailed func(o Outcome)
}
