package bank

import (
	"math/big"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/service/snapshot"
	"github.com/mrz1836/coffer/internal/service/transaction"
)

// View is the presentation state of a Session.
type View struct {
	Account   string             `json:"account"`
	Connected bool               `json:"connected"`
	Snapshot  *snapshot.Snapshot `json:"snapshot,omitempty"`
	Desks     []DeskView         `json:"desks"`
}

// DeskView is the presentation state of one kind.
type DeskView struct {
	Kind      chain.Kind        `json:"kind"`
	Input     string            `json:"input"`
	Debounced string            `json:"debounced"`
	Settling  bool              `json:"settling"`  // A value is waiting for its quiet interval
	Preparing bool              `json:"preparing"` // Estimation in flight
	Enabled   bool              `json:"enabled"`   // A call is ready to submit
	Amount    *big.Int          `json:"amount,omitempty"`
	Fee       *big.Int          `json:"fee,omitempty"`
	Problem   string            `json:"problem,omitempty"`
	State     transaction.State `json:"state"`
	TxHash    string            `json:"tx_hash,omitempty"`

	// AwaitingEvent is the own transaction whose chain event is still expected.
	AwaitingEvent string `json:"awaiting_event,omitempty"`
}

// Desk returns the view of kind.
func (v View) Desk(kind chain.Kind) DeskView {
	for _, d := range v.Desks {
		if d.Kind == kind {
			return d
		}
	}
	return DeskView{Kind: kind}
}
