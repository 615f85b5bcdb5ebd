// Package chain defines the ledger collaborator interfaces used by the
// deposit/withdraw core and common amount, retry, and rate limit utilities.
package chain

import (
	"context"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// Kind identifies which Bank operation a transaction or event belongs to.
type Kind string

// Supported transaction kinds.
const (
	Deposit  Kind = "deposit"
	Withdraw Kind = "withdraw"
)

// WeiDecimals is the number of decimal places between ETH and wei.
const WeiDecimals = 18

// Kinds returns every supported kind in display order.
func Kinds() []Kind {
	return []Kind{Deposit, Withdraw}
}

// String returns the kind identifier.
func (k Kind) String() string {
	return string(k)
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case Deposit, Withdraw:
		return true
	default:
		return false
	}
}

// EventName returns the Bank contract event emitted for this kind.
func (k Kind) EventName() string {
	switch k {
	case Deposit:
		return "etherDeposited"
	case Withdraw:
		return "etherWithdrawed"
	default:
		return ""
	}
}

// Title returns the capitalized kind for user-facing messages.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// ParseKind parses a kind name. Unknown names that are close to a known
// kind carry a suggestion.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.IsValid() {
		return k, nil
	}

	err := coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{"kind": s})
	best, bestDist := Kind(""), 3
	for _, candidate := range Kinds() {
		if d := levenshtein.ComputeDistance(string(k), string(candidate)); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if best != "" {
		return "", coffererr.WithSuggestion(err, "did you mean '"+best.String()+"'?")
	}
	return "", err
}

// Event is one Bank contract log entry.
type Event struct {
	Kind        Kind      `json:"kind"`
	Account     string    `json:"account"`
	Amount      *big.Int  `json:"amount"`
	TxHash      string    `json:"tx_hash"`
	LogIndex    uint      `json:"log_index"`
	BlockNumber uint64    `json:"block_number"`
	Removed     bool      `json:"removed,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Key identifies the log entry across deliveries.
func (e Event) Key() string {
	return strings.ToLower(e.TxHash) + "/" + strconv.FormatUint(uint64(e.LogIndex), 10)
}

// CallDescriptor is a fully estimated, not yet signed Bank contract call.
type CallDescriptor struct {
	Kind     Kind     // Operation
	From     string   // Sending account
	To       string   // Bank contract address
	Amount   *big.Int // Amount in wei the user asked for
	Value    *big.Int // Value attached to the call (Amount for deposit, zero for withdraw)
	Data     []byte   // ABI encoded call data
	GasLimit uint64   // Estimated gas limit
	GasPrice *big.Int // Gas price at estimation time
}

// Fee returns the maximum fee of the call in wei.
func (c *CallDescriptor) Fee() *big.Int {
	if c == nil || c.GasPrice == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(c.GasPrice, new(big.Int).SetUint64(c.GasLimit))
}

// TxHandle identifies a broadcast transaction.
type TxHandle struct {
	Hash        string    `json:"hash"`
	Kind        Kind      `json:"kind"`
	From        string    `json:"from"`
	Nonce       uint64    `json:"nonce"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Receipt is the on-chain outcome of a mined transaction.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	Success     bool   `json:"success"`
}

// BalanceReader reads the caller's balance held by the Bank.
type BalanceReader interface {
	// ReadBalance returns the Bank balance of account in wei.
	ReadBalance(ctx context.Context, account string) (*big.Int, error)
}

// CallBuilder estimates and builds Bank calls.
type CallBuilder interface {
	// EstimateAndBuildCall performs one estimation round-trip and returns a call
	// ready to be signed and broadcast.
	EstimateAndBuildCall(ctx context.Context, kind Kind, from string, amount *big.Int) (*CallDescriptor, error)
}

// Submitter signs and broadcasts calls and waits for their outcome.
type Submitter interface {
	// Submit broadcasts the call. Errors mean the network refused it.
	Submit(ctx context.Context, call *CallDescriptor) (*TxHandle, error)

	// AwaitConfirmation blocks until the transaction is mined. A reverted
	// transaction returns ErrConfirmationFailed.
	AwaitConfirmation(ctx context.Context, tx *TxHandle) (*Receipt, error)
}

// EventSource reads Bank events.
type EventSource interface {
	// QueryHistoricalEvents returns events of kind in [fromBlock, toBlock].
	// A nil toBlock means the latest block.
	QueryHistoricalEvents(ctx context.Context, kind Kind, fromBlock uint64, toBlock *uint64) ([]Event, error)

	// SubscribeEvents delivers live batches of events of kind until the
	// returned unsubscribe function is called or ctx ends.
	SubscribeEvents(ctx context.Context, kind Kind, onBatch func([]Event)) (func(), error)
}

// Ledger is the complete remote ledger collaborator.
type Ledger interface {
	BalanceReader
	CallBuilder
	Submitter
	EventSource
}
