package eth

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/coffer/internal/chain"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// BankABI is the interface of the Bank contract.
const BankABI = `[
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"_amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getBalanceOfUser","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"etherDeposited","anonymous":false,"inputs":[{"name":"account","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"etherWithdrawed","anonymous":false,"inputs":[{"name":"account","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

const (
	methodDeposit   = "deposit"
	methodWithdraw  = "withdraw"
	methodBalanceOf = "getBalanceOfUser"
)

//nolint:gochecknoglobals // Parsed once from a constant
var bankABI = mustParseABI(BankABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// packCall encodes the Bank call for kind and returns the data and the value
// to attach.
func packCall(kind chain.Kind, amount *big.Int) ([]byte, *big.Int, error) {
	switch kind {
	case chain.Deposit:
		data, err := bankABI.Pack(methodDeposit)
		return data, new(big.Int).Set(amount), err
	case chain.Withdraw:
		data, err := bankABI.Pack(methodWithdraw, amount)
		return data, new(big.Int), err
	default:
		return nil, nil, coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{"kind": kind.String()})
	}
}

// eventTopic returns the log topic identifying the event for kind.
func eventTopic(kind chain.Kind) (common.Hash, bool) {
	ev, ok := bankABI.Events[kind.EventName()]
	if !ok {
		return common.Hash{}, false
	}
	return ev.ID, true
}

// kindOfTopic maps a log topic back to its kind.
func kindOfTopic(topic common.Hash) (chain.Kind, bool) {
	for _, k := range chain.Kinds() {
		if id, ok := eventTopic(k); ok && id == topic {
			return k, true
		}
	}
	return "", false
}

// decodeLog converts a Bank log into an Event. Logs that are not Bank
// events are reported with ok=false.
func decodeLog(lg types.Log) (chain.Event, bool) {
	if len(lg.Topics) < 2 {
		return chain.Event{}, false
	}
	kind, ok := kindOfTopic(lg.Topics[0])
	if !ok {
		return chain.Event{}, false
	}

	values, err := bankABI.Unpack(kind.EventName(), lg.Data)
	if err != nil || len(values) != 1 {
		return chain.Event{}, false
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return chain.Event{}, false
	}

	return chain.Event{
		Kind:        kind,
		Account:     common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
		Amount:      amount,
		TxHash:      lg.TxHash.Hex(),
		LogIndex:    lg.Index,
		BlockNumber: lg.BlockNumber,
		Removed:     lg.Removed,
	}, true
}
