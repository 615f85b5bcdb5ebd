package bank

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/notify"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

const testAccount = "0x742d35cc6634c0532925a3b844bc454e4438f44e"

// fakeLedger is an in-memory Bank. Broadcast transactions stay pending
// until mine is called.
type fakeLedger struct {
	mu          sync.Mutex
	balances    map[string]*big.Int
	history     map[chain.Kind][]chain.Event
	subs        map[chain.Kind]map[int]func([]chain.Event)
	nextSub     int
	calls       map[string]*chain.CallDescriptor
	awaits      map[string]chan *chain.Receipt
	block       uint64
	reads       int
	estimates   int
	submits     int
	estimateErr error
	submitErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: make(map[string]*big.Int),
		history:  make(map[chain.Kind][]chain.Event),
		subs:     make(map[chain.Kind]map[int]func([]chain.Event)),
		calls:    make(map[string]*chain.CallDescriptor),
		awaits:   make(map[string]chan *chain.Receipt),
		block:    100,
	}
}

func (l *fakeLedger) setBalance(account string, wei *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[strings.ToLower(account)] = new(big.Int).Set(wei)
}

func (l *fakeLedger) ReadBalance(_ context.Context, account string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if b, ok := l.balances[strings.ToLower(account)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *fakeLedger) EstimateAndBuildCall(_ context.Context, kind chain.Kind, from string, amount *big.Int) (*chain.CallDescriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.estimates++
	if l.estimateErr != nil {
		return nil, l.estimateErr
	}
	return &chain.CallDescriptor{
		Kind:     kind,
		From:     from,
		Amount:   new(big.Int).Set(amount),
		GasLimit: 60000,
		GasPrice: big.NewInt(1_000_000_000),
	}, nil
}

func (l *fakeLedger) Submit(_ context.Context, call *chain.CallDescriptor) (*chain.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submits++
	if l.submitErr != nil {
		return nil, l.submitErr
	}
	hash := fmt.Sprintf("0x%064x", l.submits)
	l.calls[hash] = call
	l.awaits[hash] = make(chan *chain.Receipt, 1)
	return &chain.TxHandle{Hash: hash, Kind: call.Kind, From: call.From, Nonce: uint64(l.submits - 1)}, nil
}

func (l *fakeLedger) AwaitConfirmation(ctx context.Context, tx *chain.TxHandle) (*chain.Receipt, error) {
	l.mu.Lock()
	ch := l.awaits[tx.Hash]
	l.mu.Unlock()

	select {
	case r := <-ch:
		if !r.Success {
			return r, coffererr.WithDetails(coffererr.ErrConfirmationFailed, map[string]string{"tx": tx.Hash})
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *fakeLedger) QueryHistoricalEvents(_ context.Context, kind chain.Kind, _ uint64, _ *uint64) ([]chain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]chain.Event(nil), l.history[kind]...), nil
}

func (l *fakeLedger) SubscribeEvents(_ context.Context, kind chain.Kind, onBatch func([]chain.Event)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs[kind] == nil {
		l.subs[kind] = make(map[int]func([]chain.Event))
	}
	l.nextSub++
	id := l.nextSub
	l.subs[kind][id] = onBatch
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs[kind], id)
	}, nil
}

// mine settles a broadcast transaction. A successful one moves funds and
// lands in the event history; the event is returned for live delivery.
func (l *fakeLedger) mine(hash string, success bool) chain.Event {
	l.mu.Lock()
	call := l.calls[hash]
	ch := l.awaits[hash]
	l.block++
	ev := chain.Event{
		Kind:        call.Kind,
		Account:     call.From,
		Amount:      new(big.Int).Set(call.Amount),
		TxHash:      hash,
		BlockNumber: l.block,
	}
	if success {
		key := strings.ToLower(call.From)
		bal, ok := l.balances[key]
		if !ok {
			bal = new(big.Int)
		}
		if call.Kind == chain.Deposit {
			bal = new(big.Int).Add(bal, call.Amount)
		} else {
			bal = new(big.Int).Sub(bal, call.Amount)
		}
		l.balances[key] = bal
		l.history[call.Kind] = append(l.history[call.Kind], ev)
	}
	block := l.block
	l.mu.Unlock()

	ch <- &chain.Receipt{TxHash: hash, BlockNumber: block, GasUsed: 40000, Success: success}
	return ev
}

// emit delivers a live batch to every subscriber of kind.
func (l *fakeLedger) emit(kind chain.Kind, events ...chain.Event) {
	l.mu.Lock()
	var subs []func([]chain.Event)
	for _, fn := range l.subs[kind] {
		subs = append(subs, fn)
	}
	l.mu.Unlock()
	for _, fn := range subs {
		fn(events)
	}
}

func (l *fakeLedger) subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.subs {
		n += len(m)
	}
	return n
}

func (l *fakeLedger) counts() (reads, estimates, submits int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads, l.estimates, l.submits
}

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func nextNotification(t *testing.T, sub *notify.Subscription) notify.Notification {
	t.Helper()
	select {
	case n, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
		return notify.Notification{}
	}
}

func requireQuiet(t *testing.T, sub *notify.Subscription) {
	t.Helper()
	select {
	case n := <-sub.C():
		t.Fatalf("unexpected notification: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}
