package transaction

import (
	"context"
	"math/big"
	"sync"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/notify"
)

type mockBuilder struct {
	calls     int
	buildFunc func(ctx context.Context, kind chain.Kind, from string, amount *big.Int) (*chain.CallDescriptor, error)
}

func (m *mockBuilder) EstimateAndBuildCall(ctx context.Context, kind chain.Kind, from string, amount *big.Int) (*chain.CallDescriptor, error) {
	m.calls++
	if m.buildFunc != nil {
		return m.buildFunc(ctx, kind, from, amount)
	}
	return &chain.CallDescriptor{Kind: kind, From: from, Amount: amount, GasLimit: 50000, GasPrice: big.NewInt(1)}, nil
}

// mockSubmitter broadcasts instantly and confirms when release is called.
type mockSubmitter struct {
	mu          sync.Mutex
	submits     int
	submitErr   error
	awaitResult chan awaitResult
}

type awaitResult struct {
	receipt *chain.Receipt
	err     error
}

func newMockSubmitter() *mockSubmitter {
	return &mockSubmitter{awaitResult: make(chan awaitResult, 1)}
}

func (m *mockSubmitter) Submit(_ context.Context, call *chain.CallDescriptor) (*chain.TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits++
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &chain.TxHandle{Hash: "0xhash" + call.Kind.String(), Kind: call.Kind, From: call.From}, nil
}

func (m *mockSubmitter) AwaitConfirmation(ctx context.Context, tx *chain.TxHandle) (*chain.Receipt, error) {
	select {
	case r := <-m.awaitResult:
		return r.receipt, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockSubmitter) confirm(hash string) {
	m.awaitResult <- awaitResult{receipt: &chain.Receipt{TxHash: hash, Success: true, BlockNumber: 7}}
}

func (m *mockSubmitter) fail(err error) {
	m.awaitResult <- awaitResult{err: err}
}

func (m *mockSubmitter) submitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submits
}

type recordingPublisher struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (p *recordingPublisher) Publish(n notify.Notification) notify.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	n.ID = uint64(len(p.items) + 1)
	p.items = append(p.items, n)
	return n
}

func (p *recordingPublisher) all() []notify.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Notification(nil), p.items...)
}
