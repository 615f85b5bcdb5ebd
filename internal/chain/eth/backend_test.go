package eth

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/metrics"
)

const testBank = "0x5fbdb2315678afecb367f032d93f642f64180aa3"

var errConnRefused = errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")

// fakeBackend is an in-memory node.
type fakeBackend struct {
	mu sync.Mutex

	chainID      *big.Int
	head         uint64
	balance      *big.Int
	gasPrice     *big.Int
	gasEstimate  uint64
	estimateErr  error
	pendingNonce uint64
	sendErr      error
	callErrs     []error // returned by CallContract before succeeding
	logs         []types.Log
	receipts     map[common.Hash]*types.Receipt
	subErr       error

	calls     int
	estimates int
	lastCall  ethereum.CallMsg
	lastQuery ethereum.FilterQuery
	sent      []*types.Transaction
	subCh     chan<- types.Log
	subErrCh  chan error
	closed    bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:     big.NewInt(31337),
		head:        100,
		balance:     big.NewInt(0),
		gasPrice:    big.NewInt(1_000_000_000),
		gasEstimate: 50_000,
		receipts:    make(map[common.Hash]*types.Receipt),
		subErrCh:    make(chan error, 1),
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastCall = msg
	if len(f.callErrs) > 0 {
		err := f.callErrs[0]
		f.callErrs = f.callErrs[1:]
		return nil, err
	}
	return bankABI.Methods[methodBalanceOf].Outputs.Pack(f.balance)
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates++
	f.lastCall = msg
	return f.gasEstimate, f.estimateErr
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return f.gasPrice, nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingNonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	var out []types.Log
	for _, lg := range f.logs {
		if q.FromBlock != nil && lg.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && lg.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && lg.Topics[0] != q.Topics[0][0] {
			continue
		}
		out = append(out, lg)
	}
	return out, nil
}

func (f *fakeBackend) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.subCh = ch
	return &fakeSub{errCh: f.subErrCh}, nil
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeBackend) setReceipt(hash common.Hash, status, block uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[hash] = &types.Receipt{
		TxHash:      hash,
		Status:      status,
		BlockNumber: new(big.Int).SetUint64(block),
		GasUsed:     42_000,
	}
}

func (f *fakeBackend) setHead(head uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = head
}

func (f *fakeBackend) addLog(lg types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, lg)
}

func (f *fakeBackend) subscription() chan<- types.Log {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subCh
}

type fakeSub struct {
	errCh chan error
	once  sync.Once
}

func (s *fakeSub) Unsubscribe()      { s.once.Do(func() {}) }
func (s *fakeSub) Err() <-chan error { return s.errCh }

// bankLog builds a Bank event log.
func bankLog(t *testing.T, kind chain.Kind, account common.Address, amount int64, block uint64, index uint) types.Log {
	t.Helper()
	ev := bankABI.Events[kind.EventName()]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(amount))
	require.NoError(t, err)
	return types.Log{
		Address:     common.HexToAddress(testBank),
		Topics:      []common.Hash{ev.ID, common.BytesToHash(account.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      crypto.Keccak256Hash([]byte{byte(block), byte(index)}),
		Index:       index,
	}
}

func testSigner(t *testing.T) *KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := NewKeySigner(crypto.FromECDSA(key))
	require.NoError(t, err)
	return signer
}

func newTestClient(t *testing.T, backend Backend, signer Signer) *Client {
	t.Helper()
	opts := &ClientOptions{
		Bank:         testBank,
		PollInterval: 5 * time.Millisecond,
		Limiter:      chain.NewRateLimiter(0, 1),
		Retry:        &chain.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Metrics:      &metrics.Metrics{},
	}
	if signer != nil {
		opts.Signer = signer
	}
	c, err := NewClient(backend, opts)
	require.NoError(t, err)
	return c
}
