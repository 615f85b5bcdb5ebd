package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/chain/eth"
	"github.com/mrz1836/coffer/internal/config"
	"github.com/mrz1836/coffer/internal/output"
	"github.com/mrz1836/coffer/internal/wallet"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testAccount  = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	testBank     = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testPassword = "correct-horse-battery"
)

// testEnv is an isolated coffer home with captured output.
type testEnv struct {
	cc     *CommandContext
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// setupTestEnv creates a coffer home in a temp directory. Tests using it must
// not run in parallel: they replace package-level hooks.
func setupTestEnv(t *testing.T, format output.Format) *testEnv {
	t.Helper()

	c := config.Defaults()
	c.Home = t.TempDir()
	c.Bank.Address = testBank
	c.Wallet.MemoryLock = false
	c.Tx.EventWait = 2 * time.Second
	c.Tx.ConfirmTimeout = 5 * time.Second

	env := &testEnv{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	env.cc = NewCommandContext(c, config.NullLogger(), output.NewFormatter(format, env.stdout))

	origOpts := keystoreOptions
	keystoreOptions = []wallet.KeystoreOption{wallet.WithWorkFactor(10)}
	t.Cleanup(func() { keystoreOptions = origOpts })
	return env
}

// command returns a cobra command wired to the environment.
func (e *testEnv) command() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	cmd.SetContext(context.Background())
	SetCmdContext(cmd, e.cc)
	return cmd
}

// saveWallet writes the test mnemonic's keystore.
func (e *testEnv) saveWallet(t *testing.T) {
	t.Helper()
	w, err := wallet.New(testMnemonic, 0, false)
	require.NoError(t, err)
	defer w.Destroy()
	_, err = e.cc.Keystore().Save(w, testPassword, false)
	require.NoError(t, err)
}

// useLedger makes every command dial l.
func useLedger(t *testing.T, l *cliLedger) {
	t.Helper()
	orig := dialLedgerFn
	dialLedgerFn = func(context.Context, *CommandContext, eth.Signer) (Ledger, error) {
		return l, nil
	}
	t.Cleanup(func() { dialLedgerFn = orig })
}

// withMockPrompts replaces prompt functions for testing and restores on cleanup.
func withMockPrompts(t *testing.T, password string, confirm bool) {
	t.Helper()
	origPW := promptPasswordFn
	origNewPW := promptNewPasswordFn
	origConfirm := promptConfirmFn
	origMnemonic := promptMnemonicFn
	t.Cleanup(func() {
		promptPasswordFn = origPW
		promptNewPasswordFn = origNewPW
		promptConfirmFn = origConfirm
		promptMnemonicFn = origMnemonic
	})
	promptPasswordFn = func(string) ([]byte, error) { return []byte(password), nil }
	promptNewPasswordFn = func() ([]byte, error) { return []byte(password), nil }
	promptConfirmFn = func(string) bool { return confirm }
	promptMnemonicFn = func() (string, error) { return testMnemonic, nil }
}

// cliLedger is an in-memory Bank that mines every transaction as soon as
// its confirmation is awaited.
type cliLedger struct {
	mu        sync.Mutex
	balances  map[string]*big.Int
	history   map[chain.Kind][]chain.Event
	subs      map[chain.Kind]map[int]func([]chain.Event)
	nextSub   int
	calls     map[string]*chain.CallDescriptor
	block     uint64
	submits   int
	revert    bool
	silent    bool
	submitErr error
	closed    bool
}

func newCLILedger() *cliLedger {
	return &cliLedger{
		balances: make(map[string]*big.Int),
		history:  make(map[chain.Kind][]chain.Event),
		subs:     make(map[chain.Kind]map[int]func([]chain.Event)),
		calls:    make(map[string]*chain.CallDescriptor),
		block:    100,
	}
}

func (l *cliLedger) setBalance(account string, wei *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[strings.ToLower(account)] = new(big.Int).Set(wei)
}

func (l *cliLedger) balance(account string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[strings.ToLower(account)]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *cliLedger) ReadBalance(_ context.Context, account string) (*big.Int, error) {
	return l.balance(account), nil
}

func (l *cliLedger) EstimateAndBuildCall(_ context.Context, kind chain.Kind, from string, amount *big.Int) (*chain.CallDescriptor, error) {
	return &chain.CallDescriptor{
		Kind:     kind,
		From:     from,
		To:       testBank,
		Amount:   new(big.Int).Set(amount),
		GasLimit: 60000,
		GasPrice: big.NewInt(1_000_000_000),
	}, nil
}

func (l *cliLedger) Submit(_ context.Context, call *chain.CallDescriptor) (*chain.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submits++
	if l.submitErr != nil {
		return nil, l.submitErr
	}
	hash := fmt.Sprintf("0x%064x", l.submits)
	l.calls[hash] = call
	return &chain.TxHandle{Hash: hash, Kind: call.Kind, From: call.From, SubmittedAt: time.Now()}, nil
}

func (l *cliLedger) AwaitConfirmation(_ context.Context, tx *chain.TxHandle) (*chain.Receipt, error) {
	l.mu.Lock()
	call := l.calls[tx.Hash]
	l.block++
	receipt := &chain.Receipt{TxHash: tx.Hash, BlockNumber: l.block, GasUsed: 50000, Success: !l.revert}
	if l.revert {
		l.mu.Unlock()
		return receipt, nil
	}

	key := strings.ToLower(call.From)
	current, ok := l.balances[key]
	if !ok {
		current = new(big.Int)
	}
	if call.Kind == chain.Deposit {
		l.balances[key] = new(big.Int).Add(current, call.Amount)
	} else {
		l.balances[key] = new(big.Int).Sub(current, call.Amount)
	}
	ev := chain.Event{
		Kind:        call.Kind,
		Account:     call.From,
		Amount:      new(big.Int).Set(call.Amount),
		TxHash:      tx.Hash,
		BlockNumber: l.block,
		ObservedAt:  time.Now(),
	}
	l.history[call.Kind] = append(l.history[call.Kind], ev)
	var deliver []func([]chain.Event)
	if !l.silent {
		for _, fn := range l.subs[call.Kind] {
			deliver = append(deliver, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range deliver {
		go fn([]chain.Event{ev})
	}
	return receipt, nil
}

func (l *cliLedger) QueryHistoricalEvents(_ context.Context, kind chain.Kind, _ uint64, _ *uint64) ([]chain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]chain.Event(nil), l.history[kind]...), nil
}

func (l *cliLedger) SubscribeEvents(_ context.Context, kind chain.Kind, onBatch func([]chain.Event)) (func(), error) {
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

func (l *cliLedger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// ethWei returns amount ether in wei.
func ethWei(t *testing.T, amount string) *big.Int {
	t.Helper()
	wei, err := chain.ParseETH(amount)
	require.NoError(t, err)
	return wei
}

var errNodeDown = coffererr.WithCause(coffererr.ErrNetworkError, errors.New("connection refused"))
