// Package eth implements the Bank ledger collaborator on go-ethereum.
package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/coffer/internal/chain"
	"github.com/mrz1836/coffer/internal/metrics"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

const (
	// DefaultPollInterval is how often receipts and new blocks are polled.
	DefaultPollInterval = 2 * time.Second

	defaultEndpoint = "node"
)

var (
	// ErrRPCURLRequired indicates the RPC URL was not provided.
	ErrRPCURLRequired = &coffererr.CofferError{
		Code:       "RPC_URL_REQUIRED",
		Message:    "RPC URL is required",
		Suggestion: "set network.rpc in config.yaml or COFFER_RPC",
		ExitCode:   coffererr.ExitInput,
	}

	// ErrNoSigner indicates a submission was attempted by a read-only client.
	ErrNoSigner = &coffererr.CofferError{
		Code:       "NO_SIGNER",
		Message:    "no signing key loaded",
		Suggestion: "create or import a wallet with 'coffer wallet'",
		ExitCode:   coffererr.ExitAuth,
	}
)

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// ClientOptions contains configuration for the Bank client.
type ClientOptions struct {
	Bank          string             // Bank contract address (required)
	Endpoint      string             // Rate limit key, usually the RPC URL
	Signer        Signer             // Nil for a read-only client
	ChainID       *big.Int           // Overrides chain ID detection
	GasSpeed      GasSpeed           // Defaults to medium
	PollInterval  time.Duration      // Receipt and block polling
	Confirmations uint64             // Blocks on top of the inclusion block, minimum 1
	Limiter       *chain.RateLimiter // Defaults to chain.DefaultRateLimiter
	Retry         *chain.RetryConfig // Read retries, defaults to chain.DefaultRetryConfig
	Metrics       *metrics.Metrics   // Defaults to metrics.Global
	Logger        LogWriter
}

// Client talks to the Bank contract through a node.
type Client struct {
	backend       Backend
	endpoint      string
	bank          common.Address
	signer        Signer
	speed         GasSpeed
	pollInterval  time.Duration
	confirmations uint64
	limiter       *chain.RateLimiter
	retry         chain.RetryConfig
	metrics       *metrics.Metrics
	logger        LogWriter
	nonces        *NonceManager

	mu      sync.Mutex
	chainID *big.Int
}

var _ chain.Ledger = (*Client)(nil)

// NewClient creates a Bank client over backend.
func NewClient(backend Backend, opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}
	bank, err := ParseAddress(opts.Bank)
	if err != nil {
		return nil, coffererr.Wrap(err, "bank contract")
	}

	c := &Client{
		backend:       backend,
		endpoint:      opts.Endpoint,
		bank:          bank,
		signer:        opts.Signer,
		speed:         opts.GasSpeed,
		pollInterval:  opts.PollInterval,
		confirmations: max(opts.Confirmations, 1),
		limiter:       opts.Limiter,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		nonces:        NewNonceManager(),
		chainID:       opts.ChainID,
	}
	if c.endpoint == "" {
		c.endpoint = defaultEndpoint
	}
	if c.speed == "" {
		c.speed = GasSpeedMedium
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.limiter == nil {
		c.limiter = chain.DefaultRateLimiter()
	}
	if c.metrics == nil {
		c.metrics = metrics.Global
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	if opts.Retry != nil {
		c.retry = *opts.Retry
	} else {
		c.retry = chain.DefaultRetryConfig()
	}
	onRetry := c.retry.OnRetry
	c.retry.OnRetry = func(attempt int, err error) {
		c.metrics.RecordRPCRetry()
		c.logger.Debug("rpc retry %d: %v", attempt, err)
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	return c, nil
}

// Bank returns the contract address.
func (c *Client) Bank() string {
	return c.bank.Hex()
}

// Account returns the signing account, or "" for a read-only client.
func (c *Client) Account() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address().Hex()
}

// ChainID returns the network chain ID, asking the node once.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chainID != nil {
		return c.chainID, nil
	}
	id, err := read(ctx, c, "eth_chainId", c.backend.ChainID)
	if err != nil {
		return nil, coffererr.WithCause(coffererr.ErrNetworkError, fmt.Errorf("getting chain ID: %w", err))
	}
	c.chainID = id
	return id, nil
}

// ReadBalance returns the Bank balance of account.
func (c *Client) ReadBalance(ctx context.Context, account string) (*big.Int, error) {
	from, err := ParseAddress(account)
	if err != nil {
		return nil, err
	}
	data, err := bankABI.Pack(methodBalanceOf)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{From: from, To: &c.bank, Data: data}
	out, err := read(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.backend.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return nil, coffererr.WithCause(coffererr.ErrNetworkError, fmt.Errorf("reading bank balance: %w", err))
	}

	values, err := bankABI.Unpack(methodBalanceOf, out)
	if err != nil || len(values) != 1 {
		return nil, coffererr.WithDetails(coffererr.ErrNetworkError, map[string]string{
			"reason": "malformed getBalanceOfUser result",
		})
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, coffererr.WithDetails(coffererr.ErrNetworkError, map[string]string{
			"reason": "malformed getBalanceOfUser result",
		})
	}
	return balance, nil
}

// EstimateAndBuildCall estimates gas for a Bank call. A call the contract
// would revert fails here.
func (c *Client) EstimateAndBuildCall(ctx context.Context, kind chain.Kind, from string, amount *big.Int) (*chain.CallDescriptor, error) {
	if !kind.IsValid() {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{"kind": kind.String()})
	}
	account, err := ParseAddress(from)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidAmount, map[string]string{"reason": "must be positive"})
	}

	data, value, err := packCall(kind, amount)
	if err != nil {
		return nil, err
	}

	prices, err := c.GasPrices(ctx)
	if err != nil {
		return nil, err
	}
	price := prices.For(c.speed)

	msg := ethereum.CallMsg{From: account, To: &c.bank, Value: value, Data: data}
	var gas uint64
	err = c.call(ctx, "eth_estimateGas", func(ctx context.Context) error {
		var err error
		gas, err = c.backend.EstimateGas(ctx, msg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("estimating %s gas: %w", kind, err)
	}

	return &chain.CallDescriptor{
		Kind:     kind,
		From:     account.Hex(),
		To:       c.bank.Hex(),
		Amount:   new(big.Int).Set(amount),
		Value:    value,
		Data:     data,
		GasLimit: withHeadroom(gas),
		GasPrice: price,
	}, nil
}

// Submit signs and broadcasts call. It is never retried.
func (c *Client) Submit(ctx context.Context, call *chain.CallDescriptor) (*chain.TxHandle, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}
	if call == nil {
		return nil, coffererr.ErrNotEnabled
	}
	from := c.signer.Address()
	if !strings.EqualFold(call.From, from.Hex()) {
		return nil, coffererr.WithDetails(coffererr.ErrInvalidAddress, map[string]string{
			"field":  "from",
			"call":   call.From,
			"signer": from.Hex(),
		})
	}
	to, err := ParseAddress(call.To)
	if err != nil {
		return nil, err
	}

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	var pending uint64
	err = c.call(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		var err error
		pending, err = c.backend.PendingNonceAt(ctx, from)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting nonce: %w", err)
	}
	nonce := c.nonces.Next(from, pending)

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      call.GasLimit,
		GasPrice: call.GasPrice,
		Data:     call.Data,
	})

	signed, err := c.signer.SignTx(tx, chainID)
	if err != nil {
		c.nonces.Release(from, nonce)
		return nil, err
	}

	err = c.call(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		return c.backend.SendTransaction(ctx, signed)
	})
	if err != nil {
		c.nonces.Release(from, nonce)
		return nil, fmt.Errorf("broadcasting transaction: %w", err)
	}

	c.logger.Debug("broadcast %s tx %s nonce %d gas %d at %s", call.Kind, signed.Hash().Hex(), nonce, call.GasLimit, FormatGasPrice(call.GasPrice))

	return &chain.TxHandle{
		Hash:        signed.Hash().Hex(),
		Kind:        call.Kind,
		From:        from.Hex(),
		Nonce:       nonce,
		SubmittedAt: time.Now(),
	}, nil
}

// AwaitConfirmation polls for the receipt of tx until it is buried under
// the configured number of confirmations or ctx ends. A reverted
// transaction returns its receipt and ErrConfirmationFailed.
func (c *Client) AwaitConfirmation(ctx context.Context, tx *chain.TxHandle) (*chain.Receipt, error) {
	hash := common.HexToHash(tx.Hash)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, done, err := c.checkReceipt(ctx, hash)
		if done {
			return receipt, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) checkReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, bool, error) {
	var rcpt *types.Receipt
	err := c.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		var err error
		rcpt, err = c.backend.TransactionReceipt(ctx, hash)
		return err
	})
	switch {
	case ctx.Err() != nil:
		return nil, true, ctx.Err()
	case errors.Is(err, ethereum.NotFound):
		return nil, false, nil
	case err != nil:
		c.logger.Debug("receipt poll %s: %v", hash.Hex(), err)
		return nil, false, nil
	}

	mined := rcpt.BlockNumber.Uint64()
	if c.confirmations > 1 {
		var head uint64
		if err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
			var err error
			head, err = c.backend.BlockNumber(ctx)
			return err
		}); err != nil || head+1 < mined+c.confirmations {
			return nil, false, nil
		}
	}

	receipt := &chain.Receipt{
		TxHash:      hash.Hex(),
		BlockNumber: mined,
		GasUsed:     rcpt.GasUsed,
		Success:     rcpt.Status == types.ReceiptStatusSuccessful,
	}
	if !receipt.Success {
		return receipt, true, coffererr.WithDetails(coffererr.ErrConfirmationFailed, map[string]string{
			"tx":     hash.Hex(),
			"reason": "reverted",
		})
	}
	return receipt, true, nil
}

// Close closes the node connection.
func (c *Client) Close() {
	c.backend.Close()
}

// call runs one rate limited node request and records it.
func (c *Client) call(ctx context.Context, method string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
		return err
	}
	start := time.Now()
	err := fn(ctx)
	c.metrics.RecordRPCCall(time.Since(start), err)
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		c.logger.Debug("rpc %s: %v", method, err)
	}
	return err
}

// read runs an idempotent request with retries on transport failures.
func read[T any](ctx context.Context, c *Client, method string, fn func(context.Context) (T, error)) (T, error) {
	return chain.RetryWithConfig(ctx, c.retry, func() (T, error) {
		var out T
		err := c.call(ctx, method, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx)
			return err
		})
		if err != nil && ctx.Err() == nil && !isRevert(err) {
			return out, chain.WrapRetryable(err)
		}
		return out, err
	})
}

// isRevert reports whether err is a contract execution error, which
// retrying cannot fix.
func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
