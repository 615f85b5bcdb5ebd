package eth

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/coffer/internal/chain"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// logBuffer bounds how many subscription logs are queued before delivery.
const logBuffer = 128

func (c *Client) filter(kind chain.Kind, from uint64, to *uint64) (ethereum.FilterQuery, error) {
	topic, ok := eventTopic(kind)
	if !ok {
		return ethereum.FilterQuery{}, coffererr.WithDetails(coffererr.ErrInvalidKind, map[string]string{"kind": kind.String()})
	}
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{c.bank},
		Topics:    [][]common.Hash{{topic}},
	}
	if to != nil {
		q.ToBlock = new(big.Int).SetUint64(*to)
	}
	return q, nil
}

// QueryHistoricalEvents returns Bank events of kind in [fromBlock, toBlock].
func (c *Client) QueryHistoricalEvents(ctx context.Context, kind chain.Kind, fromBlock uint64, toBlock *uint64) ([]chain.Event, error) {
	q, err := c.filter(kind, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	logs, err := read(ctx, c, "eth_getLogs", func(ctx context.Context) ([]types.Log, error) {
		return c.backend.FilterLogs(ctx, q)
	})
	if err != nil {
		return nil, coffererr.WithCause(coffererr.ErrNetworkError, fmt.Errorf("querying %s events: %w", kind.EventName(), err))
	}
	return decodeLogs(logs, time.Now()), nil
}

// SubscribeEvents delivers live Bank events of kind. A websocket backend
// pushes logs, including removals after a reorg; otherwise new blocks are
// polled. The returned function stops delivery and waits for any batch in
// progress. It must not be called from onBatch.
func (c *Client) SubscribeEvents(ctx context.Context, kind chain.Kind, onBatch func([]chain.Event)) (func(), error) {
	head, err := read(ctx, c, "eth_blockNumber", c.backend.BlockNumber)
	if err != nil {
		return nil, coffererr.WithCause(coffererr.ErrNetworkError, fmt.Errorf("reading head block: %w", err))
	}
	q, err := c.filter(kind, head+1, nil)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan types.Log, logBuffer)
	sub, subErr := c.backend.SubscribeFilterLogs(subCtx, q, ch)

	var wg sync.WaitGroup
	wg.Add(1)
	if subErr != nil {
		c.logger.Debug("log subscription unavailable for %s, polling: %v", kind, subErr)
		go func() {
			defer wg.Done()
			c.pollLogs(subCtx, kind, head+1, onBatch)
		}()
	} else {
		go func() {
			defer wg.Done()
			c.streamLogs(subCtx, kind, head, sub, ch, onBatch)
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

func (c *Client) streamLogs(ctx context.Context, kind chain.Kind, last uint64, sub ethereum.Subscription, ch <-chan types.Log, onBatch func([]chain.Event)) {
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("log subscription for %s dropped, polling: %v", kind, err)
			c.pollLogs(ctx, kind, last+1, onBatch)
			return
		case lg := <-ch:
			batch := []types.Log{lg}
		drain:
			for {
				select {
				case more := <-ch:
					batch = append(batch, more)
				default:
					break drain
				}
			}
			for _, l := range batch {
				last = max(last, l.BlockNumber)
			}
			if events := decodeLogs(batch, time.Now()); len(events) > 0 {
				onBatch(events)
			}
		}
	}
}

// pollLogs fetches logs block range by block range until ctx ends.
// Polling cannot observe removals.
func (c *Client) pollLogs(ctx context.Context, kind chain.Kind, next uint64, onBatch func([]chain.Event)) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := read(ctx, c, "eth_blockNumber", c.backend.BlockNumber)
		if err != nil || head < next {
			continue
		}
		to := head
		events, err := c.QueryHistoricalEvents(ctx, kind, next, &to)
		if err != nil {
			c.logger.Debug("polling %s events: %v", kind, err)
			continue
		}
		next = head + 1
		if len(events) > 0 && ctx.Err() == nil {
			onBatch(events)
		}
	}
}

func decodeLogs(logs []types.Log, at time.Time) []chain.Event {
	events := make([]chain.Event, 0, len(logs))
	for _, lg := range logs {
		ev, ok := decodeLog(lg)
		if !ok {
			continue
		}
		ev.ObservedAt = at
		events = append(events, ev)
	}
	return events
}
