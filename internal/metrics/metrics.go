// Package metrics provides application-level metrics collection.
// Counters are plain atomics; Collector exposes them to Prometheus.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// RPC metrics
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcRetries      atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Transaction lifecycle metrics
	txSubmitted      atomic.Int64
	txConfirmed      atomic.Int64
	txFailed         atomic.Int64
	txRejectedLocal  atomic.Int64
	txPrepareFailed  atomic.Int64
	txAbandoned      atomic.Int64
	eventsMatched    atomic.Int64
	eventsFolded     atomic.Int64
	refreshApplied   atomic.Int64
	refreshDiscarded atomic.Int64

	// Notifications by level
	notifySuccess atomic.Int64
	notifyWarning atomic.Int64
	notifyError   atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordRPCCall records an RPC call with its duration and success status.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())
	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}
}

// RecordRPCRetry records a retried read.
func (m *Metrics) RecordRPCRetry() {
	m.rpcRetries.Add(1)
}

// RecordSubmitted records a broadcast transaction.
func (m *Metrics) RecordSubmitted() { m.txSubmitted.Add(1) }

// RecordConfirmed records a confirmed transaction.
func (m *Metrics) RecordConfirmed() { m.txConfirmed.Add(1) }

// RecordFailed records a rejected, reverted or timed out transaction.
func (m *Metrics) RecordFailed() { m.txFailed.Add(1) }

// RecordRejectedLocally records a submit refused without a network call.
func (m *Metrics) RecordRejectedLocally() { m.txRejectedLocal.Add(1) }

// RecordPrepareFailed records a failed estimation.
func (m *Metrics) RecordPrepareFailed() { m.txPrepareFailed.Add(1) }

// RecordAbandoned records a tracking wait dropped on disconnect.
func (m *Metrics) RecordAbandoned() { m.txAbandoned.Add(1) }

// RecordEventMatched records a chain event matched to an own transaction.
func (m *Metrics) RecordEventMatched() { m.eventsMatched.Add(1) }

// RecordEventsFolded records events merged into the snapshot.
func (m *Metrics) RecordEventsFolded(n int) { m.eventsFolded.Add(int64(n)) }

// RecordRefresh records a snapshot refresh outcome.
func (m *Metrics) RecordRefresh(applied bool) {
	if applied {
		m.refreshApplied.Add(1)
		return
	}
	m.refreshDiscarded.Add(1)
}

// RecordNotification records a published notification by level.
func (m *Metrics) RecordNotification(level string) {
	switch level {
	case "success":
		m.notifySuccess.Add(1)
	case "warning":
		m.notifyWarning.Add(1)
	case "error":
		m.notifyError.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	RPCCallsTotal    int64 `json:"rpc_calls_total"`
	RPCErrorsTotal   int64 `json:"rpc_errors_total"`
	RPCRetries       int64 `json:"rpc_retries"`
	RPCLatencyNanos  int64 `json:"rpc_latency_nanos"`
	TxSubmitted      int64 `json:"tx_submitted"`
	TxConfirmed      int64 `json:"tx_confirmed"`
	TxFailed         int64 `json:"tx_failed"`
	TxRejectedLocal  int64 `json:"tx_rejected_local"`
	TxPrepareFailed  int64 `json:"tx_prepare_failed"`
	TxAbandoned      int64 `json:"tx_abandoned"`
	EventsMatched    int64 `json:"events_matched"`
	EventsFolded     int64 `json:"events_folded"`
	RefreshApplied   int64 `json:"refresh_applied"`
	RefreshDiscarded int64 `json:"refresh_discarded"`
	NotifySuccess    int64 `json:"notify_success"`
	NotifyWarning    int64 `json:"notify_warning"`
	NotifyError      int64 `json:"notify_error"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:    m.rpcCallsTotal.Load(),
		RPCErrorsTotal:   m.rpcErrorsTotal.Load(),
		RPCRetries:       m.rpcRetries.Load(),
		RPCLatencyNanos:  m.rpcLatencyNanos.Load(),
		TxSubmitted:      m.txSubmitted.Load(),
		TxConfirmed:      m.txConfirmed.Load(),
		TxFailed:         m.txFailed.Load(),
		TxRejectedLocal:  m.txRejectedLocal.Load(),
		TxPrepareFailed:  m.txPrepareFailed.Load(),
		TxAbandoned:      m.txAbandoned.Load(),
		EventsMatched:    m.eventsMatched.Load(),
		EventsFolded:     m.eventsFolded.Load(),
		RefreshApplied:   m.refreshApplied.Load(),
		RefreshDiscarded: m.refreshDiscarded.Load(),
		NotifySuccess:    m.notifySuccess.Load(),
		NotifyWarning:    m.notifyWarning.Load(),
		NotifyError:      m.notifyError.Load(),
	}
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.rpcLatencyNanos.Load()) / float64(calls) / 1e6
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.rpcCallsTotal, &m.rpcErrorsTotal, &m.rpcRetries, &m.rpcLatencyNanos,
		&m.txSubmitted, &m.txConfirmed, &m.txFailed, &m.txRejectedLocal,
		&m.txPrepareFailed, &m.txAbandoned, &m.eventsMatched, &m.eventsFolded,
		&m.refreshApplied, &m.refreshDiscarded,
		&m.notifySuccess, &m.notifyWarning, &m.notifyError,
	} {
		c.Store(0)
	}
}
