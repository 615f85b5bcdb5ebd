package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coffer"

// Collector exposes a Metrics instance as Prometheus metrics.
type Collector struct {
	m *Metrics

	rpcCalls      *prometheus.Desc
	rpcErrors     *prometheus.Desc
	rpcRetries    *prometheus.Desc
	rpcLatency    *prometheus.Desc
	transactions  *prometheus.Desc
	events        *prometheus.Desc
	refreshes     *prometheus.Desc
	notifications *prometheus.Desc
}

// NewCollector creates a Collector reading from m.
func NewCollector(m *Metrics) *Collector {
	return &Collector{
		m:          m,
		rpcCalls:   prometheus.NewDesc(namespace+"_rpc_calls_total", "Ledger RPC calls made.", nil, nil),
		rpcErrors:  prometheus.NewDesc(namespace+"_rpc_errors_total", "Ledger RPC calls that failed.", nil, nil),
		rpcRetries: prometheus.NewDesc(namespace+"_rpc_retries_total", "Idempotent reads retried.", nil, nil),
		rpcLatency: prometheus.NewDesc(namespace+"_rpc_latency_seconds_total", "Cumulative RPC latency.", nil, nil),
		transactions: prometheus.NewDesc(namespace+"_transactions_total",
			"Transaction lifecycle outcomes.", []string{"outcome"}, nil),
		events: prometheus.NewDesc(namespace+"_events_total",
			"Bank events handled.", []string{"result"}, nil),
		refreshes: prometheus.NewDesc(namespace+"_snapshot_refreshes_total",
			"Snapshot refreshes by result.", []string{"result"}, nil),
		notifications: prometheus.NewDesc(namespace+"_notifications_total",
			"User notifications published.", []string{"level"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rpcCalls
	ch <- c.rpcErrors
	ch <- c.rpcRetries
	ch <- c.rpcLatency
	ch <- c.transactions
	ch <- c.events
	ch <- c.refreshes
	ch <- c.notifications
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.rpcCalls, s.RPCCallsTotal)
	counter(c.rpcErrors, s.RPCErrorsTotal)
	counter(c.rpcRetries, s.RPCRetries)
	ch <- prometheus.MustNewConstMetric(c.rpcLatency, prometheus.CounterValue, float64(s.RPCLatencyNanos)/1e9)

	counter(c.transactions, s.TxSubmitted, "submitted")
	counter(c.transactions, s.TxConfirmed, "confirmed")
	counter(c.transactions, s.TxFailed, "failed")
	counter(c.transactions, s.TxRejectedLocal, "rejected_locally")
	counter(c.transactions, s.TxPrepareFailed, "prepare_failed")
	counter(c.transactions, s.TxAbandoned, "abandoned")

	counter(c.events, s.EventsMatched, "matched")
	counter(c.events, s.EventsFolded, "folded")

	counter(c.refreshes, s.RefreshApplied, "applied")
	counter(c.refreshes, s.RefreshDiscarded, "discarded")

	counter(c.notifications, s.NotifySuccess, "success")
	counter(c.notifications, s.NotifyWarning, "warning")
	counter(c.notifications, s.NotifyError, "error")
}

// Handler returns an HTTP handler serving m on a dedicated registry.
func Handler(m *Metrics) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(m)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
