// Package metrics exposes staking service instrumentation through Prometheus.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orderflow"

// Metrics holds the collectors of one service instance on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	operations       *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	totalStaked      prometheus.Gauge
	currentEpoch     prometheus.Gauge
	rewardsPaid      prometheus.Counter
	swapsProcessed   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Staking operations by name and result.",
		}, []string{"op", "result"}),
		transferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_transfer_seconds",
			Help:      "Latency of ledger transfers by vault and direction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"vault", "direction"}),
		totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_staked",
			Help:      "Sum of all staked balances.",
		}),
		currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_epoch",
			Help:      "Index of the active epoch.",
		}),
		rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_paid_total",
			Help:      "Reward units transferred to claimers.",
		}),
		swapsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_processed_total",
			Help:      "Swaps consumed from the volume feed by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.operations,
		m.transferDuration,
		m.totalStaked,
		m.currentEpoch,
		m.rewardsPaid,
		m.swapsProcessed,
	)
	return m
}

// ObserveOperation counts one finished operation.
func (m *Metrics) ObserveOperation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveTransfer(vault, direction string, d time.Duration) {
	if m == nil {
		return
	}
	m.transferDuration.WithLabelValues(vault, direction).Observe(d.Seconds())
}

// SetGlobal publishes the aggregate counters of the protocol.
func (m *Metrics) SetGlobal(totalStaked, epoch uint64) {
	if m == nil {
		return
	}
	m.totalStaked.Set(float64(totalStaked))
	m.currentEpoch.Set(float64(epoch))
}

func (m *Metrics) AddRewardsPaid(amount uint64) {
	if m == nil {
		return
	}
	m.rewardsPaid.Add(float64(amount))
}

func (m *Metrics) ObserveSwap(outcome string) {
	if m == nil {
		return
	}
	m.swapsProcessed.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Operations exposes the operation counter for inspection.
func (m *Metrics) Operations() *prometheus.CounterVec {
	return m.operations
}

// SwapsProcessed exposes the swap outcome counter for inspection.
func (m *Metrics) SwapsProcessed() *prometheus.CounterVec {
	return m.swapsProcessed
}
