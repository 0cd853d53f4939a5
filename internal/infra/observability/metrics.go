package observability

import (
	"time"

	"github.com/seojun-park/minibank-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Transfer outcome labels.
const (
	TransferSuccess      = "success"
	TransferDuplicate    = "duplicate"
	TransferNotFound     = "account_not_found"
	TransferInsufficient = "insufficient_balance"
	TransferInvalid      = "invalid"
	TransferError        = "error"
)

// Metrics holds all Prometheus metrics for the API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	transfersTotal  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "minibank_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minibank_transfers_total",
				Help: "Total transfer requests by outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minibank_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minibank_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrTransfer increments the transfer counter with an outcome label.
func (m *Metrics) IncrTransfer(outcome string) {
	m.transfersTotal.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetTransferSnapshot returns a snapshot of transfer metrics suitable for
// the GET /api/metrics/transfers endpoint.
func (m *Metrics) GetTransferSnapshot() *domain.TransferMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	success := getCounterValue(m.transfersTotal, TransferSuccess)
	duplicate := getCounterValue(m.transfersTotal, TransferDuplicate)
	notFound := getCounterValue(m.transfersTotal, TransferNotFound)
	insufficient := getCounterValue(m.transfersTotal, TransferInsufficient)
	invalid := getCounterValue(m.transfersTotal, TransferInvalid)
	errored := getCounterValue(m.transfersTotal, TransferError)

	total := success + duplicate + notFound + insufficient + invalid + errored
	cacheHits := getCounterValue(m.cacheHits, "accounts")
	cacheMisses := getCounterValue(m.cacheMisses, "accounts")

	successRate := float64(0)
	cacheHitRate := float64(0)
	if total > 0 {
		successRate = success / total
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.TransferMetrics{
		TotalTransfers:         int64(total),
		SuccessfulTransfers:    int64(success),
		DuplicateRejections:    int64(duplicate),
		InsufficientRejections: int64(insufficient),
		SuccessRate:            successRate,
		CacheHitRate:           cacheHitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
