package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksIngested    *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
	cacheEvents      *prometheus.CounterVec
	bufferRecomputes *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlescope_ticks_ingested_total",
				Help: "Total number of ticks ingested from the market stream",
			},
			[]string{"source", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlescope_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "candlescope_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candlescope_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cacheEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlescope_cache_events_total",
				Help: "Cache hits and misses by cache name",
			},
			[]string{"cache", "result"},
		),
		bufferRecomputes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlescope_replay_buffer_recomputes_total",
				Help: "Replay buffer recomputations by invalidation reason",
			},
			[]string{"reason"},
		),
	}
}

// RecordTickIngested records one tick received from a market data source.
func (r *Recorder) RecordTickIngested(source, symbol string) {
	r.ticksIngested.WithLabelValues(source, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCacheEvent records a hit or miss for a named cache.
func (r *Recorder) RecordCacheEvent(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheEvents.WithLabelValues(cache, result).Inc()
}

// RecordBufferRecompute records one replay-buffer rebuild.
func (r *Recorder) RecordBufferRecompute(reason string) {
	r.bufferRecomputes.WithLabelValues(reason).Inc()
}
