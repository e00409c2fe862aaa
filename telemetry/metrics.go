// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CorrelationsStarted   prometheus.Counter
	CorrelationsFailed    prometheus.Counter
	CorrelationsSucceeded prometheus.Counter
	SessionFetches        prometheus.Counter
	SessionFetchFailures  prometheus.Counter
	MonitorCycles         prometheus.Counter
	MonitorEvents         prometheus.Counter

	// Histograms (seconds)
	CorrelationDuration  prometheus.Observer
	SessionFetchDuration prometheus.Observer
	MonitorCycleDuration prometheus.Observer

	// Gauges
	WatchlistGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CorrelationsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "playerscope_correlations_started_total", Help: "Number of correlation requests started"})
		CorrelationsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "playerscope_correlations_failed_total", Help: "Number of correlation requests that failed entirely"})
		CorrelationsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "playerscope_correlations_succeeded_total", Help: "Number of correlation requests completed"})
		SessionFetches = promauto.NewCounter(prometheus.CounterOpts{Name: "playerscope_session_fetches_total", Help: "Number of per-player session fetches"})
		SessionFetchFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "playerscope_session_fetch_failures_total", Help: "Number of per-player session fetches that failed"})
		MonitorCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "playerscope_monitor_cycles_total", Help: "Number of watchlist polling cycles"})
		MonitorEvents = promauto.NewCounter(prometheus.CounterOpts{Name: "playerscope_monitor_events_total", Help: "Number of status-change events announced"})
		CorrelationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "playerscope_correlation_duration_seconds", Help: "Correlation request duration seconds", Buckets: prometheus.DefBuckets})
		SessionFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "playerscope_session_fetch_duration_seconds", Help: "Per-player session fetch duration seconds", Buckets: prometheus.DefBuckets})
		MonitorCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "playerscope_monitor_cycle_duration_seconds", Help: "Watchlist polling cycle duration seconds", Buckets: prometheus.DefBuckets})
		WatchlistGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "playerscope_watchlist_size", Help: "Current number of watched players"})
	})
}

// SetWatchlistSize records the current watchlist size.
func SetWatchlistSize(n int) {
	if WatchlistGauge != nil {
		WatchlistGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
