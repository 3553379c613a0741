package peer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for peer synchronization.
type Metrics struct {
	// Pull outcomes per entry: written, skipped, rejected, failed
	PullEntries *prometheus.CounterVec

	// Full pull pass duration
	PullDuration prometheus.Histogram

	// HTTP requests served by the peer server
	Requests *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics returns the process-wide peer metrics, registering them on
// first use.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			PullEntries: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_sync_pull_entries_total",
				Help: "Per-entry pull outcomes",
			}, []string{"outcome"}),

			PullDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "ledger_sync_pull_duration_seconds",
				Help:    "Duration of full pull passes",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			}),

			Requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_peer_requests_total",
				Help: "HTTP requests served by the peer surface",
			}, []string{"route", "code"}),
		}
	})
	return metrics
}

// CountPullEntry records one per-entry pull outcome.
func (m *Metrics) CountPullEntry(outcome string) {
	if m != nil {
		m.PullEntries.WithLabelValues(outcome).Inc()
	}
}

// ObservePullDuration records the duration of a full pull pass.
func (m *Metrics) ObservePullDuration(d time.Duration) {
	if m != nil {
		m.PullDuration.Observe(d.Seconds())
	}
}

// CountRequest records one served HTTP request.
func (m *Metrics) CountRequest(route, code string) {
	if m != nil {
		m.Requests.WithLabelValues(route, code).Inc()
	}
}
