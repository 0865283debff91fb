package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultConfirmed         = "confirmed"
	ResultInsufficientStock = "insufficient_stock"
	ResultNotFound          = "not_found"
	ResultInvalid           = "invalid"
	ResultError             = "error"
)

// AllocationMetrics records outcomes of order allocation. A nil receiver is a
// no-op so callers never need to guard.
type AllocationMetrics struct {
	duration   prometheus.Histogram
	results    *prometheus.CounterVec
	candidates prometheus.Histogram
}

// NewAllocationMetrics registers the allocation metrics on reg.
func NewAllocationMetrics(reg prometheus.Registerer) *AllocationMetrics {
	if reg == nil {
		return &AllocationMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_duration_seconds",
		Help:    "Duration of order allocation in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_total",
		Help: "Order allocations by result.",
	}, []string{"result"})
	candidates := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_candidate_dealers",
		Help:    "Dealers evaluated per allocation.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})
	reg.MustRegister(duration, results, candidates)
	return &AllocationMetrics{
		duration:   duration,
		results:    results,
		candidates: candidates,
	}
}

func (m *AllocationMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *AllocationMetrics) IncResult(result string) {
	if m == nil || m.results == nil {
		return
	}
	if result == "" {
		result = ResultError
	}
	m.results.WithLabelValues(result).Inc()
}

func (m *AllocationMetrics) ObserveCandidates(n int) {
	if m == nil || m.candidates == nil {
		return
	}
	m.candidates.Observe(float64(n))
}
