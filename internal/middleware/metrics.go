package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/reflux/internal/store"
)

const subsystem = "store"

// Metrics holds the Prometheus collectors for dispatch instrumentation.
type Metrics struct {
	dispatched *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	depth      prometheus.Gauge
}

// NewMetrics registers the dispatch collectors with reg.
// Panics if they are already registered there, like promauto.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		dispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dispatched_total",
				Help:      "Total number of actions dispatched, by action type",
			},
			[]string{"action"},
		),
		suppressed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "suppressed_total",
				Help:      "Total number of dispatches that never reached the reducer, by action type",
			},
			[]string{"action"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent in the rest of the chain, reducer and notifications included",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"action"},
		),
		depth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dispatch_depth_max",
				Help:      "Deepest nested dispatch observed",
			},
		),
	}
}

// Instrument returns a middleware recording m for every dispatch.
func Instrument[S any](m *Metrics) store.Middleware[S] {
	maxDepth := 0
	return func(api store.API[S], action store.Action, next store.Next) {
		actionType := store.TypeOf(action)
		version := api.Version()
		if d := api.Depth(); d > maxDepth {
			maxDepth = d
			m.depth.Set(float64(d))
		}

		start := time.Now()
		next(action)
		elapsed := time.Since(start)

		m.dispatched.WithLabelValues(actionType).Inc()
		m.duration.WithLabelValues(actionType).Observe(elapsed.Seconds())
		if api.Version() == version {
			m.suppressed.WithLabelValues(actionType).Inc()
		}
	}
}
