package wf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects engine execution metrics, namespaced
// "workflow":
//
//   - frame_depth (gauge): current machine-stack depth, labeled run_id.
//   - transitions_total (counter): committed transitions, labeled
//     run_id.
//   - instructions_total (counter): host-delivered instructions,
//     labeled run_id and op.
//   - routine_failures_total (counter): routine errors, labeled run_id
//     and state.
//   - advance_latency_ms (histogram): time a routine ran between
//     suspensions, labeled state.
//
// Create one with NewPrometheusMetrics and pass it to the engine via
// WithMetrics; expose the registry over HTTP with promhttp for
// scraping. All methods are safe for use from the engine's single
// scheduling goroutine and from concurrent runs sharing the collector.
type PrometheusMetrics struct {
	frameDepth      *prometheus.GaugeVec
	transitions     *prometheus.CounterVec
	instructions    *prometheus.CounterVec
	routineFailures *prometheus.CounterVec
	advanceLatency  *prometheus.HistogramVec
}

// NewPrometheusMetrics creates and registers the engine metrics with
// registry (prometheus.DefaultRegisterer when nil).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		frameDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "workflow",
			Name:      "frame_depth",
			Help:      "Current depth of the engine's machine stack.",
		}, []string{"run_id"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "transitions_total",
			Help:      "Committed state transitions.",
		}, []string{"run_id"}),
		instructions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "instructions_total",
			Help:      "Instructions delivered to the host, by op.",
		}, []string{"run_id", "op"}),
		routineFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "routine_failures_total",
			Help:      "State routines that returned an error or panicked.",
		}, []string{"run_id", "state"}),
		advanceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Name:      "advance_latency_ms",
			Help:      "Milliseconds a routine ran between suspensions.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"state"}),
	}
}

func (pm *PrometheusMetrics) setFrameDepth(runID string, depth int) {
	if pm == nil {
		return
	}
	pm.frameDepth.WithLabelValues(runID).Set(float64(depth))
}

func (pm *PrometheusMetrics) incTransition(runID string) {
	if pm == nil {
		return
	}
	pm.transitions.WithLabelValues(runID).Inc()
}

func (pm *PrometheusMetrics) incInstruction(runID string, op Op) {
	if pm == nil {
		return
	}
	pm.instructions.WithLabelValues(runID, string(op)).Inc()
}

func (pm *PrometheusMetrics) incRoutineFailure(runID, state string) {
	if pm == nil {
		return
	}
	pm.routineFailures.WithLabelValues(runID, state).Inc()
}

func (pm *PrometheusMetrics) observeAdvance(state string, d time.Duration) {
	if pm == nil {
		return
	}
	pm.advanceLatency.WithLabelValues(state).Observe(float64(d.Milliseconds()))
}
