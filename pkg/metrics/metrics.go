// Package metrics defines the Prometheus instrumentation for the state
// engine: writer throughput, tree maintenance cost, executor method
// counts, and epoch-phase state, served over an HTTP handler for
// scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WriterCommitDuration times one atomo.DB.Run call end to end,
	// including the merklize update staged into the same commit.
	WriterCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corestate_writer_commit_duration_seconds",
			Help:    "Duration of a single writer commit (executor + tree update + storage flush)",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TreeUpdateDuration times the merklize provider's UpdateStateTree call.
	TreeUpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corestate_tree_update_duration_seconds",
			Help:    "Duration of merklized tree update per commit",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ExecutorMethodTotal counts executed transactions by method and outcome.
	ExecutorMethodTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corestate_executor_method_total",
			Help: "Total transactions executed by method and outcome (success|revert)",
		},
		[]string{"method", "outcome"},
	)

	// StateRootGauge is updated to the most recently committed root's
	// first 8 bytes interpreted as a float-safe counter is not useful, so
	// instead this tracks the commit height the root corresponds to.
	StateRootGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corestate_state_root_commit_height",
			Help: "Commit height of the most recently derived state root",
		},
	)

	// EpochPhaseGauge reports the current committee-selection beacon phase
	// (0=None, 1=Commit, 2=Reveal).
	EpochPhaseGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corestate_epoch_phase",
			Help: "Current committee selection beacon phase (0=None,1=Commit,2=Reveal)",
		},
	)

	// EpochTimerNudgesTotal counts IncrementNonce transactions submitted
	// by the epoch timer to force block progress.
	EpochTimerNudgesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corestate_epoch_timer_nudges_total",
			Help: "Total benign IncrementNonce transactions submitted to force epoch progress",
		},
	)

	// CheckpointLoadDuration times a full load-from-checkpoint recovery.
	CheckpointLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corestate_checkpoint_load_duration_seconds",
			Help:    "Duration of checkpoint load and tree rebuild",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		WriterCommitDuration,
		TreeUpdateDuration,
		ExecutorMethodTotal,
		StateRootGauge,
		EpochPhaseGauge,
		EpochTimerNudgesTotal,
		CheckpointLoadDuration,
	)
}

// Timer measures an in-flight operation's duration.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into the given histogram.
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}

// Handler returns the HTTP handler that serves the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
