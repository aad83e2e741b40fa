package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the operational counters for the alerting engine. All
// methods are nil-safe so callers need no metrics-enabled branches.
type Metrics struct {
	fetchFailures  *prometheus.CounterVec
	cacheRefreshes prometheus.Counter
	roundsTotal    prometheus.Counter
	tasksTotal     prometheus.Counter
	taskFailures   prometheus.Counter
	alertsSent     prometheus.Counter
	loopRestarts   *prometheus.CounterVec
	roundDuration  prometheus.Histogram
}

// New registers and returns the engine metrics.
func New() *Metrics {
	m := &Metrics{
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratewatch",
			Subsystem: "fetcher",
			Name:      "fetch_failures_total",
			Help:      "Source fetches that fell back to the last-known value",
		}, []string{"instrument"}),
		cacheRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratewatch",
			Subsystem: "cache",
			Name:      "refreshes_total",
			Help:      "Completed cache refresh sweeps",
		}),
		roundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratewatch",
			Subsystem: "fanout",
			Name:      "rounds_total",
			Help:      "Fan-out rounds started",
		}),
		tasksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratewatch",
			Subsystem: "fanout",
			Name:      "tasks_total",
			Help:      "Per-user evaluation tasks dispatched",
		}),
		taskFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratewatch",
			Subsystem: "fanout",
			Name:      "task_failures_total",
			Help:      "Evaluation tasks that failed and were dropped",
		}),
		alertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratewatch",
			Subsystem: "fanout",
			Name:      "alerts_sent_total",
			Help:      "Notifications delivered to users",
		}),
		loopRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratewatch",
			Subsystem: "supervisor",
			Name:      "loop_restarts_total",
			Help:      "Background loop restarts after unexpected exit",
		}, []string{"loop"}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ratewatch",
			Subsystem: "fanout",
			Name:      "round_duration_seconds",
			Help:      "Wall-clock duration of fan-out rounds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.fetchFailures,
		m.cacheRefreshes,
		m.roundsTotal,
		m.tasksTotal,
		m.taskFailures,
		m.alertsSent,
		m.loopRestarts,
		m.roundDuration,
	)

	return m
}

func (m *Metrics) FetchFailure(instrument string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(instrument).Inc()
}

func (m *Metrics) CacheRefresh() {
	if m == nil {
		return
	}
	m.cacheRefreshes.Inc()
}

func (m *Metrics) RoundStarted() {
	if m == nil {
		return
	}
	m.roundsTotal.Inc()
}

func (m *Metrics) TaskDispatched() {
	if m == nil {
		return
	}
	m.tasksTotal.Inc()
}

func (m *Metrics) TaskFailed() {
	if m == nil {
		return
	}
	m.taskFailures.Inc()
}

func (m *Metrics) AlertSent() {
	if m == nil {
		return
	}
	m.alertsSent.Inc()
}

func (m *Metrics) LoopRestarted(loop string) {
	if m == nil {
		return
	}
	m.loopRestarts.WithLabelValues(loop).Inc()
}

func (m *Metrics) ObserveRound(seconds float64) {
	if m == nil {
		return
	}
	m.roundDuration.Observe(seconds)
}

// Serve exposes /metrics and /health on the given port. Blocks.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
