package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "econ_digest"

// Metrics groups the collectors updated by a run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	articles   prometheus.Gauge
	batches    *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	running    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Report runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of runs that acquired the guard.",
			Buckets:   []float64{1, 10, 30, 60, 120, 300, 600, 1200},
		}),
		articles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_articles",
			Help:      "Unique articles fetched by the last run.",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_batches_total",
			Help:      "Summarization batches by status.",
		}, []string{"status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts by target and status.",
		}, []string{"target", "status"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while this instance holds the run guard.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.articles, m.batches, m.deliveries, m.running)
	return m
}

// RunStarted marks the guard as held.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.running.Set(1)
}

// RunFinished records the outcome and, for runs that held the guard, the duration.
func (m *Metrics) RunFinished(outcome string, elapsed time.Duration, held bool) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	if held {
		m.duration.Observe(elapsed.Seconds())
		m.running.Set(0)
	}
}

// ArticlesFetched records the size of the last fetch.
func (m *Metrics) ArticlesFetched(n int) {
	if m == nil {
		return
	}
	m.articles.Set(float64(n))
}

// Batch records one summarization batch.
func (m *Metrics) Batch(ok bool) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status(ok)).Inc()
}

// Delivery records one transport result.
func (m *Metrics) Delivery(target string, ok bool) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(target, status(ok)).Inc()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
