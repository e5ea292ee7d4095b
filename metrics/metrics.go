// Package metrics exposes Prometheus counters for the voice rating engine
// and server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voice_rating"

var (
	transcriptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Total number of transcripts handled by the dialogue",
		},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Dialogue state transitions",
		},
		[]string{"from", "to"},
	)

	effectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effects_total",
			Help:      "Effects executed by the engine",
		},
		[]string{"kind"},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Rating form submissions",
		},
		[]string{"status"}, // status: success, error
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open voice sessions",
		},
	)

	sessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session endpoint calls handled by the server",
		},
		[]string{"event"}, // event: start, wake, command, end
	)

	allMetrics = []prometheus.Collector{
		transcriptsTotal,
		transitionsTotal,
		effectsTotal,
		submissionsTotal,
		sessionsActive,
		sessionEventsTotal,
	}

	registry = newRegistry()
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func RecordTranscript() {
	transcriptsTotal.Inc()
}

// RecordTransition counts a state change; self transitions are skipped.
func RecordTransition(from, to string) {
	if from == to {
		return
	}
	transitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordEffect(kind string) {
	effectsTotal.WithLabelValues(kind).Inc()
}

func RecordSubmission(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	submissionsTotal.WithLabelValues(status).Inc()
}

func RecordSessionEvent(event string) {
	sessionEventsTotal.WithLabelValues(event).Inc()
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}
