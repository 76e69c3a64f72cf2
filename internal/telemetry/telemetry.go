package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the agent's instrumentation on a private registry so tests
// can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	MissionsTotal   *prometheus.CounterVec
	MissionDuration prometheus.Histogram
	ToolExecutions  *prometheus.CounterVec
	LLMRequests     *prometheus.CounterVec
	IntelReductions *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		MissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mia_missions_total",
			Help: "Missions processed, labelled by final status.",
		}, []string{"status"}),
		MissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mia_mission_duration_seconds",
			Help:    "Wall-clock time per mission.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mia_tool_executions_total",
			Help: "Tool invocations, labelled by tool and outcome.",
		}, []string{"tool", "outcome"}),
		LLMRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mia_llm_requests_total",
			Help: "LLM calls, labelled by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		IntelReductions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mia_intel_reductions_total",
			Help: "Intel pool reductions, labelled by tier applied.",
		}, []string{"tier"}),
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveMission records one finished mission.
func (m *Metrics) ObserveMission(status string, elapsed time.Duration) {
	m.MissionsTotal.WithLabelValues(status).Inc()
	m.MissionDuration.Observe(elapsed.Seconds())
}
