// Package observability exposes Prometheus metrics for agent runs,
// tool calls and outbound HTTP requests.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mediaqa/internal/core"
)

var (
	agentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaqa_agent_runs_total",
			Help: "Total number of agent runs by agent, provider and outcome",
		},
		[]string{"agent", "provider", "outcome"},
	)

	agentRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediaqa_agent_run_duration_seconds",
			Help:    "Duration of agent runs including tool calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"agent", "provider"},
	)

	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaqa_tool_calls_total",
			Help: "Total number of tool calls by agent, tool and outcome",
		},
		[]string{"agent", "tool", "outcome"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediaqa_tool_call_duration_seconds",
			Help:    "Duration of tool calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent", "tool"},
	)

	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaqa_upstream_requests_total",
			Help: "Total number of HTTP requests to remote APIs by provider and status code",
		},
		[]string{"provider", "method", "status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediaqa_upstream_request_duration_seconds",
			Help:    "Duration of HTTP requests to remote APIs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

// Metrics records measurements into the default Prometheus registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct{}

// New returns a Metrics recorder, or nil when metrics are disabled.
func New(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	return &Metrics{}
}

// ObserveRun implements agent.Observer.
func (m *Metrics) ObserveRun(agent, provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	agentRuns.WithLabelValues(agent, provider, outcome(err)).Inc()
	agentRunDuration.WithLabelValues(agent, provider).Observe(duration.Seconds())
}

// ObserveToolCall implements agent.Observer.
func (m *Metrics) ObserveToolCall(agent, tool string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	toolCalls.WithLabelValues(agent, tool, outcome(err)).Inc()
	toolCallDuration.WithLabelValues(agent, tool).Observe(duration.Seconds())
}

// ObserveRequest implements llmclient.Hooks. A status of 0 means the request never got a response.
func (m *Metrics) ObserveRequest(provider, method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	upstreamRequests.WithLabelValues(provider, method, status).Inc()
	upstreamDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(core.KindOf(err))
}
