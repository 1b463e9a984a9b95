package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors. Authorization server
// counters live in internal/auth/metrics. A nil *Metrics is valid
// and records nothing, which keeps service tests free of registry setup.
type Metrics struct {
	RPCRequests      *prometheus.CounterVec
	RPCLatency       *prometheus.HistogramVec
	ToolCalls        *prometheus.CounterVec
	TaskTransitions  *prometheus.CounterVec
	TaskQueueDepth   prometheus.Gauge
	RateLimited      *prometheus.CounterVec
	ProviderExchange *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgate_rpc_requests_total",
			Help: "JSON-RPC requests, labelled by protocol, method and outcome",
		}, []string{"protocol", "method", "outcome"}),
		RPCLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitgate_rpc_duration_seconds",
			Help:    "JSON-RPC dispatch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"protocol", "method"}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgate_tool_calls_total",
			Help: "Tool invocations, labelled by tool and outcome",
		}, []string{"tool", "outcome"}),
		TaskTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgate_task_transitions_total",
			Help: "Task state transitions, labelled by task type and target status",
		}, []string{"task_type", "status"}),
		TaskQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitgate_task_queue_depth",
			Help: "Tasks waiting for an executor worker",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgate_rate_limited_total",
			Help: "Requests rejected by the rate limiter, labelled by protocol",
		}, []string{"protocol"}),
		ProviderExchange: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitgate_provider_token_exchanges_total",
			Help: "Outbound provider token exchanges, labelled by provider and outcome",
		}, []string{"provider", "outcome"}),
	}
}

func (m *Metrics) ObserveRPC(protocol, method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(protocol, method, outcome).Inc()
	m.RPCLatency.WithLabelValues(protocol, method).Observe(seconds)
}

func (m *Metrics) IncToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) IncTaskTransition(taskType, status string) {
	if m == nil {
		return
	}
	m.TaskTransitions.WithLabelValues(taskType, status).Inc()
}

func (m *Metrics) SetTaskQueueDepth(n int) {
	if m == nil {
		return
	}
	m.TaskQueueDepth.Set(float64(n))
}

func (m *Metrics) IncRateLimited(protocol string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(protocol).Inc()
}

func (m *Metrics) IncProviderExchange(provider, outcome string) {
	if m == nil {
		return
	}
	m.ProviderExchange.WithLabelValues(provider, outcome).Inc()
}
