package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "rechtsinfo_build_info",
			Help:        "Build information",
			ConstLabels: prometheus.Labels{"component": "server"},
		},
		[]string{"date", "sha", "version"},
	)

	mcpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rechtsinfo_mcp_requests_total",
			Help: "Number of MCP messages handled per transport",
		},
		[]string{"transport", "outcome"},
	)

	mcpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rechtsinfo_mcp_request_duration_seconds",
			Help:    "Time from receiving an MCP message to writing its response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"transport"},
	)

	activeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rechtsinfo_mcp_active_connections",
			Help: "Open persistent MCP connections",
		},
		[]string{"transport"},
	)

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rechtsinfo_tool_calls_total",
			Help: "Number of tool invocations",
		},
		[]string{"tool", "outcome"},
	)

	toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rechtsinfo_tool_duration_seconds",
			Help:    "Tool invocation duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rechtsinfo_upstream_requests_total",
			Help: "Requests sent to the legal information API",
		},
		[]string{"endpoint", "outcome"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rechtsinfo_cache_lookups_total",
			Help: "Upstream response cache lookups",
		},
		[]string{"result"},
	)
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, mcpRequests, mcpRequestDuration, activeConnections, toolCalls, toolDuration, upstreamRequests, cacheLookups)
}

// SetServerBuildInfo sets the build info metric for the server.
func SetServerBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// RecordMCPRequest counts one handled MCP message and its latency.
// Outcome is a short label such as ok, error, timeout or accepted.
func RecordMCPRequest(transport, outcome string, d time.Duration) {
	mcpRequests.WithLabelValues(transport, outcome).Inc()
	mcpRequestDuration.WithLabelValues(transport).Observe(d.Seconds())
}

// ConnectionOpened increments the open connection gauge.
func ConnectionOpened(transport string) {
	activeConnections.WithLabelValues(transport).Inc()
}

// ConnectionClosed decrements the open connection gauge.
func ConnectionClosed(transport string) {
	activeConnections.WithLabelValues(transport).Dec()
}

// RecordToolCall counts a tool invocation.
func RecordToolCall(tool string, success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	toolCalls.WithLabelValues(tool, outcome).Inc()
	toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordUpstreamRequest counts a request to the legal information API.
func RecordUpstreamRequest(endpoint string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}
