// Package metrics 定义服务暴露给 Prometheus 的指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 流式对话的结束状态
const (
	StatusCompleted = "completed"
	StatusUpstream  = "upstream_error"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
)

var (
	// ChatStreamsTotal counts relayed turns by terminal status
	ChatStreamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_chat_streams_total",
		Help: "Total streaming chat turns by terminal status",
	}, []string{"status"})

	// ChatActiveStreams is the number of turns currently streaming
	ChatActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_chat_active_streams",
		Help: "Streaming chat turns currently in flight",
	})

	// ChatTokensTotal accumulates provider-reported usage
	ChatTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_chat_tokens_total",
		Help: "Tokens reported by the completion provider",
	}, []string{"kind"})

	ChatStreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_chat_stream_duration_seconds",
		Help:    "Wall time of a streaming chat turn",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2min
	}, []string{"status"})

	ChatUpstreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_chat_upstream_errors_total",
		Help: "Failures reported by or while talking to the completion provider",
	})

	// HTTPRequestsTotal counts requests by matched route
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
)

// ObserveUsage 把一次调用的 token 用量计入 ChatTokensTotal。
func ObserveUsage(prompt, completion int) {
	ChatTokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	ChatTokensTotal.WithLabelValues("completion").Add(float64(completion))
}
