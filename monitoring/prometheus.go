package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 计数任务结果
const (
	IncrementOK      = "ok"
	IncrementFailed  = "failed"
	IncrementDropped = "dropped"
)

var (
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_http_requests_total",
		Help: "HTTP requests served, by route and status code.",
	}, []string{"route", "code"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edge_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	RegistryFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edge_registry_fetch_duration_seconds",
		Help:    "Latency of object registry fetches by result.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	CounterIncrements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_counter_increments_total",
		Help: "Background download counter increments by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests,
		HTTPDuration,
		RegistryFetchDuration,
		CounterIncrements,
	)
}

// Handler 输出 Prometheus 格式指标
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
