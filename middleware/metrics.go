package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"download-counter-go/monitoring"
)

// MetricsMiddleware 记录请求到 monitoring 与 Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		route := RouteLabel(r.URL.Path)
		monitoring.HTTPRequests.WithLabelValues(route, strconv.Itoa(rw.statusCode)).Inc()
		monitoring.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
		monitoring.LogRequest(monitoring.RequestLog{
			Time:       start,
			Path:       r.URL.Path,
			Method:     r.Method,
			StatusCode: rw.statusCode,
			Latency:    float64(duration.Microseconds()) / 1000,
			IP:         GetRealIP(r),
			Referer:    r.Referer(),
		})
	})
}

// RouteLabel 把路径归并成有限的路由名，避免指标标签基数失控
func RouteLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/r/"):
		return "retrieve"
	case strings.HasPrefix(path, "/s/"):
		return "stats"
	case strings.HasPrefix(path, "/static/"):
		return "static"
	case path == "/api/health", path == "/api/metrics", path == "/api/dead-letters", path == "/metrics":
		return path
	default:
		return "other"
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
