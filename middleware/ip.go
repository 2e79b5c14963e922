package middleware

import (
	"context"
	"net/http"

	"download-counter-go/utils"
)

// contextKey 用于在 context 中存储真实 IP
type contextKey string

const (
	// RealIPKey 用于在 context 中存储真实 IP 的 key
	RealIPKey contextKey = "real_ip"
)

// RealIPMiddleware 从 X-Real-IP、X-Forwarded-For 或 RemoteAddr 中取出客户端 IP 放入 context
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		realIP := utils.GetRealIP(r)
		ctx := context.WithValue(r.Context(), RealIPKey, realIP)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRealIP 从 request context 中获取真实 IP
func GetRealIP(r *http.Request) string {
	if ip, ok := r.Context().Value(RealIPKey).(string); ok {
		return ip
	}
	return utils.GetRealIP(r)
}
