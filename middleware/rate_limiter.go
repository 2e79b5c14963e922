package middleware

import (
	"net/http"
	"sync"
	"time"

	"download-counter-go/utils"

	"golang.org/x/time/rate"
)

// IPRateLimiter 基于 IP 的限流器
type IPRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	once     sync.Once
}

// NewIPRateLimiter 创建新的 IP 限流器，并定期清理不活跃 IP 的限流器
func NewIPRateLimiter(r rate.Limit, b int, cleanupInterval time.Duration) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    b,
		stop:     make(chan struct{}),
	}

	go limiter.cleanupExpiredLimiters(cleanupInterval)

	return limiter
}

// GetLimiter 获取指定 IP 的限流器
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(i.rate, i.burst)
		i.limiters[ip] = limiter
	}

	return limiter
}

// Stop 停止后台清理
func (i *IPRateLimiter) Stop() {
	i.once.Do(func() { close(i.stop) })
}

// cleanupExpiredLimiters 清空所有限流器，下次请求时重新创建
func (i *IPRateLimiter) cleanupExpiredLimiters(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			i.mu.Lock()
			i.limiters = make(map[string]*rate.Limiter)
			i.mu.Unlock()
		case <-i.stop:
			return
		}
	}
}

// Middleware 超出限额的请求返回 429；需要放在 RealIPMiddleware 之后
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.GetLimiter(GetRealIP(r)).Allow() {
			utils.WriteError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
