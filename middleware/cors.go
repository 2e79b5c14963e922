package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods = "GET, HEAD, OPTIONS"
	// 允许的方法和头不会变化，浏览器可以长时间缓存预检结果
	corsMaxAge = "86400"
)

type cors struct {
	allowAll bool
	origins  map[string]struct{}
}

// CORS 为所有响应加上跨域头，并直接应答预检请求。
// allowedOrigins 为空或包含 "*" 时允许任意来源。
func CORS(allowedOrigins []string) Middleware {
	c := &cors{origins: make(map[string]struct{})}
	if len(allowedOrigins) == 0 {
		c.allowAll = true
	}
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			c.allowAll = true
		}
		c.origins[o] = struct{}{}
	}
	return c.middleware
}

func (c *cors) allowsOrigin(origin string) bool {
	if c.allowAll {
		return true
	}
	_, ok := c.origins[origin]
	return ok
}

func (c *cors) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := c.allowsOrigin(origin)

		h := w.Header()
		if c.allowAll {
			h.Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
