package middleware

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dchest/siphash"
	"github.com/jonboulle/clockwork"
)

const (
	cacheShards        = 8
	maxEntriesPerShard = 1024
	cacheStatusHeader  = "X-Cache"
	cacheStatusHit     = "HIT"
	cacheStatusMiss    = "MISS"
)

// ResponseCache 按完整 URL 缓存 200 响应 maxAge 时长，期间计数更新不可见
type ResponseCache struct {
	clock  clockwork.Clock
	maxAge time.Duration
	seed0  uint64
	seed1  uint64
	shards [cacheShards]cacheShard
}

type cacheShard struct {
	lock    sync.Mutex
	entries map[string]*cachedResponse
}

type cachedResponse struct {
	header  http.Header
	body    []byte
	stored  time.Time
	expires time.Time
}

func NewResponseCache(maxAge time.Duration, clock clockwork.Clock) *ResponseCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &ResponseCache{clock: clock, maxAge: maxAge}

	// siphash 种子在启动时随机生成
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	c.seed0 = binary.LittleEndian.Uint64(buf[:8])
	c.seed1 = binary.LittleEndian.Uint64(buf[8:])

	for i := range c.shards {
		c.shards[i].entries = make(map[string]*cachedResponse)
	}
	return c
}

func (c *ResponseCache) shard(key string) *cacheShard {
	return &c.shards[siphash.Hash(c.seed0, c.seed1, []byte(key))&(cacheShards-1)]
}

func (c *ResponseCache) get(key string) (*cachedResponse, bool) {
	now := c.clock.Now()
	s := c.shard(key)
	s.lock.Lock()
	defer s.lock.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expires) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

func (c *ResponseCache) put(key string, e *cachedResponse) {
	s := c.shard(key)
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.entries) >= maxEntriesPerShard {
		for k, old := range s.entries {
			if !e.stored.Before(old.expires) {
				delete(s.entries, k)
			}
		}
		if len(s.entries) >= maxEntriesPerShard {
			return
		}
	}
	s.entries[key] = e
}

// Len 返回当前缓存条目数（含尚未清理的过期条目）
func (c *ResponseCache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.lock.Lock()
		n += len(s.entries)
		s.lock.Unlock()
	}
	return n
}

// Middleware 只缓存 GET 请求
func (c *ResponseCache) Middleware(next http.Handler) http.Handler {
	cacheControl := fmt.Sprintf("public, max-age=%d", int(c.maxAge.Seconds()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.maxAge <= 0 || r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := r.URL.String()
		if e, ok := c.get(key); ok {
			h := w.Header()
			for k, v := range e.header {
				h[k] = append([]string(nil), v...)
			}
			age := int(c.clock.Since(e.stored).Seconds())
			h.Set("Age", strconv.Itoa(age))
			h.Set(cacheStatusHeader, cacheStatusHit)
			w.WriteHeader(http.StatusOK)
			w.Write(e.body)
			return
		}

		cw := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
		cw.Header().Set("Cache-Control", cacheControl)
		cw.Header().Set(cacheStatusHeader, cacheStatusMiss)
		next.ServeHTTP(cw, r)

		if cw.status != http.StatusOK {
			return
		}
		header := w.Header().Clone()
		header.Del(cacheStatusHeader)
		// 跨域头按每个请求的 Origin 重新计算，不进缓存
		for k := range header {
			if strings.HasPrefix(k, "Access-Control-") || k == "Vary" {
				delete(header, k)
			}
		}
		now := c.clock.Now()
		c.put(key, &cachedResponse{
			header:  header,
			body:    cw.body.Bytes(),
			stored:  now,
			expires: now.Add(c.maxAge),
		})
	})
}

// capturingWriter 在写出响应的同时保留一份响应体
type capturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (cw *capturingWriter) WriteHeader(status int) {
	if !cw.wroteHeader {
		cw.status = status
		cw.wroteHeader = true
		if status != http.StatusOK {
			cw.Header().Del("Cache-Control")
		}
	}
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *capturingWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	if cw.status == http.StatusOK {
		cw.body.Write(b)
	}
	return cw.ResponseWriter.Write(b)
}
