package monitoring

import (
	"runtime"
	"sync"
	"time"
)

type SystemMetrics struct {
	// 基础指标
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"start_time"`

	// 系统指标
	NumCPU       int `json:"num_cpu"`
	NumGoroutine int `json:"num_goroutine"`
	MemoryStats  struct {
		Alloc      uint64 `json:"alloc"`
		TotalAlloc uint64 `json:"total_alloc"`
		Sys        uint64 `json:"sys"`
		HeapAlloc  uint64 `json:"heap_alloc"`
		HeapSys    uint64 `json:"heap_sys"`
	} `json:"memory_stats"`

	// 性能指标
	RequestCount   int64   `json:"request_count"`
	AverageLatency float64 `json:"average_latency"`

	// 状态码统计
	StatusCodes map[int]int64 `json:"status_codes"`

	// 路径延迟统计
	PathLatencies map[string]float64 `json:"path_latencies"`

	// 最近请求
	RecentRequests []RequestLog `json:"recent_requests"`
}

type RequestLog struct {
	Time       time.Time `json:"time"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	StatusCode int       `json:"status_code"`
	Latency    float64   `json:"latency"` // 毫秒
	IP         string    `json:"ip"`
	Referer    string    `json:"referer"`
}

const maxRecentRequests = 100

var (
	metrics      SystemMetrics
	totalLatency float64
	mu           sync.RWMutex
	startTime    = time.Now()
)

func init() {
	Reset()
}

// Reset 清空请求统计
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	metrics = SystemMetrics{}
	totalLatency = 0
	metrics.StatusCodes = make(map[int]int64)
	metrics.PathLatencies = make(map[string]float64)
	metrics.RecentRequests = make([]RequestLog, 0, maxRecentRequests)
}

// CollectMetrics 返回当前指标的快照
func CollectMetrics() SystemMetrics {
	mu.Lock()
	defer mu.Unlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics.Uptime = time.Since(startTime)
	metrics.StartTime = startTime
	metrics.NumCPU = runtime.NumCPU()
	metrics.NumGoroutine = runtime.NumGoroutine()

	metrics.MemoryStats.Alloc = m.Alloc
	metrics.MemoryStats.TotalAlloc = m.TotalAlloc
	metrics.MemoryStats.Sys = m.Sys
	metrics.MemoryStats.HeapAlloc = m.HeapAlloc
	metrics.MemoryStats.HeapSys = m.HeapSys

	snapshot := metrics
	snapshot.StatusCodes = make(map[int]int64, len(metrics.StatusCodes))
	for k, v := range metrics.StatusCodes {
		snapshot.StatusCodes[k] = v
	}
	snapshot.PathLatencies = make(map[string]float64, len(metrics.PathLatencies))
	for k, v := range metrics.PathLatencies {
		snapshot.PathLatencies[k] = v
	}
	snapshot.RecentRequests = append([]RequestLog(nil), metrics.RecentRequests...)
	return snapshot
}

func LogRequest(log RequestLog) {
	mu.Lock()
	defer mu.Unlock()

	metrics.RequestCount++
	metrics.StatusCodes[log.StatusCode]++
	totalLatency += log.Latency
	metrics.AverageLatency = totalLatency / float64(metrics.RequestCount)

	// 更新路径延迟
	if existing, ok := metrics.PathLatencies[log.Path]; ok {
		metrics.PathLatencies[log.Path] = (existing + log.Latency) / 2
	} else {
		metrics.PathLatencies[log.Path] = log.Latency
	}

	// 保存最近请求记录
	metrics.RecentRequests = append(metrics.RecentRequests, log)
	if len(metrics.RecentRequests) > maxRecentRequests {
		metrics.RecentRequests = metrics.RecentRequests[1:]
	}
}
