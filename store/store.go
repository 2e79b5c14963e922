// Package store 提供下载计数使用的键值存储。
//
// 所有后端都满足最小的 Get/Put 约定；能够原子自增的后端额外实现 Incrementer。
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"download-counter-go/config"
	"download-counter-go/database"
)

// Store 键值存储，值始终是字符串
type Store interface {
	// Get 返回键对应的值，found 为 false 表示键从未写入
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Put(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

// Incrementer 支持原子自增的存储，缺失或非数字的旧值按 0 处理
type Incrementer interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// ParseCount 解析存储中的计数值，缺失、负数或非数字都视为 0
func ParseCount(value string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FormatCount 把计数写回字符串
func FormatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

// New 根据配置创建存储后端
func New(cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return NewMemoryStore(cfg.MemoryStoreSize)
	case config.StoreRedis:
		return NewRedisStore(cfg.RedisTarget)
	case config.StoreSQLite:
		db, err := database.Initialize(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
