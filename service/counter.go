package service

import (
	"context"
	"fmt"
	"strings"

	"download-counter-go/store"
)

// Stats 某个对象的下载统计
type Stats struct {
	Key   string
	File  string
	Count int64
}

// hasSuffix 大小写不敏感的后缀判断
func hasSuffix(name, suffix string) bool {
	return len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix)
}

// ValidateObjectName 对象名不能为空、不能包含"/"，并且必须以 suffix 结尾
func ValidateObjectName(name, suffix string) error {
	if name == "" {
		return fmt.Errorf("%w: missing object name", ErrInvalidInput)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: object name %q must not contain '/'", ErrInvalidInput, name)
	}
	if !hasSuffix(name, suffix) || len(name) == len(suffix) {
		return fmt.Errorf("%w: object name %q must end with %s", ErrInvalidInput, name, suffix)
	}
	return nil
}

// CounterKey 去掉结尾的 suffix 得到计数键
func CounterKey(name, suffix string) string {
	if hasSuffix(name, suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// FileName 由计数键还原规范的文件名
func FileName(key, suffix string) string {
	return key + suffix
}

// CounterService 维护每个对象的下载计数
type CounterService struct {
	store  store.Store
	suffix string
	atomic bool
}

// NewCounterService atomic 为 true 且存储支持时使用原子自增，否则走读改写
func NewCounterService(s store.Store, suffix string, atomic bool) *CounterService {
	return &CounterService{store: s, suffix: suffix, atomic: atomic}
}

func (c *CounterService) Suffix() string {
	return c.suffix
}

func (c *CounterService) Validate(name string) error {
	return ValidateObjectName(name, c.suffix)
}

func (c *CounterService) Key(name string) string {
	return CounterKey(name, c.suffix)
}

// Increment 计数加一并返回新值。
// 读改写路径不是原子的：同一个键的并发自增可能丢失更新。
func (c *CounterService) Increment(ctx context.Context, key string) (int64, error) {
	if inc, ok := c.store.(store.Incrementer); ok && c.atomic {
		n, err := inc.Incr(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("increment %s: %w", key, err)
		}
		return n, nil
	}

	value, _, err := c.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	n := store.ParseCount(value) + 1
	if err := c.store.Put(ctx, key, store.FormatCount(n)); err != nil {
		return 0, fmt.Errorf("write counter %s: %w", key, err)
	}
	return n, nil
}

// Lookup 查询对象名对应的计数，从未计数时返回 ErrNotFound
func (c *CounterService) Lookup(ctx context.Context, name string) (*Stats, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: missing object name", ErrInvalidInput)
	}
	key := c.Key(name)
	value, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read counter %s: %v", ErrInternal, key, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: counter %s", ErrNotFound, key)
	}
	return &Stats{
		Key:   key,
		File:  FileName(key, c.suffix),
		Count: store.ParseCount(value),
	}, nil
}
