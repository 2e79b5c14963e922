package store

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// MemoryStore 进程内的有界存储，超过容量时淘汰最久未使用的计数
type MemoryStore struct {
	l  *lru.Cache
	mu sync.Mutex
}

func NewMemoryStore(maxEntries int) (*MemoryStore, error) {
	l, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{l: l}, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.l.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("value for key %s is not a string", key)
	}
	return s, true, nil
}

func (m *MemoryStore) Put(ctx context.Context, key, value string) error {
	m.l.Add(key, value)
	return nil
}

func (m *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	if v, ok := m.l.Get(key); ok {
		if s, ok := v.(string); ok {
			n = ParseCount(s)
		}
	}
	n++
	m.l.Add(key, FormatCount(n))
	return n, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	m.l.Purge()
	return nil
}
