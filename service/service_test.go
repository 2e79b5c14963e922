package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"download-counter-go/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainStore 只实现 Get/Put，强制走读改写路径
type plainStore struct {
	mu   sync.Mutex
	data map[string]string

	// readers 非空时，每次 Get 读完后等所有并发读者都读到同一个旧值
	readers *sync.WaitGroup
	// gate 非空时 Get 阻塞到 gate 被关闭
	gate    chan struct{}
	failPut error
}

func newPlainStore() *plainStore {
	return &plainStore{data: make(map[string]string)}
}

func (p *plainStore) Get(ctx context.Context, key string) (string, bool, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	v, ok := p.data[key]
	p.mu.Unlock()
	if p.readers != nil {
		p.readers.Done()
		p.readers.Wait()
	}
	return v, ok, nil
}

func (p *plainStore) Put(ctx context.Context, key, value string) error {
	if p.failPut != nil {
		return p.failPut
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = value
	return nil
}

func (p *plainStore) Ping(ctx context.Context) error { return nil }
func (p *plainStore) Close() error                   { return nil }

func TestValidateObjectName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"pkg.json", false},
		{"PKG.JSON", false},
		{"pkg.Json", false},
		{"", true},
		{"pkg", true},
		{"pkg.yaml", true},
		{".json", true},
		{"a/pkg.json", true},
	}
	for _, tt := range tests {
		err := ValidateObjectName(tt.name, ".json")
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidInput, tt.name)
		} else {
			assert.NoError(t, err, tt.name)
		}
	}
}

func TestCounterKey(t *testing.T) {
	assert.Equal(t, "pkg", CounterKey("pkg.json", ".json"))
	assert.Equal(t, "pkg", CounterKey("pkg.JSON", ".json"))
	assert.Equal(t, "pkg.json.bak", CounterKey("pkg.json.bak", ".json"))
	assert.Equal(t, "my.json.pkg", CounterKey("my.json.pkg.json", ".json"))
	assert.Equal(t, "pkg", CounterKey("pkg", ".json"))
	assert.Equal(t, "pkg.json", FileName("pkg", ".json"))
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	s := newPlainStore()
	c := NewCounterService(s, ".json", true)

	_, err := c.Lookup(ctx, "pkg.json")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Lookup(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, s.Put(ctx, "pkg", "3"))
	stats, err := c.Lookup(ctx, "pkg.json")
	require.NoError(t, err)
	assert.Equal(t, &Stats{Key: "pkg", File: "pkg.json", Count: 3}, stats)

	// 非数字的旧值视为 0
	require.NoError(t, s.Put(ctx, "junk", "abc"))
	stats, err = c.Lookup(ctx, "junk.json")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Count)
}

func TestIncrementReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	s := newPlainStore()
	c := NewCounterService(s, ".json", true)

	for i := 1; i <= 3; i++ {
		n, err := c.Increment(ctx, "pkg")
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}
	assert.Equal(t, "3", s.data["pkg"])

	s.data["junk"] = "NaN"
	n, err := c.Increment(ctx, "junk")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIncrementLostUpdateRace(t *testing.T) {
	const k = 8
	ctx := context.Background()
	s := newPlainStore()
	s.readers = &sync.WaitGroup{}
	s.readers.Add(k)
	c := NewCounterService(s, ".json", true)

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Increment(ctx, "pkg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 所有读者读到同一个旧值，只有一次自增生效
	assert.Less(t, store.ParseCount(s.data["pkg"]), int64(k))
	assert.Equal(t, "1", s.data["pkg"])
}

func TestIncrementAtomicNoLostUpdates(t *testing.T) {
	const k = 64
	ctx := context.Background()
	mem, err := store.NewMemoryStore(16)
	require.NoError(t, err)
	c := NewCounterService(mem, ".json", true)

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Increment(ctx, "pkg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := c.Lookup(ctx, "pkg.json")
	require.NoError(t, err)
	assert.Equal(t, int64(k), stats.Count)
}

func TestRecorderCountsInBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mem, err := store.NewMemoryStore(16)
	require.NoError(t, err)
	c := NewCounterService(mem, ".json", true)
	r := NewRecorder(c, 2, 16, time.Second)

	r.Schedule(ctx, "pkg")
	r.Schedule(ctx, "pkg")
	// 请求结束后任务仍然要完成
	cancel()
	r.Schedule(ctx, "pkg")
	r.Wait()

	stats, err := c.Lookup(context.Background(), "pkg.json")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Count)
	assert.Empty(t, r.DeadLetters())
	require.NoError(t, r.Close(context.Background()))
}

func TestRecorderFailureIsDeadLettered(t *testing.T) {
	s := newPlainStore()
	s.failPut = errors.New("store unavailable")
	r := NewRecorder(NewCounterService(s, ".json", true), 1, 4, time.Second)

	r.Schedule(context.Background(), "pkg")
	r.Wait()

	dead := r.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "pkg", dead[0].Key)
	assert.Contains(t, dead[0].Reason, "store unavailable")
	require.NoError(t, r.Close(context.Background()))
}

func TestRecorderQueueFullDrops(t *testing.T) {
	s := newPlainStore()
	// 第一个任务阻塞在 Get 上，直到测试放行
	s.gate = make(chan struct{})
	r := NewRecorder(NewCounterService(s, ".json", false), 1, 1, time.Second)

	r.Schedule(context.Background(), "a")
	require.Eventually(t, func() bool { return len(r.queue) == 0 }, time.Second, time.Millisecond)
	r.Schedule(context.Background(), "b") // 占满队列
	r.Schedule(context.Background(), "c") // 被丢弃

	dead := r.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "c", dead[0].Key)
	assert.Equal(t, "queue full", dead[0].Reason)

	close(s.gate)
	r.Wait()
	require.NoError(t, r.Close(context.Background()))
}

func TestRecorderClosedDrops(t *testing.T) {
	r := NewRecorder(NewCounterService(newPlainStore(), ".json", true), 1, 4, time.Second)
	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	r.Schedule(context.Background(), "late")
	dead := r.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "recorder closed", dead[0].Reason)
}
