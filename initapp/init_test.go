package initapp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"download-counter-go/config"
	"download-counter-go/registry"
	"download-counter-go/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, mutate func(cfg *config.Config)) *App {
	t.Helper()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/static/pkg.json" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"name":"pkg"}`)
	}))
	t.Cleanup(origin.Close)

	cfg := config.Default()
	cfg.StoreBackend = config.StoreMemory
	cfg.BaseURL = origin.URL
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.NewMemoryStore(cfg.MemoryStoreSize)
	require.NoError(t, err)
	reg := registry.NewHTTPRegistry(cfg.BaseURL, cfg.RegistryBasePath, cfg.RegistryTimeout)
	return build(cfg, st, reg)
}

func serve(app *App, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestRetrieveThenStats(t *testing.T) {
	app := newTestApp(t, nil)

	rec := serve(app, http.MethodGet, "/r/pkg.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	app.Recorder.Wait()

	rec = serve(app, http.MethodGet, "/s/pkg.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"pkg","file":"pkg.json","count":1}`, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=600", rec.Header().Get("Cache-Control"))

	// 缓存期内新的下载不可见
	require.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/r/pkg.json", nil).Code)
	app.Recorder.Wait()
	rec = serve(app, http.MethodGet, "/s/pkg.json", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"key":"pkg","file":"pkg.json","count":1}`, rec.Body.String())

	require.NoError(t, app.Shutdown(context.Background()))
}

func TestStatsCacheDisabled(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.StatsCacheMaxAge = 0 })

	require.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/r/pkg.json", nil).Code)
	app.Recorder.Wait()
	rec := serve(app, http.MethodGet, "/s/pkg.json", nil)
	assert.Empty(t, rec.Header().Get("X-Cache"))

	require.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/r/pkg.json", nil).Code)
	app.Recorder.Wait()
	rec = serve(app, http.MethodGet, "/s/pkg.json", nil)
	assert.JSONEq(t, `{"key":"pkg","file":"pkg.json","count":2}`, rec.Body.String())

	require.NoError(t, app.Shutdown(context.Background()))
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.CORSAllowedOrigins = []string{"https://app.example"}
	})
	defer app.Shutdown(context.Background())

	rec := serve(app, http.MethodOptions, "/s/pkg.json", http.Header{
		"Origin":                        {"https://app.example"},
		"Access-Control-Request-Method": {"GET"},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, HEAD, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = serve(app, http.MethodOptions, "/s/pkg.json", http.Header{
		"Origin":                        {"https://evil.example"},
		"Access-Control-Request-Method": {"GET"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSDisabled(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.CORSEnabled = false })
	defer app.Shutdown(context.Background())

	rec := serve(app, http.MethodGet, "/r/pkg.json", http.Header{"Origin": {"https://app.example"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.RateLimitPerSecond = 1
		cfg.RateLimitBurst = 2
	})
	defer app.Shutdown(context.Background())

	header := http.Header{"X-Real-Ip": {"203.0.113.7"}}
	assert.Equal(t, http.StatusNotFound, serve(app, http.MethodGet, "/s/a.json", header).Code)
	assert.Equal(t, http.StatusNotFound, serve(app, http.MethodGet, "/s/a.json", header).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(app, http.MethodGet, "/s/a.json", header).Code)

	// 其它 IP 不受影响
	other := http.Header{"X-Real-Ip": {"203.0.113.8"}}
	assert.Equal(t, http.StatusNotFound, serve(app, http.MethodGet, "/s/a.json", other).Code)
}

// snapshotStore 在关闭前记下计数，关闭会清空内存存储
type snapshotStore struct {
	*store.MemoryStore
	atClose string
}

func (s *snapshotStore) Close() error {
	s.atClose, _, _ = s.MemoryStore.Get(context.Background(), "pkg")
	return s.MemoryStore.Close()
}

func TestShutdownDrainsRecorder(t *testing.T) {
	base := newTestApp(t, nil)
	mem, err := store.NewMemoryStore(16)
	require.NoError(t, err)
	st := &snapshotStore{MemoryStore: mem}
	cfg := base.Config
	cfg.RateLimitPerSecond = 0
	require.NoError(t, base.Shutdown(context.Background()))

	app := build(cfg, st, registry.NewHTTPRegistry(cfg.BaseURL, cfg.RegistryBasePath, cfg.RegistryTimeout))
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/r/pkg.json", nil).Code)
	}
	require.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, "5", st.atClose)

	// 关闭后的下载仍然返回对象，计数进入死信
	rec := serve(app, http.MethodGet, "/r/pkg.json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	dead := app.Recorder.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "recorder closed", dead[0].Reason)
}

func TestSingleBoxRetrievalsBypassRateLimiter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg.json"), []byte(`{"name":"pkg"}`), 0644))

	cfg := config.Default()
	cfg.StoreBackend = config.StoreMemory
	cfg.StaticDir = dir
	cfg.StatsCacheMaxAge = 0
	app, err := InitApp(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Shutdown(context.Background())

	// 每个客户端只请求一次，总数超过单个 IP 的突发上限
	n := cfg.RateLimitBurst + 20
	codes := map[int]int{}
	for i := 0; i < n; i++ {
		header := http.Header{"X-Real-Ip": {fmt.Sprintf("198.51.100.%d", i+1)}}
		rec := serve(app, http.MethodGet, "/r/pkg.json", header)
		codes[rec.Code]++
		if rec.Code == http.StatusOK {
			assert.Equal(t, `{"name":"pkg"}`, rec.Body.String())
		}
	}
	assert.Equal(t, map[int]int{http.StatusOK: n}, codes)

	app.Recorder.Wait()
	rec := serve(app, http.MethodGet, "/s/pkg.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"key":"pkg","file":"pkg.json","count":%d}`, n), rec.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(app, http.MethodGet, "/r/absent.json", nil).Code)
	assert.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/static/pkg.json", nil).Code)
}

func TestInitAppRejectsUnknownBackends(t *testing.T) {
	cfg := config.Default()
	cfg.StoreBackend = "etcd"
	_, err := InitApp(context.Background(), cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.StoreBackend = config.StoreMemory
	cfg.RegistryBackend = "ftp"
	_, err = InitApp(context.Background(), cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.StoreBackend = config.StoreMemory
	_, err = InitApp(context.Background(), cfg)
	assert.Error(t, err, "no BASE_URL and no STATIC_DIR")
}
