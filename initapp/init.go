package initapp

import (
	"context"
	"fmt"
	"time"

	"download-counter-go/config"
	"download-counter-go/handler"
	"download-counter-go/middleware"
	"download-counter-go/registry"
	"download-counter-go/router"
	"download-counter-go/service"
	"download-counter-go/store"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const rateLimiterCleanupInterval = 10 * time.Minute

// App 组装好的服务及其需要在退出时释放的资源
type App struct {
	Config   *config.Config
	Store    store.Store
	Counter  *service.CounterService
	Recorder *service.Recorder
	Router   *router.Router

	limiter *middleware.IPRateLimiter
}

// InitApp 按配置创建存储、仓库、计数服务和路由
func InitApp(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("counter store ready")

	reg, err := registry.New(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create %s registry: %w", cfg.RegistryBackend, err)
	}
	log.Info().Str("backend", cfg.RegistryBackend).Msg("object registry ready")

	return build(cfg, st, reg), nil
}

// build 在已有的存储和仓库上组装服务
func build(cfg *config.Config, st store.Store, reg registry.Registry) *App {
	counter := service.NewCounterService(st, cfg.ObjectSuffix, cfg.CounterAtomic)
	if _, ok := st.(store.Incrementer); !ok || !cfg.CounterAtomic {
		log.Warn().Msg("counter uses read-modify-write, concurrent downloads may be lost")
	}
	recorder := service.NewRecorder(counter, cfg.RecorderWorkers, cfg.RecorderQueueSize, cfg.IncrementTimeout)

	app := &App{
		Config:   cfg,
		Store:    st,
		Counter:  counter,
		Recorder: recorder,
	}

	middlewares := []middleware.Middleware{
		middleware.Recovery,
		middleware.RealIPMiddleware,
		middleware.MetricsMiddleware,
	}
	if cfg.CORSEnabled {
		middlewares = append(middlewares, middleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RateLimitPerSecond > 0 {
		app.limiter = middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst, rateLimiterCleanupInterval)
		middlewares = append(middlewares, app.limiter.Middleware)
	}

	h := &handler.Handlers{
		Registry:   reg,
		Counter:    counter,
		Recorder:   recorder,
		Store:      st,
		FieldStyle: cfg.StatsFieldStyle,
	}
	if cfg.StatsCacheMaxAge > 0 {
		h.StatsCache = middleware.NewResponseCache(cfg.StatsCacheMaxAge, clockwork.NewRealClock())
	}
	if cfg.StaticDir != "" {
		h.Static = handler.NewStaticHandler(cfg.StaticDir)
	}

	app.Router = router.New(middlewares...)
	app.Router.Setup(h)
	return app
}

// Shutdown 等待后台计数完成后关闭存储，所有错误都会返回
func (a *App) Shutdown(ctx context.Context) error {
	var errs *multierror.Error

	if a.limiter != nil {
		a.limiter.Stop()
	}
	if err := a.Recorder.Close(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	if dead := a.Recorder.DeadLetters(); len(dead) > 0 {
		log.Warn().Int("count", len(dead)).Msg("some downloads were not counted")
	}
	if err := a.Store.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	return errs.ErrorOrNil()
}
