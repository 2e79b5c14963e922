// Package registry 访问保存原始对象的静态仓库。
package registry

import (
	"context"
	"fmt"
	"net/http"

	"download-counter-go/config"
)

// Registry 按对象名取回对象。非 2xx 响应原样返回，error 只表示仓库不可达
type Registry interface {
	Fetch(ctx context.Context, objectName string) (*http.Response, error)
}

// New 根据配置创建仓库
func New(ctx context.Context, cfg *config.Config) (Registry, error) {
	switch cfg.RegistryBackend {
	case config.RegistryHTTP:
		// 未配置 BASE_URL 时直接读 STATIC_DIR，不经过自身的 HTTP 接口
		if cfg.BaseURL != "" {
			return NewHTTPRegistry(cfg.BaseURL, cfg.RegistryBasePath, cfg.RegistryTimeout), nil
		}
		if cfg.StaticDir != "" {
			return NewLocalRegistry(cfg.StaticDir), nil
		}
		return nil, fmt.Errorf("http registry needs %s or STATIC_DIR", config.EnvBaseURL)
	case config.RegistryS3:
		return NewS3Registry(ctx, &cfg.S3)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.RegistryBackend)
	}
}
