package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"download-counter-go/utils"
)

// HTTPRegistry 通过 HTTP GET {baseURL}{basePath}/{objectName} 取回对象
type HTTPRegistry struct {
	client   *http.Client
	baseURL  string
	basePath string
}

// NewHTTPRegistry baseURL 由配置给出，不从请求头推导
func NewHTTPRegistry(baseURL, basePath string, timeout time.Duration) *HTTPRegistry {
	return &HTTPRegistry{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		basePath: basePath,
	}
}

// ObjectURL 拼出对象在仓库中的地址
func (h *HTTPRegistry) ObjectURL(objectName string) string {
	return h.baseURL + "/" + utils.JoinURLPath(h.basePath, url.PathEscape(objectName))
}

func (h *HTTPRegistry) Fetch(ctx context.Context, objectName string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.ObjectURL(objectName), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from registry: %w", objectName, err)
	}
	return resp, nil
}
