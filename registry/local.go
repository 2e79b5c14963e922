package registry

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"download-counter-go/utils"
)

// LocalRegistry 直接读取 STATIC_DIR 中的对象，与 /static/ 路由共用同一目录
type LocalRegistry struct {
	dir string
}

func NewLocalRegistry(dir string) *LocalRegistry {
	return &LocalRegistry{dir: dir}
}

func (l *LocalRegistry) Fetch(ctx context.Context, objectName string) (*http.Response, error) {
	filePath, info, ok := utils.ResolveFile(l.dir, objectName)
	if !ok {
		return statusResponse(http.StatusNotFound), nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return statusResponse(http.StatusNotFound), nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", objectName, err)
	}

	header := make(http.Header)
	if ct := utils.ContentType(filePath); ct != "" {
		header.Set("Content-Type", ct)
	}
	header.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Header:        header,
		Body:          f,
		ContentLength: info.Size(),
	}, nil
}
