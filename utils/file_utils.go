package utils

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ResolveFile 把请求路径限制在 dir 之内，只接受已存在的普通文件
func ResolveFile(dir, requestPath string) (string, os.FileInfo, bool) {
	cleaned := path.Clean("/" + requestPath)
	if cleaned == "/" {
		return "", nil, false
	}
	filePath := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))

	info, err := os.Stat(filePath)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, false
	}
	return filePath, info, true
}

// ContentType 按扩展名返回 Content-Type，未知类型返回空串
func ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return "application/json; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	}
	return ""
}
