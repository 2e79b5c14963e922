package handler

import (
	"net/http"

	"download-counter-go/utils"
)

// StaticHandler 从本地目录提供对象，单机部署时可充当对象仓库
type StaticHandler struct {
	staticDir string
}

func NewStaticHandler(staticDir string) *StaticHandler {
	return &StaticHandler{
		staticDir: staticDir,
	}
}

// ServeStatic 只提供普通文件，目录和缺失的文件都返回 404
func (s *StaticHandler) ServeStatic(w http.ResponseWriter, r *http.Request) {
	filePath, _, ok := utils.ResolveFile(s.staticDir, r.PathValue("path"))
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "Object not found")
		return
	}

	if ct := utils.ContentType(filePath); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeFile(w, r, filePath)
}
