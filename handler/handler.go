package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"download-counter-go/config"
	"download-counter-go/middleware"
	"download-counter-go/monitoring"
	"download-counter-go/registry"
	"download-counter-go/router"
	"download-counter-go/service"
	"download-counter-go/store"
	"download-counter-go/utils"

	"github.com/rs/zerolog/log"
)

const (
	msgMissingName = "Missing object name"
	msgInvalidName = "Invalid object name"
	msgNotFound    = "Object not found"
	msgInternal    = "Error processing request"
)

// 逐跳头不转发给调用方
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Handlers struct {
	Registry   registry.Registry
	Counter    *service.CounterService
	Recorder   *service.Recorder
	Store      store.Store
	FieldStyle string
	StatsCache *middleware.ResponseCache // 为 nil 时不缓存
	Static     *StaticHandler            // 为 nil 时不提供 /static/
}

var _ router.Handler = (*Handlers)(nil)

func (h *Handlers) Setup(r *router.Router) {
	r.HandleFunc("GET /r/{objectName...}", h.HandleRetrieve)

	var stats http.Handler = http.HandlerFunc(h.HandleStats)
	if h.StatsCache != nil {
		stats = h.StatsCache.Middleware(stats)
	}
	r.Handle("GET /s/{objectName...}", stats)

	if h.Static != nil {
		r.HandleFunc("GET /static/{path...}", h.Static.ServeStatic)
	}

	r.HandleFunc("GET /api/health", h.HandleHealth)
	r.HandleFunc("GET /api/metrics", h.HandleMetrics)
	r.HandleFunc("GET /api/dead-letters", h.HandleDeadLetters)
	r.Handle("GET /metrics", monitoring.Handler())
}

// HandleRetrieve 从仓库取回对象原样返回，并在后台把下载计数加一
func (h *Handlers) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	objectName := r.PathValue("objectName")
	if err := h.Counter.Validate(objectName); err != nil {
		if objectName == "" {
			utils.WriteError(w, http.StatusBadRequest, msgMissingName)
		} else {
			utils.WriteError(w, http.StatusBadRequest, msgInvalidName)
		}
		return
	}

	start := time.Now()
	resp, err := h.Registry.Fetch(r.Context(), objectName)
	if err != nil {
		monitoring.RegistryFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.Error().Err(err).Str("object", objectName).Msg("error retrieving object")
		utils.WriteError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		monitoring.RegistryFetchDuration.WithLabelValues("not_found").Observe(time.Since(start).Seconds())
		log.Debug().Str("object", objectName).Int("status", resp.StatusCode).Msg("registry has no such object")
		utils.WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	monitoring.RegistryFetchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	h.Recorder.Schedule(r.Context(), h.Counter.Key(objectName))

	header := w.Header()
	for k, v := range resp.Header {
		header[k] = append([]string(nil), v...)
	}
	for _, k := range hopHeaders {
		header.Del(k)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Warn().Err(err).Str("object", objectName).Msg("failed to stream object to client")
	}
}

type shortStats struct {
	Key   string `json:"key"`
	File  string `json:"file"`
	Count int64  `json:"count"`
}

type longStats struct {
	ObjectKey string `json:"objectKey"`
	FileName  string `json:"fileName"`
	Downloads int64  `json:"downloads"`
}

// HandleStats 返回对象的下载计数
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	objectName := r.PathValue("objectName")
	if objectName == "" {
		utils.WriteError(w, http.StatusBadRequest, msgMissingName)
		return
	}

	stats, err := h.Counter.Lookup(r.Context(), objectName)
	switch {
	case errors.Is(err, service.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, msgNotFound)
		return
	case errors.Is(err, service.ErrInvalidInput):
		utils.WriteError(w, http.StatusBadRequest, msgMissingName)
		return
	case err != nil:
		log.Error().Err(err).Str("object", objectName).Msg("error reading download counter")
		utils.WriteError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	var body interface{}
	if h.FieldStyle == config.FieldStyleLong {
		body = longStats{ObjectKey: stats.Key, FileName: stats.File, Downloads: stats.Count}
	} else {
		body = shortStats{Key: stats.Key, File: stats.File, Count: stats.Count}
	}
	if err := utils.WriteJSON(w, http.StatusOK, body); err != nil {
		log.Error().Err(err).Msg("error encoding stats")
	}
}
