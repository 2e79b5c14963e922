package handler

import (
	"context"
	"net/http"
	"time"

	"download-counter-go/monitoring"
	"download-counter-go/service"
	"download-counter-go/utils"

	"github.com/rs/zerolog/log"
)

// HandleHealth 健康检查，同时检查存储是否可达
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"store":     "ok",
	}
	if err := h.Store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("store health check failed")
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
		response["store"] = err.Error()
	}

	utils.WriteJSON(w, status, response)
}

func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, monitoring.CollectMetrics())
}

// HandleDeadLetters 返回最近失败或被丢弃的计数任务
func (h *Handlers) HandleDeadLetters(w http.ResponseWriter, r *http.Request) {
	deadLetters := h.Recorder.DeadLetters()
	if deadLetters == nil {
		deadLetters = []service.DeadLetter{}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    deadLetters,
	})
}
