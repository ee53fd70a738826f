package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"watchkeeper/internal/models"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Worker    string `json:"worker,omitempty"`
	Timestamp string `json:"timestamp"`
}

type WorkerStatus interface {
	Status() models.ProcessStatus
}

type HealthHandler struct {
	worker WorkerStatus
	logger *slog.Logger
}

func NewHealthHandler(worker WorkerStatus, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{worker: worker, logger: logger}
}

// Health reports that the supervisor itself is serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Ready reports 503 until the worker is Up.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	st := h.worker.Status()
	resp := HealthResponse{
		Status:    "ready",
		Worker:    string(st.State),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	code := http.StatusOK
	if !st.Up() {
		resp.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, code, resp)
}
