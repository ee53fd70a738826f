package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"watchkeeper/internal/models"
	"watchkeeper/internal/service"
)

type (
	// Controller is the part of the supervisor the control surface drives.
	Controller interface {
		Restart(reason models.RestartReason, detail string) error
		AutoRestart() bool
		SetAutoRestart(enabled bool)
	}

	UpdateTrigger interface {
		TriggerAsync(trigger models.UpdateTrigger) error
	}

	StatusProvider interface {
		Overview(ctx context.Context) service.Overview
		Logs(n int) []string
	}
)

var errBadToggle = errors.New("enabled must be on/off or true/false")

type ControlHandler struct {
	worker  Controller
	updates UpdateTrigger
	status  StatusProvider
	logger  *slog.Logger
}

func NewControlHandler(worker Controller, updates UpdateTrigger, status StatusProvider, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{worker: worker, updates: updates, status: status, logger: logger}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type AutoRestartResponse struct {
	Status  string `json:"status"`
	Enabled bool   `json:"enabled"`
}

type LogsResponse struct {
	Lines []string `json:"lines"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding JSON response", slog.String("err", err.Error()))
	}
}

func (h *ControlHandler) writeError(w http.ResponseWriter, status int, err error, message string) {
	writeJSON(w, h.logger, status, ErrorResponse{
		Error:   err.Error(),
		Message: message,
	})
}

func (h *ControlHandler) Restart(w http.ResponseWriter, r *http.Request) {
	if err := h.worker.Restart(models.ReasonManual, "requested from control surface"); err != nil {
		switch {
		case errors.Is(err, service.ErrRestartInProgress):
			h.writeError(w, http.StatusConflict, err, "A restart is already running")
		case errors.Is(err, service.ErrClosed):
			h.writeError(w, http.StatusServiceUnavailable, err, "Supervisor is shutting down")
		default:
			h.writeError(w, http.StatusInternalServerError, err, "Failed to restart worker")
		}
		return
	}

	writeJSON(w, h.logger, http.StatusOK, SuccessResponse{
		Status:  "restarted",
		Message: "Worker restarted successfully",
	})
}

// AutoRestart accepts either {"enabled": bool} or a form/query value
// enabled=on|off|true|false.
func (h *ControlHandler) AutoRestart(w http.ResponseWriter, r *http.Request) {
	enabled, err := parseToggle(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err, "Invalid auto-restart value")
		return
	}

	h.worker.SetAutoRestart(enabled)
	writeJSON(w, h.logger, http.StatusOK, AutoRestartResponse{
		Status:  "ok",
		Enabled: h.worker.AutoRestart(),
	})
}

func (h *ControlHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := h.updates.TriggerAsync(models.TriggerManual); err != nil {
		if errors.Is(err, service.ErrUpdateInProgress) {
			h.writeError(w, http.StatusConflict, err, "An update check is already running")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err, "Failed to start update check")
		return
	}

	writeJSON(w, h.logger, http.StatusAccepted, SuccessResponse{
		Status:  "started",
		Message: "Update check started",
	})
}

func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.status.Overview(r.Context()))
}

func (h *ControlHandler) Logs(w http.ResponseWriter, r *http.Request) {
	n := 0
	if v := r.URL.Query().Get("lines"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err, "lines must be a number")
			return
		}
		n = parsed
	}
	writeJSON(w, h.logger, http.StatusOK, LogsResponse{Lines: h.status.Logs(n)})
}

func parseToggle(r *http.Request) (bool, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return false, errors.Wrap(err, "decode body")
		}
		if body.Enabled == nil {
			return false, errBadToggle
		}
		return *body.Enabled, nil
	}

	if err := r.ParseForm(); err != nil {
		return false, errors.Wrap(err, "parse form")
	}
	switch strings.ToLower(strings.TrimSpace(r.Form.Get("enabled"))) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, errBadToggle
}
