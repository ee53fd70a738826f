package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"watchkeeper/internal/models"
	"watchkeeper/internal/service"
	"watchkeeper/internal/sysinfo"
)

type PageData struct {
	Title           string
	Hostname        string
	RefreshInterval int
	service.Overview
}

type DashboardHandler struct {
	templates *template.Template
	status    StatusProvider
	hostname  string
	logger    *slog.Logger
}

var templateFuncs = template.FuncMap{
	"bytes": sysinfo.FormatBytes,
	"percent": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	},
	"load": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"timestamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
	"exit": func(e *models.ExitInfo) string {
		switch {
		case e == nil:
			return ""
		case e.Error != "":
			return e.Error
		case e.Signal != "":
			return "signal " + e.Signal
		default:
			return fmt.Sprintf("exit code %d", e.Code)
		}
	},
}

func NewDashboardHandler(templatesFS fs.FS, status StatusProvider, hostname string, logger *slog.Logger) (*DashboardHandler, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "*.html")
	if err != nil {
		return nil, err
	}

	return &DashboardHandler{
		templates: tmpl,
		status:    status,
		hostname:  hostname,
		logger:    logger,
	}, nil
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:           "watchkeeper - " + h.hostname,
		Hostname:        h.hostname,
		RefreshInterval: 10,
		Overview:        h.status.Overview(r.Context()),
	}

	// Buffered so a failed render still returns a clean 500.
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		h.logger.Error("executing template", slog.String("template", "dashboard"), slog.String("err", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
