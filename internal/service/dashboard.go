package service

import (
	"context"
	"log/slog"
	"time"

	"watchkeeper/internal/models"
)

type (
	WorkerStatus interface {
		Status() models.ProcessStatus
	}

	ResourceSource interface {
		Latest(ctx context.Context) models.ResourceSnapshot
	}

	UpdateStatus interface {
		InProgress() bool
		LastResult() *models.UpdateResult
	}

	Versioner interface {
		Revision(ctx context.Context) (string, error)
	}

	LogTailer interface {
		Tail(n int) []string
	}
)

// Overview is everything the dashboard renders.
type Overview struct {
	Worker           models.ProcessStatus    `json:"worker"`
	Resources        models.ResourceSnapshot `json:"resources"`
	Version          string                  `json:"version"`
	LastUpdate       *models.UpdateResult    `json:"last_update,omitempty"`
	UpdateInProgress bool                    `json:"update_in_progress"`
	// UpdatesEnabled reports scheduled update checks. Manual checks are
	// always available.
	UpdatesEnabled bool      `json:"updates_enabled"`
	Channels       []string  `json:"channels"`
	Logs           []string  `json:"logs"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// DashboardConfig wires the dashboard. Collaborators other than Worker may
// be nil.
type DashboardConfig struct {
	Worker    WorkerStatus
	Resources ResourceSource
	Updates   UpdateStatus
	Version   Versioner
	Logs      LogTailer
	Channels  []string
	MaxLines  int
	// ScheduledUpdates mirrors update.enabled.
	ScheduledUpdates bool
	Logger           *slog.Logger
}

// Dashboard assembles the read-only view served by the UI and /api/status.
type Dashboard struct {
	worker    WorkerStatus
	resources ResourceSource
	updates   UpdateStatus
	version   Versioner
	logs      LogTailer
	channels  []string
	maxLines  int
	scheduled bool
	logger    *slog.Logger
}

func NewDashboard(cfg DashboardConfig) *Dashboard {
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = 100
	}
	return &Dashboard{
		worker:    cfg.Worker,
		resources: cfg.Resources,
		updates:   cfg.Updates,
		version:   cfg.Version,
		logs:      cfg.Logs,
		channels:  cfg.Channels,
		maxLines:  cfg.MaxLines,
		scheduled: cfg.ScheduledUpdates,
		logger:    cfg.Logger,
	}
}

func (d *Dashboard) Overview(ctx context.Context) Overview {
	ov := Overview{
		Worker:      d.worker.Status(),
		Version:     "unknown",
		Channels:    append([]string{}, d.channels...),
		Logs:        d.Logs(d.maxLines),
		GeneratedAt: time.Now(),
	}
	if d.resources != nil {
		ov.Resources = d.resources.Latest(ctx)
	}
	ov.UpdatesEnabled = d.scheduled
	if d.updates != nil {
		ov.UpdateInProgress = d.updates.InProgress()
		ov.LastUpdate = d.updates.LastResult()
	}
	if d.version != nil {
		rev, err := d.version.Revision(ctx)
		if err != nil {
			d.logger.Debug("revision lookup failed", slog.String("err", err.Error()))
		} else if rev != "" {
			ov.Version = rev
		}
	}
	return ov
}

// Logs returns up to n trailing log lines, clamped to the configured
// maximum. It never returns nil.
func (d *Dashboard) Logs(n int) []string {
	if n <= 0 || n > d.maxLines {
		n = d.maxLines
	}
	if d.logs == nil {
		return []string{}
	}
	lines := d.logs.Tail(n)
	if lines == nil {
		return []string{}
	}
	return lines
}

func (d *Dashboard) MaxLines() int {
	return d.maxLines
}
