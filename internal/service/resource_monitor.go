package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"watchkeeper/internal/models"
	"watchkeeper/internal/sysinfo"
)

// Snapshotter samples host resources.
type Snapshotter interface {
	Sample(ctx context.Context) models.ResourceSnapshot
}

// ResourceMonitor samples host resources periodically, keeps the latest
// snapshot for the dashboard and warns when memory or disk usage crosses its
// threshold. A warning is sent when usage goes over the threshold and again
// only after it has dropped back below.
type ResourceMonitor struct {
	sampler  Snapshotter
	notifier Notifier
	logger   *slog.Logger
	interval time.Duration
	memWarn  float64
	diskWarn float64

	mu       sync.RWMutex
	last     *models.ResourceSnapshot
	memOver  bool
	diskOver bool
}

func NewResourceMonitor(sampler Snapshotter, notifier Notifier, interval time.Duration, memWarn, diskWarn float64, logger *slog.Logger) *ResourceMonitor {
	return &ResourceMonitor{
		sampler:  sampler,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		memWarn:  memWarn,
		diskWarn: diskWarn,
	}
}

// Check takes one sample and returns the warnings that were raised by it.
func (m *ResourceMonitor) Check(ctx context.Context) []string {
	snap := m.sampler.Sample(ctx)

	m.mu.Lock()
	m.last = &snap
	var warnings []string
	if snap.MemoryAvailable && m.memWarn > 0 {
		over := snap.MemoryPercent >= m.memWarn
		if over && !m.memOver {
			warnings = append(warnings, fmt.Sprintf("memory usage %.1f%% (%s of %s)",
				snap.MemoryPercent, sysinfo.FormatBytes(snap.MemoryUsed), sysinfo.FormatBytes(snap.MemoryTotal)))
		}
		m.memOver = over
	}
	if snap.DiskAvailable && m.diskWarn > 0 {
		over := snap.DiskPercent >= m.diskWarn
		if over && !m.diskOver {
			warnings = append(warnings, fmt.Sprintf("disk usage %.1f%% (%s of %s)",
				snap.DiskPercent, sysinfo.FormatBytes(snap.DiskUsed), sysinfo.FormatBytes(snap.DiskTotal)))
		}
		m.diskOver = over
	}
	m.mu.Unlock()

	if len(warnings) > 0 {
		m.logger.Warn("resource usage high", slog.String("detail", strings.Join(warnings, "; ")))
		m.notifier.Notify(ctx, "Resource usage high: "+strings.Join(warnings, "; "), models.KindWarning)
	}
	return warnings
}

// Latest returns the most recent snapshot, sampling once if there is none.
func (m *ResourceMonitor) Latest(ctx context.Context) models.ResourceSnapshot {
	m.mu.RLock()
	last := m.last
	m.mu.RUnlock()
	if last != nil {
		return *last
	}
	snap := m.sampler.Sample(ctx)
	m.mu.Lock()
	m.last = &snap
	m.mu.Unlock()
	return snap
}

// Run samples every interval until ctx is cancelled.
func (m *ResourceMonitor) Run(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
