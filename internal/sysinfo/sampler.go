// Package sysinfo samples host load, memory and disk usage.
package sysinfo

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"watchkeeper/internal/models"
)

// Sampler reads host resources on demand. Each probe fails independently:
// a failing probe marks its group unavailable and the rest are still
// returned.
type Sampler struct {
	diskPath string

	loadFn func(ctx context.Context) (*load.AvgStat, error)
	memFn  func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskFn func(ctx context.Context, path string) (*disk.UsageStat, error)
}

func NewSampler(diskPath string) *Sampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Sampler{
		diskPath: diskPath,
		loadFn:   load.AvgWithContext,
		memFn:    mem.VirtualMemoryWithContext,
		diskFn:   disk.UsageWithContext,
	}
}

func (s *Sampler) Sample(ctx context.Context) models.ResourceSnapshot {
	snap := models.ResourceSnapshot{SampledAt: time.Now()}

	if avg, err := s.loadFn(ctx); err == nil && avg != nil {
		snap.LoadAvailable = true
		snap.Load1, snap.Load5, snap.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	if vm, err := s.memFn(ctx); err == nil && vm != nil {
		snap.MemoryAvailable = true
		snap.MemoryUsed = vm.Used
		snap.MemoryTotal = vm.Total
		snap.MemoryPercent = vm.UsedPercent
	}

	if du, err := s.diskFn(ctx, s.diskPath); err == nil && du != nil {
		snap.DiskAvailable = true
		snap.DiskUsed = du.Used
		snap.DiskTotal = du.Total
		snap.DiskPercent = du.UsedPercent
	}

	return snap
}
