package models

import "time"

// UpdateTrigger records what started an update check.
type UpdateTrigger string

const (
	TriggerScheduled UpdateTrigger = "scheduled"
	TriggerManual    UpdateTrigger = "manual"
)

// UpdateResult is the outcome of one update check.
type UpdateResult struct {
	Trigger   UpdateTrigger `json:"trigger"`
	Changed   bool          `json:"changed"`
	Revision  string        `json:"revision,omitempty"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// ResourceSnapshot captures host resource usage for dashboard display.
// Each group carries its own availability flag so a failing probe only
// blanks that group.
type ResourceSnapshot struct {
	LoadAvailable bool    `json:"load_available"`
	Load1         float64 `json:"load1"`
	Load5         float64 `json:"load5"`
	Load15        float64 `json:"load15"`

	MemoryAvailable bool    `json:"memory_available"`
	MemoryUsed      uint64  `json:"memory_used_bytes"`
	MemoryTotal     uint64  `json:"memory_total_bytes"`
	MemoryPercent   float64 `json:"memory_percent"`

	DiskAvailable bool    `json:"disk_available"`
	DiskUsed      uint64  `json:"disk_used_bytes"`
	DiskTotal     uint64  `json:"disk_total_bytes"`
	DiskPercent   float64 `json:"disk_percent"`

	SampledAt time.Time `json:"sampled_at"`
}
