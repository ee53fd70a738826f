package config

import (
	"fmt"
	"time"

	"watchkeeper/internal/models"
)

type WorkerConfig struct {
	Command      string            `yaml:"command"`
	Args         []string          `yaml:"args,omitempty"`
	Directory    string            `yaml:"directory,omitempty"`
	Environment  map[string]string `yaml:"environment,omitempty"`
	StopSignal   string            `yaml:"stop_signal,omitempty"`
	StopTimeout  int               `yaml:"stop_timeout,omitempty"`
	RestartDelay int               `yaml:"restart_delay,omitempty"`
	AutoRestart  *bool             `yaml:"auto_restart,omitempty"`
	EchoOutput   bool              `yaml:"echo_output,omitempty"`
}

func (w *WorkerConfig) setDefaults() {
	if w.StopSignal == "" {
		w.StopSignal = "SIGTERM"
	}
	if w.StopTimeout == 0 {
		w.StopTimeout = 10
	}
	if w.RestartDelay == 0 {
		w.RestartDelay = 5
	}
	if w.AutoRestart == nil {
		on := true
		w.AutoRestart = &on
	}
}

// Env returns the extra environment as KEY=VALUE pairs.
func (w WorkerConfig) Env() []string {
	env := make([]string, 0, len(w.Environment))
	for k, v := range w.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func (w WorkerConfig) StopTimeoutDuration() time.Duration {
	return time.Duration(w.StopTimeout) * time.Second
}

func (w WorkerConfig) RestartDelayDuration() time.Duration {
	return time.Duration(w.RestartDelay) * time.Second
}

type UpdateConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	IntervalDays int      `yaml:"interval_days,omitempty"`
	Directory    string   `yaml:"directory,omitempty"`
	Remote       string   `yaml:"remote,omitempty"`
	Branch       string   `yaml:"branch,omitempty"`
	Timeout      int      `yaml:"timeout,omitempty"`
	RevisionTTL  int      `yaml:"revision_ttl,omitempty"`
	WatchPaths   []string `yaml:"watch_paths,omitempty"`
}

func (u *UpdateConfig) setDefaults(workerDir string) {
	if u.Enabled == nil {
		on := true
		u.Enabled = &on
	}
	if u.IntervalDays == 0 {
		u.IntervalDays = 1
	}
	if u.Directory == "" {
		u.Directory = workerDir
	}
	if u.Directory == "" {
		u.Directory = "."
	}
	if u.Remote == "" {
		u.Remote = "origin"
	}
	if u.Timeout == 0 {
		u.Timeout = 120
	}
	if u.RevisionTTL == 0 {
		u.RevisionTTL = 60
	}
}

func (u UpdateConfig) Interval() time.Duration {
	return time.Duration(u.IntervalDays) * 24 * time.Hour
}

func (u UpdateConfig) TimeoutDuration() time.Duration {
	return time.Duration(u.Timeout) * time.Second
}

func (u UpdateConfig) RevisionTTLDuration() time.Duration {
	return time.Duration(u.RevisionTTL) * time.Second
}

type NotificationsConfig struct {
	ThrottleMinutes int             `yaml:"throttle_minutes,omitempty"`
	Timeout         int             `yaml:"timeout,omitempty"`
	Channels        []ChannelConfig `yaml:"channels,omitempty"`
}

type ChannelConfig struct {
	Name   string             `yaml:"name,omitempty"`
	Kind   models.ChannelKind `yaml:"kind"`
	Token  string             `yaml:"token,omitempty"`
	ChatID string             `yaml:"chat_id,omitempty"`
	URL    string             `yaml:"url,omitempty"`
	Active bool               `yaml:"active"`
	DND    bool               `yaml:"dnd,omitempty"`
}

func (n *NotificationsConfig) setDefaults() {
	if n.ThrottleMinutes == 0 {
		n.ThrottleMinutes = 10
	}
	if n.Timeout == 0 {
		n.Timeout = 10
	}
	for i := range n.Channels {
		if n.Channels[i].Name == "" {
			n.Channels[i].Name = fmt.Sprintf("%s-%d", n.Channels[i].Kind, i)
		}
	}
}

func (n NotificationsConfig) ThrottleWindow() time.Duration {
	return time.Duration(n.ThrottleMinutes) * time.Minute
}

func (n NotificationsConfig) TimeoutDuration() time.Duration {
	return time.Duration(n.Timeout) * time.Second
}

type LoggingConfig struct {
	File      string `yaml:"file,omitempty"`
	MaxLines  int    `yaml:"max_lines,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb,omitempty"`
	Level     string `yaml:"level,omitempty"`
}

func (l *LoggingConfig) setDefaults() {
	if l.File == "" {
		l.File = "watchkeeper.log"
	}
	if l.MaxLines == 0 {
		l.MaxLines = 100
	}
	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = 100
	}
	if l.Level == "" {
		l.Level = "info"
	}
}

type ResourcesConfig struct {
	CheckInterval     int     `yaml:"check_interval,omitempty"`
	DiskPath          string  `yaml:"disk_path,omitempty"`
	MemoryWarnPercent float64 `yaml:"memory_warn_percent,omitempty"`
	DiskWarnPercent   float64 `yaml:"disk_warn_percent,omitempty"`
}

func (r *ResourcesConfig) setDefaults() {
	if r.CheckInterval == 0 {
		r.CheckInterval = 60
	}
	if r.DiskPath == "" {
		r.DiskPath = "/"
	}
	if r.MemoryWarnPercent == 0 {
		r.MemoryWarnPercent = 90
	}
	if r.DiskWarnPercent == 0 {
		r.DiskWarnPercent = 90
	}
}

func (r ResourcesConfig) CheckIntervalDuration() time.Duration {
	return time.Duration(r.CheckInterval) * time.Second
}
