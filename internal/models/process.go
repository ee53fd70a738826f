package models

import "time"

// State is the lifecycle state of the supervised worker.
type State string

const (
	StateStarting State = "starting"
	StateUp       State = "up"
	StateDown     State = "down"
)

// RestartReason explains why the worker was (re)started.
type RestartReason string

const (
	ReasonInitial      RestartReason = "initial"
	ReasonManual       RestartReason = "manual"
	ReasonAutoRestart  RestartReason = "auto-restart"
	ReasonUpdate       RestartReason = "update"
	ReasonSourceChange RestartReason = "source-change"
)

// ExitInfo describes the last termination of the worker.
type ExitInfo struct {
	Code   int       `json:"code"`
	Signal string    `json:"signal,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// ProcessStatus is a point-in-time view of the supervised worker.
type ProcessStatus struct {
	State       State     `json:"state"`
	Pid         int       `json:"pid"`
	Since       time.Time `json:"since"`
	Duration    string    `json:"duration"`
	LastExit    *ExitInfo `json:"last_exit,omitempty"`
	AutoRestart bool      `json:"auto_restart"`
	Restarting  bool      `json:"restarting"`
	Restarts    int       `json:"restarts"`
}

// Up reports whether the worker is running.
func (s ProcessStatus) Up() bool {
	return s.State == StateUp
}
