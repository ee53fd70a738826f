package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"watchkeeper/internal/config"
	"watchkeeper/internal/metrics"
	"watchkeeper/internal/models"
)

var (
	ErrAlreadyRunning    = errors.New("worker already running")
	ErrNotRunning        = errors.New("worker not running")
	ErrRestartInProgress = errors.New("restart already in progress")
	ErrClosed            = errors.New("supervisor is shutting down")
)

// Notifier receives worker status changes.
type Notifier interface {
	Notify(ctx context.Context, detail string, kind models.StatusKind) bool
}

// Supervisor owns the single worker process and its Up/Down state machine.
//
// Only a Down -> Starting transition may spawn a process and it happens
// under mu, so there is never more than one live child. Exits the supervisor
// asked for (restart, update, shutdown) are logged; any other exit notifies
// Down and, with auto-restart on, schedules a new start after restartDelay.
type Supervisor struct {
	launcher     Launcher
	notifier     Notifier
	output       io.Writer
	logger       *slog.Logger
	restartDelay time.Duration
	stopSignal   os.Signal
	stopTimeout  time.Duration

	autoRestart atomic.Bool

	mu         sync.Mutex
	state      models.State
	handle     Handle
	generation uint64
	startedAt  time.Time
	exitedAt   time.Time
	lastExit   *models.ExitInfo
	exited     chan struct{}
	stopping   bool
	restarting bool
	restarts   int
	closed     bool
}

func NewSupervisor(cfg config.WorkerConfig, launcher Launcher, notifier Notifier, output io.Writer, logger *slog.Logger) *Supervisor {
	if output == nil {
		output = io.Discard
	}
	s := &Supervisor{
		launcher:     launcher,
		notifier:     notifier,
		output:       output,
		logger:       logger,
		restartDelay: cfg.RestartDelayDuration(),
		stopSignal:   ParseSignal(cfg.StopSignal),
		stopTimeout:  cfg.StopTimeoutDuration(),
		state:        models.StateDown,
		exitedAt:     time.Now(),
	}
	s.autoRestart.Store(cfg.AutoRestart == nil || *cfg.AutoRestart)
	return s
}

// Start launches the worker if it is Down.
func (s *Supervisor) Start(reason models.RestartReason, detail string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != models.StateDown {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = models.StateStarting
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	return s.launch(gen, reason, detail)
}

func (s *Supervisor) launch(gen uint64, reason models.RestartReason, detail string) error {
	h, err := s.launcher.Launch(s.output, s.output)
	now := time.Now()

	s.mu.Lock()
	if err != nil {
		s.state = models.StateDown
		s.exitedAt = now
		s.lastExit = &models.ExitInfo{Code: -1, Error: err.Error(), At: now}
		retry := s.shouldAutoRestartLocked()
		s.mu.Unlock()

		metrics.WorkerStarts.WithLabelValues(string(reason), "error").Inc()
		s.logger.Error("worker failed to start", slog.String("reason", string(reason)), slog.String("err", err.Error()))
		// The timer is armed before notifying so slow channels do not push
		// the retry past restartDelay.
		if retry {
			s.scheduleAutoRestart(gen)
		}
		s.notifier.Notify(context.Background(), fmt.Sprintf("Worker failed to start: %v", err), models.KindDown)
		return err
	}

	s.state = models.StateUp
	s.handle = h
	s.startedAt = now
	s.exited = make(chan struct{})
	s.stopping = false
	if reason != models.ReasonInitial {
		s.restarts++
	}
	exited, closed := s.exited, s.closed
	s.mu.Unlock()

	go s.wait(h, exited)

	metrics.WorkerUp.Set(1)
	metrics.WorkerStarts.WithLabelValues(string(reason), "ok").Inc()
	s.logger.Info("worker started", slog.Int("pid", h.Pid()), slog.String("reason", string(reason)))

	if closed {
		// Close ran while we were spawning.
		_ = s.stop()
		return ErrClosed
	}

	s.notifier.Notify(context.Background(), upDetail(h.Pid(), reason, detail), models.KindUp)
	return nil
}

// wait observes the child's exit and drives the Up -> Down transition.
func (s *Supervisor) wait(h Handle, exited chan struct{}) {
	info := h.Wait()

	s.mu.Lock()
	gen := s.generation
	expected := s.stopping
	s.state = models.StateDown
	s.handle = nil
	s.exitedAt = info.At
	s.lastExit = &info
	s.stopping = false
	retry := !expected && s.shouldAutoRestartLocked()
	close(exited)
	s.mu.Unlock()

	metrics.WorkerUp.Set(0)
	metrics.WorkerExits.WithLabelValues(strconv.FormatBool(expected)).Inc()

	if expected {
		s.logger.Info("worker stopped", slog.Int("pid", h.Pid()), slog.Int("code", info.Code))
		return
	}

	s.logger.Warn("worker exited",
		slog.Int("pid", h.Pid()),
		slog.Int("code", info.Code),
		slog.String("signal", info.Signal),
		slog.Bool("auto_restart", retry))
	if retry {
		s.scheduleAutoRestart(gen)
	}
	s.notifier.Notify(context.Background(), "Worker exited unexpectedly: "+describeExit(info), models.KindDown)
}

func (s *Supervisor) shouldAutoRestartLocked() bool {
	return !s.closed && !s.restarting && s.autoRestart.Load()
}

// scheduleAutoRestart starts the worker after restartDelay unless something
// else happened to it in the meantime. The timer is never cancelled; the
// callback re-checks state instead.
func (s *Supervisor) scheduleAutoRestart(gen uint64) {
	s.logger.Info("auto-restart scheduled", slog.Duration("delay", s.restartDelay))
	time.AfterFunc(s.restartDelay, func() {
		s.mu.Lock()
		if s.closed || s.restarting || s.state != models.StateDown || s.generation != gen || !s.autoRestart.Load() {
			s.mu.Unlock()
			s.logger.Debug("auto-restart skipped")
			return
		}
		s.state = models.StateStarting
		s.generation++
		next := s.generation
		s.mu.Unlock()

		_ = s.launch(next, models.ReasonAutoRestart, "")
	})
}

// Restart stops the worker if it is Up and starts it again. Concurrent
// calls while a restart is running return ErrRestartInProgress.
func (s *Supervisor) Restart(reason models.RestartReason, detail string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.restarting || s.state == models.StateStarting {
		s.mu.Unlock()
		return ErrRestartInProgress
	}
	s.restarting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.restarting = false
		s.mu.Unlock()
	}()

	s.logger.Info("restarting worker", slog.String("reason", string(reason)))
	if err := s.stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return s.Start(reason, detail)
}

// stop terminates the running worker and waits for its exit to be handled.
func (s *Supervisor) stop() error {
	s.mu.Lock()
	if s.state != models.StateUp || s.handle == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	h, exited := s.handle, s.exited
	s.stopping = true
	s.mu.Unlock()

	s.logger.Info("stopping worker", slog.Int("pid", h.Pid()), slog.String("signal", s.stopSignal.String()))
	if err := h.Signal(s.stopSignal); err != nil {
		s.logger.Warn("stop signal failed", slog.Int("pid", h.Pid()), slog.String("err", err.Error()))
	}

	select {
	case <-exited:
	case <-time.After(s.stopTimeout):
		s.logger.Warn("worker did not stop in time, killing", slog.Int("pid", h.Pid()))
		if err := h.Kill(); err != nil {
			s.logger.Error("kill failed", slog.Int("pid", h.Pid()), slog.String("err", err.Error()))
		}
		<-exited
	}
	return nil
}

// Close stops the worker for good. Pending auto-restarts become no-ops.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err := s.stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return nil
}

func (s *Supervisor) AutoRestart() bool {
	return s.autoRestart.Load()
}

func (s *Supervisor) SetAutoRestart(enabled bool) {
	s.autoRestart.Store(enabled)
	s.logger.Info("auto-restart changed", slog.Bool("enabled", enabled))
}

func (s *Supervisor) Status() models.ProcessStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := models.ProcessStatus{
		State:       s.state,
		AutoRestart: s.autoRestart.Load(),
		Restarting:  s.restarting,
		Restarts:    s.restarts,
		Since:       s.exitedAt,
	}
	if s.state == models.StateUp && s.handle != nil {
		st.Pid = s.handle.Pid()
		st.Since = s.startedAt
	}
	if s.lastExit != nil {
		exit := *s.lastExit
		st.LastExit = &exit
	}
	st.Duration = formatDuration(time.Since(st.Since))
	return st
}

func upDetail(pid int, reason models.RestartReason, detail string) string {
	msg := fmt.Sprintf("Worker is running (pid %d, %s", pid, reason)
	if detail != "" {
		msg += ": " + detail
	}
	return msg + ")"
}

func describeExit(info models.ExitInfo) string {
	switch {
	case info.Error != "":
		return info.Error
	case info.Signal != "":
		return fmt.Sprintf("killed by signal %s", info.Signal)
	default:
		return fmt.Sprintf("exit code %d", info.Code)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	seconds := d / time.Second

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
