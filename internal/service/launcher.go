package service

import (
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"watchkeeper/internal/config"
	"watchkeeper/internal/models"
)

// Handle is a running worker process.
type Handle interface {
	Pid() int
	// Signal delivers sig to the worker and anything it spawned.
	Signal(sig os.Signal) error
	Kill() error
	// Wait blocks until the process exits. It is called exactly once.
	Wait() models.ExitInfo
}

// Launcher spawns the worker with its output wired to stdout and stderr.
type Launcher interface {
	Launch(stdout, stderr io.Writer) (Handle, error)
}

// ExecLauncher runs the configured command as a child process in its own
// process group.
type ExecLauncher struct {
	cfg config.WorkerConfig
}

func NewExecLauncher(cfg config.WorkerConfig) *ExecLauncher {
	return &ExecLauncher{cfg: cfg}
}

func (l *ExecLauncher) Launch(stdout, stderr io.Writer) (Handle, error) {
	cmd := exec.Command(l.cfg.Command, l.cfg.Args...)
	if l.cfg.Directory != "" {
		cmd.Dir = l.cfg.Directory
	}
	cmd.Env = append(os.Environ(), l.cfg.Env()...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = sysProcAttr()
	// A descendant that left the process group can hold the output pipes
	// open after the worker exits; stop waiting on them after this long.
	cmd.WaitDelay = l.cfg.StopTimeoutDuration()

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", l.cfg.Command)
	}
	return &execHandle{cmd: cmd}, nil
}

type execHandle struct {
	cmd *exec.Cmd
}

func (h *execHandle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Signal(sig os.Signal) error {
	return signalGroup(h.cmd.Process, sig)
}

func (h *execHandle) Kill() error {
	return signalGroup(h.cmd.Process, os.Kill)
}

func (h *execHandle) Wait() models.ExitInfo {
	err := h.cmd.Wait()
	info := models.ExitInfo{At: time.Now()}

	if ps := h.cmd.ProcessState; ps != nil {
		info.Code = ps.ExitCode()
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			info.Signal = ws.Signal().String()
		}
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		info.Error = err.Error()
	}
	return info
}

// ParseSignal maps a config name to a signal, defaulting to SIGTERM.
func ParseSignal(name string) syscall.Signal {
	switch name {
	case "SIGKILL":
		return syscall.SIGKILL
	case "SIGINT":
		return syscall.SIGINT
	case "SIGHUP":
		return syscall.SIGHUP
	case "SIGQUIT":
		return syscall.SIGQUIT
	default:
		return syscall.SIGTERM
	}
}
