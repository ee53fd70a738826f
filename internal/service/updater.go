package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"watchkeeper/internal/gitsource"
	"watchkeeper/internal/metrics"
	"watchkeeper/internal/models"
)

var ErrUpdateInProgress = errors.New("update check already in progress")

const redeployRetry = 100 * time.Millisecond

// Source fetches new worker code.
type Source interface {
	Pull(ctx context.Context) (gitsource.PullResult, error)
}

// Redeployer brings the worker up on freshly pulled code.
type Redeployer interface {
	Restart(reason models.RestartReason, detail string) error
}

// Updater pulls the worker's source on a fixed delay and on demand, and
// redeploys when the pull brought in new commits. At most one check runs at
// a time.
type Updater struct {
	source   Source
	worker   Redeployer
	notifier Notifier
	logger   *slog.Logger
	interval time.Duration

	// retry is how often a redeploy re-attempts while another restart runs.
	retry time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.RWMutex
	last *models.UpdateResult
}

func NewUpdater(source Source, worker Redeployer, notifier Notifier, interval time.Duration, logger *slog.Logger) *Updater {
	return &Updater{
		source:   source,
		worker:   worker,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		retry:    redeployRetry,
	}
}

// CheckAndApply runs one update cycle. If a cycle is already running it
// returns ErrUpdateInProgress without doing anything.
func (u *Updater) CheckAndApply(ctx context.Context, trigger models.UpdateTrigger) (models.UpdateResult, error) {
	if !u.running.CompareAndSwap(false, true) {
		metrics.UpdateChecks.WithLabelValues(string(trigger), "skipped").Inc()
		return models.UpdateResult{}, ErrUpdateInProgress
	}
	defer u.running.Store(false)

	return u.check(ctx, trigger)
}

// TriggerAsync claims the in-flight flag and runs the cycle in the
// background.
func (u *Updater) TriggerAsync(trigger models.UpdateTrigger) error {
	if !u.running.CompareAndSwap(false, true) {
		metrics.UpdateChecks.WithLabelValues(string(trigger), "skipped").Inc()
		return ErrUpdateInProgress
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer u.running.Store(false)
		_, _ = u.check(context.Background(), trigger)
	}()
	return nil
}

func (u *Updater) check(ctx context.Context, trigger models.UpdateTrigger) (models.UpdateResult, error) {
	res := models.UpdateResult{Trigger: trigger, CheckedAt: time.Now()}
	u.logger.Info("checking for updates", slog.String("trigger", string(trigger)))

	pull, err := u.source.Pull(ctx)
	res.Output = pull.Output
	if err != nil {
		res.Error = err.Error()
		u.record(res)
		metrics.UpdateChecks.WithLabelValues(string(trigger), "error").Inc()
		u.logger.Error("update check failed", slog.String("err", err.Error()))
		u.notifier.Notify(ctx, "Update check failed: "+err.Error(), models.KindWarning)
		return res, err
	}

	res.Revision = gitsource.Short(pull.After)
	if !pull.Changed {
		u.record(res)
		metrics.UpdateChecks.WithLabelValues(string(trigger), "unchanged").Inc()
		u.logger.Info("already up to date", slog.String("revision", res.Revision))
		return res, nil
	}

	res.Changed = true
	u.record(res)
	metrics.UpdateChecks.WithLabelValues(string(trigger), "changed").Inc()
	u.logger.Info("new code pulled, redeploying",
		slog.String("from", gitsource.Short(pull.Before)),
		slog.String("to", res.Revision))

	if err := u.redeploy(ctx, res.Revision); err != nil {
		u.logger.Error("redeploy failed", slog.String("err", err.Error()))
		return res, errors.Wrap(err, "redeploy")
	}
	return res, nil
}

// redeploy restarts the worker on the pulled revision. A restart already in
// flight may have launched before the pull landed and never counts as the
// redeploy; it is waited out and followed by a fresh restart.
func (u *Updater) redeploy(ctx context.Context, rev string) error {
	waiting := false
	for {
		err := u.worker.Restart(models.ReasonUpdate, "deployed "+rev)
		if !errors.Is(err, ErrRestartInProgress) {
			return err
		}
		if !waiting {
			u.logger.Info("restart in progress, redeploy waits for it", slog.String("revision", rev))
			waiting = true
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for in-flight restart")
		case <-time.After(u.retry):
		}
	}
}

func (u *Updater) record(res models.UpdateResult) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.last = &res
}

// Run checks for updates every interval until ctx is cancelled. The delay
// restarts after each check completes; missed ticks are not caught up.
func (u *Updater) Run(ctx context.Context) {
	if u.interval <= 0 {
		return
	}
	timer := time.NewTimer(u.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := u.CheckAndApply(ctx, models.TriggerScheduled); errors.Is(err, ErrUpdateInProgress) {
				u.logger.Debug("scheduled update skipped, another check is running")
			}
			timer.Reset(u.interval)
		}
	}
}

// Wait blocks until background checks started by TriggerAsync finish.
func (u *Updater) Wait() {
	u.wg.Wait()
}

func (u *Updater) InProgress() bool {
	return u.running.Load()
}

// LastResult returns the outcome of the most recent check, or nil.
func (u *Updater) LastResult() *models.UpdateResult {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.last == nil {
		return nil
	}
	res := *u.last
	return &res
}
