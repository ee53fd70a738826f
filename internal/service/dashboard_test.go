package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchkeeper/internal/logging"
	"watchkeeper/internal/models"
)

type staticWorker struct{ st models.ProcessStatus }

func (w staticWorker) Status() models.ProcessStatus { return w.st }

type staticResources struct{ snap models.ResourceSnapshot }

func (r staticResources) Latest(context.Context) models.ResourceSnapshot { return r.snap }

type staticUpdates struct {
	inProgress bool
	last       *models.UpdateResult
}

func (u staticUpdates) InProgress() bool                 { return u.inProgress }
func (u staticUpdates) LastResult() *models.UpdateResult { return u.last }

type staticVersion struct {
	rev string
	err error
}

func (v staticVersion) Revision(context.Context) (string, error) { return v.rev, v.err }

type fakeTail struct {
	lines     []string
	requested int
}

func (f *fakeTail) Tail(n int) []string {
	f.requested = n
	if len(f.lines) <= n {
		return f.lines
	}
	return f.lines[len(f.lines)-n:]
}

func TestDashboard_Overview(t *testing.T) {
	tail := &fakeTail{lines: []string{"a", "b", "c"}}
	last := &models.UpdateResult{Trigger: models.TriggerScheduled, Revision: "abc1234", CheckedAt: time.Now()}
	d := NewDashboard(DashboardConfig{
		Worker:           staticWorker{st: models.ProcessStatus{State: models.StateUp, Pid: 42}},
		Resources:        staticResources{snap: models.ResourceSnapshot{LoadAvailable: true, Load1: 1.5}},
		Updates:          staticUpdates{inProgress: true, last: last},
		Version:          staticVersion{rev: "abc1234"},
		Logs:             tail,
		Channels:         []string{"ops-telegram", "discord"},
		MaxLines:         2,
		ScheduledUpdates: true,
		Logger:           logging.Discard(),
	})

	ov := d.Overview(context.Background())
	assert.Equal(t, 42, ov.Worker.Pid)
	assert.Equal(t, 1.5, ov.Resources.Load1)
	assert.Equal(t, "abc1234", ov.Version)
	assert.True(t, ov.UpdatesEnabled)
	assert.True(t, ov.UpdateInProgress)
	assert.Equal(t, last, ov.LastUpdate)
	assert.Equal(t, []string{"ops-telegram", "discord"}, ov.Channels)
	assert.Equal(t, []string{"b", "c"}, ov.Logs)
}

func TestDashboard_OptionalCollaborators(t *testing.T) {
	d := NewDashboard(DashboardConfig{
		Worker:  staticWorker{st: models.ProcessStatus{State: models.StateDown}},
		Version: staticVersion{err: errors.New("not a git repo")},
		Logger:  logging.Discard(),
	})

	ov := d.Overview(context.Background())
	assert.Equal(t, "unknown", ov.Version)
	assert.False(t, ov.UpdatesEnabled)
	assert.Nil(t, ov.LastUpdate)
	assert.NotNil(t, ov.Logs)
	assert.Empty(t, ov.Logs)
	assert.Equal(t, 100, d.MaxLines())
}

func TestDashboard_LogsClamped(t *testing.T) {
	tail := &fakeTail{}
	d := NewDashboard(DashboardConfig{Worker: staticWorker{}, Logs: tail, MaxLines: 50, Logger: logging.Discard()})

	d.Logs(1000)
	assert.Equal(t, 50, tail.requested)
	d.Logs(-1)
	assert.Equal(t, 50, tail.requested)
	d.Logs(10)
	assert.Equal(t, 10, tail.requested)
	assert.Equal(t, []string{}, d.Logs(10))
}

func TestDashboard_ScheduledUpdatesFollowConfig(t *testing.T) {
	d := NewDashboard(DashboardConfig{
		Worker:           staticWorker{},
		Updates:          staticUpdates{last: &models.UpdateResult{Trigger: models.TriggerManual}},
		ScheduledUpdates: false,
		Logger:           logging.Discard(),
	})

	ov := d.Overview(context.Background())
	assert.False(t, ov.UpdatesEnabled, "an updater for manual checks does not mean scheduled checks run")
	require.NotNil(t, ov.LastUpdate)
	assert.Equal(t, models.TriggerManual, ov.LastUpdate.Trigger)
}
