package service

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"watchkeeper/internal/gitsource"
	"watchkeeper/internal/models"
)

// fakeHandle is a worker that exits when told to, or when signalled.
type fakeHandle struct {
	pid           int
	ignoreSignals bool
	stopDelay     time.Duration

	once sync.Once
	exit chan models.ExitInfo

	mu      sync.Mutex
	signals []os.Signal
	killed  bool
}

func (h *fakeHandle) Pid() int { return h.pid }

func (h *fakeHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	h.mu.Unlock()
	if !h.ignoreSignals {
		go func() {
			time.Sleep(h.stopDelay)
			h.Exit(models.ExitInfo{Code: -1, Signal: "terminated"})
		}()
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	h.killed = true
	h.mu.Unlock()
	h.Exit(models.ExitInfo{Code: -1, Signal: "killed"})
	return nil
}

func (h *fakeHandle) Wait() models.ExitInfo {
	info := <-h.exit
	info.At = time.Now()
	return info
}

// Exit makes the worker terminate with info. Only the first call counts.
func (h *fakeHandle) Exit(info models.ExitInfo) {
	h.once.Do(func() { h.exit <- info })
}

func (h *fakeHandle) wasKilled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}

// fakeLauncher records every launch.
type fakeLauncher struct {
	mu            sync.Mutex
	err           error
	ignoreSignals bool
	stopDelay     time.Duration
	handles       []*fakeHandle
	launchedAt    []time.Time
}

func (l *fakeLauncher) Launch(stdout, _ io.Writer) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launchedAt = append(l.launchedAt, time.Now())
	if l.err != nil {
		return nil, l.err
	}
	h := &fakeHandle{
		pid:           1000 + len(l.handles),
		ignoreSignals: l.ignoreSignals,
		stopDelay:     l.stopDelay,
		exit:          make(chan models.ExitInfo, 1),
	}
	l.handles = append(l.handles, h)
	_, _ = io.WriteString(stdout, "worker booted\n")
	return h, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launchedAt)
}

func (l *fakeLauncher) last() *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[len(l.handles)-1]
}

func (l *fakeLauncher) launchTime(i int) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launchedAt[i]
}

type sentNotification struct {
	detail string
	kind   models.StatusKind
}

// recordingNotifier records notifications without throttling.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, detail string, kind models.StatusKind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{detail: detail, kind: kind})
	return true
}

func (n *recordingNotifier) ofKind(kind models.StatusKind) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (n *recordingNotifier) containing(kind models.StatusKind, text string) int {
	count := 0
	for _, s := range n.ofKind(kind) {
		if strings.Contains(s.detail, text) {
			count++
		}
	}
	return count
}

// fakeSource is a scripted update source.
type fakeSource struct {
	mu      sync.Mutex
	result  gitsource.PullResult
	err     error
	block   chan struct{}
	entered chan struct{}
	pulls   int
}

func (s *fakeSource) Pull(context.Context) (gitsource.PullResult, error) {
	s.mu.Lock()
	s.pulls++
	block, entered := s.block, s.entered
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return s.result, s.err
}

func (s *fakeSource) pullCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls
}

// fakeSnapshotter returns a fixed resource snapshot.
type fakeSnapshotter struct {
	snap models.ResourceSnapshot
}

func (f fakeSnapshotter) Sample(context.Context) models.ResourceSnapshot {
	return f.snap
}

// gatedNotifier records like recordingNotifier but holds any Up
// notification whose detail contains match until gate is closed.
type gatedNotifier struct {
	recordingNotifier
	match   string
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (n *gatedNotifier) Notify(ctx context.Context, detail string, kind models.StatusKind) bool {
	if kind == models.KindUp && strings.Contains(detail, n.match) {
		n.once.Do(func() { close(n.entered) })
		<-n.gate
	}
	return n.recordingNotifier.Notify(ctx, detail, kind)
}

// slowNotifier records after a fixed delivery delay.
type slowNotifier struct {
	recordingNotifier
	delay time.Duration
}

func (n *slowNotifier) Notify(ctx context.Context, detail string, kind models.StatusKind) bool {
	time.Sleep(n.delay)
	return n.recordingNotifier.Notify(ctx, detail, kind)
}
