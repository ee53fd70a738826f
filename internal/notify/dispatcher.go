// Package notify fans worker status changes out to external channels.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"watchkeeper/internal/metrics"
	"watchkeeper/internal/models"
)

// Message is what a channel delivers.
type Message struct {
	Kind   models.StatusKind
	Detail string
	Time   time.Time
}

// Channel delivers one message to an external service.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher sends status messages to every channel, at most once per
// throttle window for each status kind. The window is global across
// channels and is measured from the dispatch attempt, whatever the
// per-channel outcome.
type Dispatcher struct {
	channels []Channel
	window   time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[models.StatusKind]time.Time
}

func NewDispatcher(channels []Channel, window, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		channels: channels,
		window:   window,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		lastSent: make(map[models.StatusKind]time.Time),
	}
}

// Notify dispatches detail under kind. It returns false when the message was
// throttled. Delivery errors are logged and never returned.
func (d *Dispatcher) Notify(ctx context.Context, detail string, kind models.StatusKind) bool {
	now, ok := d.claim(kind)
	if !ok {
		metrics.NotificationsThrottled.WithLabelValues(string(kind)).Inc()
		d.logger.Debug("notification throttled", slog.String("kind", string(kind)), slog.String("detail", detail))
		return false
	}

	msg := Message{Kind: kind, Detail: detail, Time: now}

	var wg sync.WaitGroup
	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			d.deliver(ctx, ch, msg)
		}(ch)
	}
	wg.Wait()
	return true
}

// claim records the dispatch time for kind if the window has elapsed.
func (d *Dispatcher) claim(kind models.StatusKind) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, seen := d.lastSent[kind]; seen && now.Sub(last) < d.window {
		return time.Time{}, false
	}
	d.lastSent[kind] = now
	return now, true
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := ch.Send(ctx, msg); err != nil {
		metrics.Notifications.WithLabelValues(string(msg.Kind), ch.Name(), "error").Inc()
		d.logger.Error("notification delivery failed",
			slog.String("channel", ch.Name()),
			slog.String("kind", string(msg.Kind)),
			slog.String("err", err.Error()))
		return
	}
	metrics.Notifications.WithLabelValues(string(msg.Kind), ch.Name(), "ok").Inc()
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}
