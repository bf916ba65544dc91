// Package reconcile runs the periodic read-only resync that backs up the
// change notifier. A notification missed at subscribe time, or a write the
// watcher never saw, is picked up within one interval.
package reconcile

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"storefront/internal/logging"
)

// Reconciler re-reads shared state and reports which keys changed.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]string, error)
}

// Func adapts a function to Reconciler.
type Func func(ctx context.Context) ([]string, error)

func (f Func) Reconcile(ctx context.Context) ([]string, error) { return f(ctx) }

// Options configures a Loop.
type Options struct {
	Interval time.Duration // default 2s
	Jitter   time.Duration // up to this much is added to each wait
	OnChange func(keys []string)
}

// Loop ticks a Reconciler until stopped.
type Loop struct {
	r    Reconciler
	opts Options

	group singleflight.Group

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

var ErrRunning = errors.New("reconcile loop already running")

func New(r Reconciler, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	return &Loop{r: r, opts: opts}
}

// Start launches the ticking goroutine. It ends when ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	go l.run(ctx, l.done)
	logging.Get(logging.CategorySync).Debugw("reconcile loop started", "interval", l.opts.Interval, "jitter", l.opts.Jitter)
	return nil
}

// Stop cancels the loop and waits for it. Safe to call more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.running = false
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Trigger reconciles now. Calls that overlap an in-flight pass share its result.
func (l *Loop) Trigger(ctx context.Context) ([]string, error) {
	v, err, _ := l.group.Do("reconcile", func() (any, error) {
		keys, err := l.r.Reconcile(ctx)
		if err == nil && len(keys) > 0 && l.opts.OnChange != nil {
			l.opts.OnChange(keys)
		}
		return keys, err
	})
	if err != nil {
		return nil, err
	}
	keys, _ := v.([]string)
	return keys, nil
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(l.wait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := l.Trigger(ctx); err != nil && ctx.Err() == nil {
				logging.Get(logging.CategorySync).Warnw("reconcile failed", "error", err)
			}
			timer.Reset(l.wait())
		}
	}
}

func (l *Loop) wait() time.Duration {
	if l.opts.Jitter <= 0 {
		return l.opts.Interval
	}
	return l.opts.Interval + rand.N(l.opts.Jitter)
}
