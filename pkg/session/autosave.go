package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultAutosaveInterval is used when no interval is configured.
const DefaultAutosaveInterval = 30 * time.Second

// Autosaver periodically commits a patch version of a session when its content
// changed since the last persist. Failures only set the session's error status:
// the next tick retries because the content still differs.
type Autosaver struct {
	session  *Session
	interval time.Duration
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewAutosaver creates a stopped Autosaver. A non-positive interval falls back to
// DefaultAutosaveInterval.
func NewAutosaver(s *Session, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{
		session:  s,
		interval: interval,
		logger:   s.logger.With("component", "autosave"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker goroutine. It returns immediately; later calls are no-ops.
// Cancelling ctx stops the ticker like Stop does.
func (a *Autosaver) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.loop(ctx)
	})
}

// Stop halts the ticker and blocks until the goroutine has exited, including any
// persist already in flight. No persist starts after Stop returns.
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() {
		close(a.stop)
	})
	// Never started: nothing to wait for.
	started := true
	a.startOnce.Do(func() {
		started = false
		close(a.done)
	})
	if started {
		<-a.done
	}
}

func (a *Autosaver) loop(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.C:
			// A stop may race with the tick; honour it first.
			select {
			case <-a.stop:
				return
			default:
			}
			a.tick(ctx)
		}
	}
}

func (a *Autosaver) tick(ctx context.Context) {
	// Persist operations are not cancellable once started.
	saved, err := a.session.Autosave(context.WithoutCancel(ctx))
	switch {
	case err != nil:
		a.logger.Error("autosave failed, will retry on next tick", "err", err)
	case saved:
		a.logger.Debug("autosaved", "version", a.session.Status().Version)
	default:
		a.logger.Debug("autosave skipped, no changes")
	}
}
