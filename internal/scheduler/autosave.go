package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
	"github.com/MrSnakeDoc/orbit/internal/profile"
)

// DefaultAutosaveInterval bounds how often the session is written
const DefaultAutosaveInterval = time.Second

const flushTimeout = 10 * time.Second

// Capturer hands save a consistent view of the state to persist. The
// state must not be swapped out until save returns.
type Capturer interface {
	Checkpoint(save func(profileID string, snap *domain.Snapshot, registry profile.State) error) error
}

// Saver writes captured state
type Saver interface {
	SaveSnapshot(ctx context.Context, profileID string, snap *domain.Snapshot) error
	SaveRegistry(ctx context.Context, st profile.State) error
}

// Autosaver persists the session after changes. Notify is cheap and never
// blocks; bursts of changes within one interval produce a single write.
type Autosaver struct {
	source   Capturer
	saver    Saver
	logger   logger.Logger
	interval time.Duration
	trigger  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	flushMu  sync.Mutex
}

// NewAutosaver creates a new autosaver
func NewAutosaver(source Capturer, saver Saver, log logger.Logger, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{
		source:   source,
		saver:    saver,
		logger:   log,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Notify marks the state dirty
func (a *Autosaver) Notify() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

// Start begins the flush loop
func (a *Autosaver) Start(ctx context.Context) {
	go a.run(ctx)
}

func (a *Autosaver) run(ctx context.Context) {
	defer close(a.doneCh)

	var timer *time.Timer
	var due <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-a.trigger:
			if due == nil {
				timer = time.NewTimer(a.interval)
				due = timer.C
			}
		case <-due:
			due, timer = nil, nil
			a.flushLogged(ctx)
		case <-a.stopCh:
			a.drain(ctx, due != nil)
			return
		case <-ctx.Done():
			a.drain(context.WithoutCancel(ctx), due != nil)
			return
		}
	}
}

// drain writes pending changes on the way out
func (a *Autosaver) drain(ctx context.Context, pending bool) {
	select {
	case <-a.trigger:
		pending = true
	default:
	}
	if pending {
		a.flushLogged(ctx)
	}
}

func (a *Autosaver) flushLogged(ctx context.Context) {
	if err := a.Flush(ctx); err != nil {
		a.logger.Error("autosave failed", logger.Error(err))
	}
}

// Flush writes the current state now
func (a *Autosaver) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	return a.source.Checkpoint(func(profileID string, snap *domain.Snapshot, registry profile.State) error {
		if err := a.saver.SaveSnapshot(ctx, profileID, snap); err != nil {
			return err
		}
		if err := a.saver.SaveRegistry(ctx, registry); err != nil {
			return err
		}
		a.logger.Debug("session saved", logger.String("profile_id", profileID))
		return nil
	})
}

// Stop flushes pending changes and waits for the loop to exit
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	<-a.doneCh
}
