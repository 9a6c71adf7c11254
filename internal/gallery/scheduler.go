package gallery

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// SyncInterval is the fixed cadence of background top-12 refreshes.
	SyncInterval = 3 * time.Minute

	// tickInterval bounds how stale an expired pin can be observed.
	tickInterval = time.Second
)

// Scheduler drives background refreshes of the newest-12 snapshot and the
// engine's expiry tick. Besides the fixed interval it refreshes when the
// host signals a return to foreground or a network reconnect. Refreshes
// are single-flight: a trigger while a fetch is in flight is dropped, not
// queued. In preview mode (reduced, non-interactive rendering) all
// refreshes are suppressed.
type Scheduler struct {
	engine  *Engine
	fetcher Fetcher
	log     zerolog.Logger

	syncBusy atomic.Bool
	preview  atomic.Bool
	kick     chan struct{}
}

// NewScheduler builds a scheduler for the engine. Call Run to start it.
func NewScheduler(engine *Engine, fetcher Fetcher, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:  engine,
		fetcher: fetcher,
		log:     logger,
		kick:    make(chan struct{}, 1),
	}
}

// SetPreview toggles preview mode. While set, no refreshes run.
func (s *Scheduler) SetPreview(on bool) {
	s.preview.Store(on)
}

// Foreground signals that the consumer regained visibility.
func (s *Scheduler) Foreground() {
	s.trigger()
}

// Online signals that the network came back.
func (s *Scheduler) Online() {
	s.trigger()
}

func (s *Scheduler) trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx ends, refreshing on the fixed interval and on
// foreground/online triggers, and ticking the engine's expiry every
// second. An immediate first refresh warms the snapshot unless the
// hydrated one is younger than the sync interval.
func (s *Scheduler) Run(ctx context.Context) {
	syncTicker := time.NewTicker(SyncInterval)
	defer syncTicker.Stop()
	expiryTicker := time.NewTicker(tickInterval)
	defer expiryTicker.Stop()

	if !s.engine.SyncedWithin(SyncInterval) {
		go s.refresh(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiryTicker.C:
			s.engine.Tick()
		case <-syncTicker.C:
			go s.refresh(ctx)
		case <-s.kick:
			go s.refresh(ctx)
		}
	}
}

// refresh fetches the newest 12 works and feeds them to the engine. A
// failed fetch leaves the last good snapshot in place.
func (s *Scheduler) refresh(ctx context.Context) {
	if s.preview.Load() {
		return
	}
	if !s.syncBusy.CompareAndSwap(false, true) {
		return
	}
	defer s.syncBusy.Store(false)

	page, err := s.fetcher.FetchPage(ctx, nil, Top12Size)
	if err != nil {
		s.log.Error().Err(err).Msg("gallery sync failed")
		return
	}
	s.engine.Sync(page)
}
