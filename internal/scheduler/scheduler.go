// Package scheduler drives the recurring calendar sync and bot dispatch tick.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	calendarusecase "github.com/Chedidayeh/meeting-bot/internal/calendar/usecase"
	dispatchusecase "github.com/Chedidayeh/meeting-bot/internal/dispatch/usecase"
	"github.com/Chedidayeh/meeting-bot/pkg/lock"
	"github.com/Chedidayeh/meeting-bot/pkg/metrics"

	"github.com/rs/zerolog"
)

const tickLockKey = "scheduler:tick"

type Syncer interface {
	SyncAll(ctx context.Context, now time.Time) calendarusecase.SyncReport
}

type AutoDispatcher interface {
	RunAutomatic(ctx context.Context, now time.Time) dispatchusecase.DispatchReport
}

// MeetingScheduler syncs calendars and then dispatches due bots on every tick
type MeetingScheduler struct {
	syncer     Syncer
	dispatcher AutoDispatcher
	locker     lock.Locker
	metrics    *metrics.Metrics
	interval   time.Duration
	log        zerolog.Logger
	now        func() time.Time
	stopChan   chan struct{}
	done       chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
	started    atomic.Bool
}

func NewMeetingScheduler(
	syncer Syncer,
	dispatcher AutoDispatcher,
	locker lock.Locker,
	m *metrics.Metrics,
	interval time.Duration,
	log zerolog.Logger,
) *MeetingScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MeetingScheduler{
		syncer:     syncer,
		dispatcher: dispatcher,
		locker:     locker,
		metrics:    m,
		interval:   interval,
		log:        log.With().Str("component", "meeting_scheduler").Logger(),
		now:        time.Now,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *MeetingScheduler) Start() {
	s.startOnce.Do(s.run)
}

func (s *MeetingScheduler) run() {
	s.log.Info().Dur("interval", s.interval).Msg("Starting meeting scheduler")
	s.started.Store(true)

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.Tick(context.Background())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Tick(context.Background())
			case <-s.stopChan:
				s.log.Info().Msg("Meeting scheduler stopped")
				return
			}
		}
	}()
}

// Stop waits for an in-flight tick to finish. Calling it again is a no-op.
func (s *MeetingScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.done
	}
}

// Tick runs one sync pass followed by one automatic dispatch pass. With
// several instances sharing a Redis lock only one of them ticks.
func (s *MeetingScheduler) Tick(ctx context.Context) {
	unlock, ok, err := s.locker.TryLock(ctx, tickLockKey, s.interval)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to acquire tick lock")
		s.metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return
	}
	if !ok {
		s.metrics.SyncRunsTotal.WithLabelValues("skipped").Inc()
		return
	}
	defer unlock()

	now := s.now()

	sync := s.syncer.SyncAll(ctx, now)
	dispatch := s.dispatcher.RunAutomatic(ctx, now)

	s.metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	if sync.Users > 0 || dispatch.Due > 0 {
		s.log.Info().
			Int("users", sync.Users).
			Int("synced", sync.Synced).
			Int("sync_failed", sync.Failed).
			Int("disconnected", sync.Disconnected).
			Int("due", dispatch.Due).
			Int("dispatched", dispatch.Dispatched).
			Int("denied", dispatch.Denied).
			Int("dispatch_failed", dispatch.Failed).
			Msg("Tick complete")
	}
}
