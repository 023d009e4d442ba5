package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
)

// SweepSource finds the prints of recently ended sessions.
type SweepSource interface {
	ListEndedBetween(ctx context.Context, from, to time.Time) ([]int64, error)
}

// PrintLister lists the prints of a group of sessions.
type PrintLister interface {
	ListIDsBySessions(ctx context.Context, sessionIDs []int64) ([]int64, error)
}

// Enqueuer queues prints for a score cache refresh.
type Enqueuer interface {
	EnqueueRescore(ctx context.Context, printIDs ...int64) error
}

// RescoreSweeper periodically queues every print of the sessions that ended
// within the last window, so late answers and validity flips settle into the
// caches even if an enqueue was lost.
type RescoreSweeper struct {
	rdb      *redis.Client
	sessions SweepSource
	prints   PrintLister
	queue    Enqueuer
	spec     string
	window   time.Duration
	cron     *cron.Cron
	log      zerolog.Logger
}

func NewRescoreSweeper(rdb *redis.Client, sessions SweepSource, prints PrintLister, queue Enqueuer, spec string, window time.Duration, log zerolog.Logger) *RescoreSweeper {
	return &RescoreSweeper{
		rdb:      rdb,
		sessions: sessions,
		prints:   prints,
		queue:    queue,
		spec:     spec,
		window:   window,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		log:      log.With().Str("component", "rescore_sweeper").Logger(),
	}
}

// Start schedules the sweep and returns. Stop the sweeper through ctx.
func (s *RescoreSweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Sweep(ctx, time.Now().UTC()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.spec).Dur("window", s.window).Msg("RescoreSweeper started")

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.log.Info().Msg("RescoreSweeper stopped")
	}()
	return nil
}

// Sweep runs one pass ending at now. Only one server sweeps per window.
func (s *RescoreSweeper) Sweep(ctx context.Context, now time.Time) {
	ok, err := s.rdb.SetNX(ctx, config.CacheKey.SweepLockKey(), now.Unix(), s.window/2).Result()
	if err != nil {
		s.log.Error().Err(err).Msg("Sweep lock failed")
		return
	}
	if !ok {
		s.log.Debug().Msg("Sweep already running elsewhere")
		return
	}

	sessionIDs, err := s.sessions.ListEndedBetween(ctx, now.Add(-s.window), now)
	if err != nil {
		s.log.Error().Err(err).Msg("List ended sessions failed")
		return
	}
	if len(sessionIDs) == 0 {
		return
	}
	printIDs, err := s.prints.ListIDsBySessions(ctx, sessionIDs)
	if err != nil {
		s.log.Error().Err(err).Msg("List prints of ended sessions failed")
		return
	}
	if err := s.queue.EnqueueRescore(ctx, printIDs...); err != nil {
		s.log.Error().Err(err).Msg("Enqueue sweep failed")
		return
	}
	s.log.Info().
		Int("sessions", len(sessionIDs)).
		Int("prints", len(printIDs)).
		Msg("Sweep queued prints")
}
