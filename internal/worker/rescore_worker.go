package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/repository"
	"github.com/stemsi/examprint/internal/service"
)

const RescorePollTimeout = 1 * time.Second

// Recomputer scores a print from its printed answers.
type Recomputer interface {
	Recompute(ctx context.Context, printID int64) (repository.ScoreCache, error)
}

// CacheWriter persists recomputed score caches.
type CacheWriter interface {
	UpdateScoreCaches(ctx context.Context, batch []repository.ScoreCache) error
	UpdateScoreCache(ctx context.Context, c repository.ScoreCache) error
}

// RescoreWorker drains the re-score queue and refreshes the advisory score
// columns of prints in batches.
type RescoreWorker struct {
	rdb          *redis.Client
	results      Recomputer
	caches       CacheWriter
	batchSize    int
	batchTimeout time.Duration
	log          zerolog.Logger
}

func NewRescoreWorker(rdb *redis.Client, results Recomputer, caches CacheWriter, batchSize int, batchTimeout time.Duration, log zerolog.Logger) *RescoreWorker {
	return &RescoreWorker{
		rdb:          rdb,
		results:      results,
		caches:       caches,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		log:          log.With().Str("component", "rescore_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *RescoreWorker) Start(ctx context.Context) {
	w.log.Info().Msg("RescoreWorker started")

	batch := make([]repository.ScoreCache, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, RescorePollTimeout, config.WorkerKey.RescorePrintsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			printID, err := strconv.ParseInt(item[1], 10, 64)
			if err != nil {
				w.log.Error().Err(err).Str("payload", item[1]).Msg("Invalid print id")
				continue
			}
			// Cleared before recomputing so a change made meanwhile queues it again.
			w.rdb.SRem(ctx, config.CacheKey.RescorePendingKey(), printID)

			c, err := w.results.Recompute(ctx, printID)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					continue
				}
				w.log.Error().Err(err).Int64("print_id", printID).Msg("Recompute failed")
				continue
			}
			batch = append(batch, c)
		}
	}
}

// ----------------------------------------------------------------
// Batch update with per-print fallback
// ----------------------------------------------------------------

func (w *RescoreWorker) flushSafe(ctx context.Context, batch []repository.ScoreCache) {
	if len(batch) == 0 {
		return
	}

	if err := w.caches.UpdateScoreCaches(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk cache update failed, using fallback")

		for _, c := range batch {
			if err := w.caches.UpdateScoreCache(ctx, c); err != nil {
				w.log.Error().Err(err).Int64("print_id", c.PrintID).Msg("UpdateScoreCache failed, requeueing")
				w.rdb.RPush(ctx, config.WorkerKey.RescorePrintsQueue, c.PrintID)
			}
		}
		return
	}
	w.log.Debug().Int("size", len(batch)).Msg("Score caches refreshed")
}
