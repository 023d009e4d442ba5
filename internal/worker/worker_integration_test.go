//go:build integration

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/repository"
	"github.com/stemsi/examprint/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	addr, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

type stubResults struct{}

func (stubResults) Recompute(_ context.Context, printID int64) (repository.ScoreCache, error) {
	if printID == 404 {
		return repository.ScoreCache{}, service.ErrNotFound
	}
	return repository.ScoreCache{PrintID: printID, NumQsts: 2, Score: float64(printID)}, nil
}

type stubCaches struct {
	mu       sync.Mutex
	bulkErr  error
	failOne  int64
	written  map[int64]repository.ScoreCache
	bulkRuns int
}

func newStubCaches() *stubCaches {
	return &stubCaches{written: make(map[int64]repository.ScoreCache)}
}

func (s *stubCaches) UpdateScoreCaches(_ context.Context, batch []repository.ScoreCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkRuns++
	if s.bulkErr != nil {
		return s.bulkErr
	}
	for _, c := range batch {
		s.written[c.PrintID] = c
	}
	return nil
}

func (s *stubCaches) UpdateScoreCache(_ context.Context, c repository.ScoreCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.PrintID == s.failOne {
		return errors.New("row locked")
	}
	s.written[c.PrintID] = c
	return nil
}

func (s *stubCaches) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

func TestRescoreWorkerDrainsQueue(t *testing.T) {
	rdb := startRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := service.NewRedisNotifier(rdb)
	require.NoError(t, queue.EnqueueRescore(ctx, 1, 2, 2, 404, 3))

	n, err := rdb.LLen(ctx, config.WorkerKey.RescorePrintsQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n, "duplicate ids are queued once")

	caches := newStubCaches()
	w := NewRescoreWorker(rdb, stubResults{}, caches, 2, 50*time.Millisecond, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return caches.count() == 3 }, 10*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 3.0, caches.written[3].Score)

	pending, err := rdb.SCard(context.Background(), config.CacheKey.RescorePendingKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, pending, "popped prints can be queued again")
}

func TestRescoreWorkerRequeuesFailedWrites(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	caches := newStubCaches()
	caches.bulkErr = errors.New("deadlock detected")
	caches.failOne = 7
	w := NewRescoreWorker(rdb, stubResults{}, caches, 10, time.Second, zerolog.Nop())

	w.flushSafe(ctx, []repository.ScoreCache{{PrintID: 6}, {PrintID: 7}})

	assert.Contains(t, caches.written, int64(6))
	assert.NotContains(t, caches.written, int64(7))

	queued, err := rdb.LRange(ctx, config.WorkerKey.RescorePrintsQueue, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, queued)
}

type stubEnded struct {
	calls int
	from  time.Time
}

func (s *stubEnded) ListEndedBetween(_ context.Context, from, _ time.Time) ([]int64, error) {
	s.calls++
	s.from = from
	return []int64{1, 2}, nil
}

type stubPrints map[int64][]int64

func (s stubPrints) ListIDsBySessions(_ context.Context, sessionIDs []int64) ([]int64, error) {
	var ids []int64
	for _, id := range sessionIDs {
		ids = append(ids, s[id]...)
	}
	return ids, nil
}

func TestSweepQueuesPrintsOfEndedSessionsOnce(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ended := &stubEnded{}
	prints := stubPrints{1: {10, 11}, 2: {12}}
	s := NewRescoreSweeper(rdb, ended, prints, service.NewRedisNotifier(rdb), "@every 15m", time.Hour, zerolog.Nop())

	s.Sweep(ctx, now)
	s.Sweep(ctx, now.Add(time.Minute))

	assert.Equal(t, 1, ended.calls, "second sweep is held off by the lock")
	assert.Equal(t, now.Add(-time.Hour), ended.from)

	queued, err := rdb.LRange(ctx, config.WorkerKey.RescorePrintsQueue, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11", "12"}, queued)
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	s := NewRescoreSweeper(nil, &stubEnded{}, stubPrints{}, nil, "every now and then", time.Hour, zerolog.Nop())
	assert.Error(t, s.Start(context.Background()))
}
