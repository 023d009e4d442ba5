package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examprint/internal/config"
	"github.com/stemsi/examprint/internal/model"
)

// RedisNotifier publishes monitor events over PubSub and feeds the re-score
// queue consumed by the worker.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) PublishMonitor(ctx context.Context, ev model.MonitorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal monitor event: %w", err)
	}
	return n.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(ev.SessionID), payload).Err()
}

// EnqueueRescore queues prints for a cache refresh. Prints still waiting in
// the queue are not pushed again.
func (n *RedisNotifier) EnqueueRescore(ctx context.Context, printIDs ...int64) error {
	if len(printIDs) == 0 {
		return nil
	}
	pendingKey := config.CacheKey.RescorePendingKey()

	pipe := n.rdb.Pipeline()
	added := make([]*redis.IntCmd, len(printIDs))
	for i, id := range printIDs {
		added[i] = pipe.SAdd(ctx, pendingKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark pending rescore: %w", err)
	}

	fresh := make([]interface{}, 0, len(printIDs))
	for i, cmd := range added {
		if cmd.Val() > 0 {
			fresh = append(fresh, printIDs[i])
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return n.rdb.RPush(ctx, config.WorkerKey.RescorePrintsQueue, fresh...).Err()
}
