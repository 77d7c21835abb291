// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/quizduel/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for match events.
const DefaultQueueName = "quizduel_match_events"

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// EventQueue is a Redis list of JSON-encoded match events. The match service
// pushes onto the tail; the historian pops from the head.
type EventQueue struct {
	rdb  *redis.Client
	name string
}

func NewEventQueue(rdb *redis.Client, name string) *EventQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &EventQueue{rdb: rdb, name: name}
}

// Name returns the list key.
func (q *EventQueue) Name() string {
	return q.name
}

// Record serializes ev to JSON, then pushes it to the queue.
func (q *EventQueue) Record(ctx context.Context, ev models.MatchEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal match event: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next event. ok is false when the timeout
// elapsed with nothing queued. Entries that do not decode are returned as
// ErrMalformed after being removed from the queue.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (ev models.MatchEvent, ok bool, err error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.MatchEvent{}, false, nil
		}
		return models.MatchEvent{}, false, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return models.MatchEvent{}, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return models.MatchEvent{}, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ev, true, nil
}

// Len reports how many events are waiting.
func (q *EventQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}

// ErrMalformed marks a queue entry that is not a match event.
var ErrMalformed = errors.New("malformed match event")
