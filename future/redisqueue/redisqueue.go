// Package redisqueue is a Redis-backed alternate implementation of the
// future queue, for deployments that run the perception and real-time
// cyclers in separate processes and need the announce/finalize handoff to
// cross a process boundary.
//
// Grounded on queue/redis/queue.go's Redis client wiring (URL parsing,
// connection ping, key prefixing), generalized from a FIFO job queue to a
// hash of JSON-encoded Entry values keyed by cycle timestamp.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldcore/cyclerd/future"
)

// Config configures the Redis-backed queue.
type Config struct {
	RedisURL  string // defaults to "redis://localhost:6379/0"
	KeyPrefix string // defaults to "cyclerd:future:"
}

// Queue is a Redis hash-backed future queue: one hash per cycler instance,
// field = RFC3339Nano timestamp, value = JSON-encoded entry.
type Queue struct {
	client *redis.Client
	prefix string
}

type wireEntry struct {
	Done  bool            `json:"done"`
	Value json.RawMessage `json:"value,omitempty"`
}

// New connects to Redis and returns a Queue for the given hash key.
func New(ctx context.Context, hashKey string, cfg Config) (*Queue, error) {
	redisURL := cfg.RedisURL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redisqueue: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisqueue: connect: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "cyclerd:future:"
	}

	return &Queue{client: client, prefix: prefix + hashKey}, nil
}

// Close closes the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

func tsKey(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

// Announce registers a pending future for ts.
func (q *Queue) Announce(ctx context.Context, ts time.Time) error {
	field := tsKey(ts)
	set, err := q.client.HSetNX(ctx, q.prefix, field, mustMarshal(wireEntry{})).Result()
	if err != nil {
		return fmt.Errorf("redisqueue: announce: %w", err)
	}
	if !set {
		return errors.New("redisqueue: timestamp already announced")
	}
	return nil
}

// Finalize fills in the value for a previously announced timestamp.
func (q *Queue) Finalize(ctx context.Context, ts time.Time, value any) error {
	field := tsKey(ts)
	raw, err := q.client.HGet(ctx, q.prefix, field).Result()
	if errors.Is(err, redis.Nil) {
		return future.ErrNotAnnounced
	}
	if err != nil {
		return fmt.Errorf("redisqueue: finalize: %w", err)
	}

	var existing wireEntry
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return fmt.Errorf("redisqueue: decode existing entry: %w", err)
	}
	if existing.Done {
		return future.ErrAlreadyFinalized
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redisqueue: marshal value: %w", err)
	}

	return q.client.HSet(ctx, q.prefix, field, mustMarshal(wireEntry{Done: true, Value: encoded})).Err()
}

// Get returns the decoded entry for ts, if any.
func (q *Queue) Get(ctx context.Context, ts time.Time, out any) (done bool, found bool, err error) {
	raw, err := q.client.HGet(ctx, q.prefix, tsKey(ts)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("redisqueue: get: %w", err)
	}

	var e wireEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return false, true, fmt.Errorf("redisqueue: decode entry: %w", err)
	}
	if !e.Done || out == nil {
		return e.Done, true, nil
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		return true, true, fmt.Errorf("redisqueue: decode value: %w", err)
	}
	return true, true, nil
}

// Drain returns every finalized entry with timestamp <= now, in
// timestamp order, and deletes those fields from the hash — the
// Redis-backed analogue of future.Queue.Drain for multi-process
// deployments (§4.4).
func (q *Queue) Drain(ctx context.Context, now time.Time) ([]future.Entry, error) {
	fields, err := q.client.HGetAll(ctx, q.prefix).Result()
	if err != nil {
		return nil, fmt.Errorf("redisqueue: drain: scan: %w", err)
	}

	var drained []future.Entry
	var toDelete []string
	for field, raw := range fields {
		ts, err := time.Parse(time.RFC3339Nano, field)
		if err != nil {
			continue
		}
		var e wireEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("redisqueue: drain: decode %s: %w", field, err)
		}
		if !e.Done || ts.After(now) {
			continue
		}
		var value any
		if len(e.Value) > 0 {
			if err := json.Unmarshal(e.Value, &value); err != nil {
				return nil, fmt.Errorf("redisqueue: drain: decode value %s: %w", field, err)
			}
		}
		drained = append(drained, future.Entry{Timestamp: ts, Done: true, Value: value})
		toDelete = append(toDelete, field)
	}

	if len(toDelete) > 0 {
		if err := q.client.HDel(ctx, q.prefix, toDelete...).Err(); err != nil {
			return nil, fmt.Errorf("redisqueue: drain: delete: %w", err)
		}
	}

	sort.Slice(drained, func(i, j int) bool { return drained[i].Timestamp.Before(drained[j].Timestamp) })
	return drained, nil
}

func mustMarshal(e wireEntry) string {
	b, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	return string(b)
}
