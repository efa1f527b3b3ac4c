package redis

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"strconv"
	"time"
)

const (
	DefaultPrefix   = "userfire"
	maxWatchRetries = 10
	maxSignals      = 100
)

// RedisJobQueue keeps each envelope in a hash and tracks its position with
// per-category lists and sorted sets:
//
//	{prefix}:{category}:pending   list of claimable ids, head first
//	{prefix}:{category}:delayed   zset of retrying ids scored by available_at
//	{prefix}:{category}:leases    zset of in-flight ids scored by lease expiry
//	{prefix}:{category}:completed zset of completed ids scored by completed_at
//	{prefix}:{category}:dead      list of dead-lettered ids
//	{prefix}:{category}:signal    wake-up tokens for blocked dequeuers
//	{prefix}:job:{id}             envelope hash
type RedisJobQueue struct {
	client redis.UniversalClient
	cfg    queue.Config
	prefix string
}

type Option func(*RedisJobQueue)

func WithPrefix(prefix string) Option {
	return func(q *RedisJobQueue) {
		q.prefix = prefix
	}
}

func NewRedisJobQueue(client redis.UniversalClient, cfg queue.Config, opts ...Option) *RedisJobQueue {
	q := &RedisJobQueue{
		client: client,
		cfg:    cfg.WithDefaults(),
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisJobQueue) key(category types.Category, kind string) string {
	return fmt.Sprintf("%s:%s:%s", q.prefix, category, kind)
}

func (q *RedisJobQueue) jobPrefix() string {
	return q.prefix + ":job:"
}

func (q *RedisJobQueue) jobKey(id string) string {
	return q.jobPrefix() + id
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, category types.Category, name string, payload any) (string, error) {
	if err := queue.ValidateEnqueue(category, name); err != nil {
		return "", err
	}
	raw, err := queue.EncodePayload(payload)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now().UnixMilli()
	signal := q.key(category, "signal")
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.jobKey(id), map[string]any{
			"id":           id,
			"category":     string(category),
			"name":         name,
			"payload":      string(raw),
			"state":        string(state.StatusPending),
			"attempt":      0,
			"enqueued_at":  now,
			"available_at": now,
		})
		p.RPush(ctx, q.key(category, "pending"), id)
		p.RPush(ctx, signal, id)
		p.LTrim(ctx, signal, -maxSignals, -1)
		return nil
	})
	if err != nil {
		return "", queue.Unavailable("enqueue", err)
	}
	return id, nil
}

func (q *RedisJobQueue) Dequeue(ctx context.Context, category types.Category) (*types.Envelope, error) {
	if err := queue.ValidateCategory(category); err != nil {
		return nil, err
	}
	// BLPOP cannot block for less than a second.
	wait := q.cfg.PollInterval
	if wait < time.Second {
		wait = time.Second
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env, err := q.claim(ctx, category)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, queue.Unavailable("dequeue", err)
		}
		if env != nil {
			return env, nil
		}

		err = q.client.BLPop(ctx, wait, q.key(category, "signal")).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, queue.Unavailable("dequeue", err)
		}
	}
}

func (q *RedisJobQueue) claim(ctx context.Context, category types.Category) (*types.Envelope, error) {
	keys := []string{
		q.key(category, "pending"),
		q.key(category, "leases"),
		q.key(category, "delayed"),
	}
	res, err := claimScript.Run(ctx, q.client, keys,
		time.Now().UnixMilli(),
		q.jobPrefix(),
		q.cfg.LeaseTimeout.Milliseconds(),
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fields, err := pairsToMap(res)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(fields)
}

func (q *RedisJobQueue) Ack(ctx context.Context, id string, lease int) error {
	key := q.jobKey(id)
	err := q.watch(ctx, key, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return queue.ErrJobNotFound
		}
		current := state.JobStatus(fields["state"])
		if current.IsTerminal() {
			return nil
		}
		attempt, err := parseAttempt(fields)
		if err != nil {
			return err
		}
		if err := queue.CheckLease(current, attempt, lease); err != nil {
			return err
		}
		category := types.Category(fields["category"])
		now := time.Now().UnixMilli()
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, "state", string(state.StatusCompleted), "completed_at", now)
			p.HDel(ctx, key, "lease_expires_at")
			p.ZRem(ctx, q.key(category, "leases"), id)
			p.LRem(ctx, q.key(category, "pending"), 0, id)
			p.ZAdd(ctx, q.key(category, "completed"), redis.Z{Score: float64(now), Member: id})
			return nil
		})
		return err
	})
	return q.wrap("ack", err)
}

func (q *RedisJobQueue) Nack(ctx context.Context, id string, lease int, cause error) (state.JobStatus, error) {
	key := q.jobKey(id)
	var status state.JobStatus
	err := q.watch(ctx, key, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return queue.ErrJobNotFound
		}
		status = state.JobStatus(fields["state"])
		if status.IsTerminal() {
			return nil
		}
		attempt, err := parseAttempt(fields)
		if err != nil {
			return err
		}
		if err := queue.CheckLease(status, attempt, lease); err != nil {
			return err
		}

		category := types.Category(fields["category"])
		lastError := queue.TruncateError(cause)
		now := time.Now()

		if q.cfg.Retryable(category, attempt) {
			status = state.StatusFailedRetryable
		} else {
			status = state.StatusFailedTerminal
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.ZRem(ctx, q.key(category, "leases"), id)
			p.HDel(ctx, key, "lease_expires_at")
			if status == state.StatusFailedRetryable {
				availableAt := now.Add(q.cfg.Backoff(attempt)).UnixMilli()
				p.HSet(ctx, key, "state", string(status), "available_at", availableAt, "last_error", lastError)
				p.ZAdd(ctx, q.key(category, "delayed"), redis.Z{Score: float64(availableAt), Member: id})
				return nil
			}
			p.HSet(ctx, key, "state", string(status), "last_error", lastError, "failed_at", now.UnixMilli())
			p.RPush(ctx, q.key(category, "dead"), id)
			return nil
		})
		return err
	})
	if err != nil {
		return status, q.wrap("nack", err)
	}
	return status, nil
}

// watch runs fn under optimistic locking on key, retrying on contention.
func (q *RedisJobQueue) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := q.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func (q *RedisJobQueue) wrap(op string, err error) error {
	if err == nil || errors.Is(err, queue.ErrJobNotFound) || errors.Is(err, queue.ErrNotInFlight) || errors.Is(err, queue.ErrLeaseLost) {
		return err
	}
	return queue.Unavailable(op, err)
}

func (q *RedisJobQueue) Stats(ctx context.Context, category types.Category) (types.QueueStats, error) {
	stats := types.QueueStats{Category: category}
	if err := queue.ValidateCategory(category); err != nil {
		return stats, err
	}
	var (
		pending   *redis.IntCmd
		inFlight  *redis.IntCmd
		retrying  *redis.IntCmd
		completed *redis.IntCmd
		dead      *redis.IntCmd
	)
	_, err := q.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		pending = p.LLen(ctx, q.key(category, "pending"))
		inFlight = p.ZCard(ctx, q.key(category, "leases"))
		retrying = p.ZCard(ctx, q.key(category, "delayed"))
		completed = p.ZCard(ctx, q.key(category, "completed"))
		dead = p.LLen(ctx, q.key(category, "dead"))
		return nil
	})
	if err != nil {
		return stats, queue.Unavailable("stats", err)
	}
	stats.Pending = pending.Val()
	stats.InFlight = inFlight.Val()
	stats.Retrying = retrying.Val()
	stats.Completed = completed.Val()
	stats.Dead = dead.Val()
	return stats, nil
}

func (q *RedisJobQueue) DeadLetters(ctx context.Context, category types.Category, limit, offset int) ([]types.DeadLetter, int, error) {
	if err := queue.ValidateCategory(category); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	deadKey := q.key(category, "dead")
	total, err := q.client.LLen(ctx, deadKey).Result()
	if err != nil {
		return nil, 0, queue.Unavailable("dead letters", err)
	}
	ids, err := q.client.LRange(ctx, deadKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, queue.Unavailable("dead letters", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = q.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, q.jobKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, 0, queue.Unavailable("dead letters", err)
	}

	letters := make([]types.DeadLetter, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		env, err := decodeEnvelope(fields)
		if err != nil {
			return nil, 0, err
		}
		letters = append(letters, types.DeadLetter{
			ID:         env.ID,
			Category:   env.Category,
			Name:       env.Name,
			Payload:    env.Payload,
			Attempts:   env.Attempt,
			LastError:  fields["last_error"],
			EnqueuedAt: env.EnqueuedAt,
			FailedAt:   parseMillis(fields["failed_at"]),
		})
	}
	return letters, int(total), nil
}

func (q *RedisJobQueue) RecoverExpiredLeases(ctx context.Context) (int, error) {
	total := 0
	now := time.Now().UnixMilli()
	for _, category := range types.AllCategories {
		keys := []string{
			q.key(category, "pending"),
			q.key(category, "leases"),
			q.key(category, "signal"),
		}
		n, err := recoverScript.Run(ctx, q.client, keys, now, q.jobPrefix()).Int()
		if err != nil {
			return total, queue.Unavailable("recover leases", err)
		}
		total += n
	}
	return total, nil
}

func (q *RedisJobQueue) PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	purged := 0
	maxScore := "(" + strconv.FormatInt(olderThan.UnixMilli(), 10)
	for _, category := range types.AllCategories {
		completedKey := q.key(category, "completed")
		ids, err := q.client.ZRangeByScore(ctx, completedKey, &redis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
		if err != nil {
			return purged, queue.Unavailable("purge", err)
		}
		if len(ids) == 0 {
			continue
		}
		_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, id := range ids {
				p.Del(ctx, q.jobKey(id))
				p.ZRem(ctx, completedKey, id)
			}
			return nil
		})
		if err != nil {
			return purged, queue.Unavailable("purge", err)
		}
		purged += len(ids)
	}
	return purged, nil
}

// Close is a no-op. The client is owned by the caller.
func (q *RedisJobQueue) Close() error {
	return nil
}

var _ queue.Backend = (*RedisJobQueue)(nil)
