package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkedreach/backend/internal/models"
)

// hitScript applies one attempt to the window hash in KEYS[1].
// ARGV: now (unix ms), limit, interval (ms), ttl (ms).
// Returns {allowed, count, window_start}.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local start = tonumber(redis.call('HGET', KEYS[1], 'window_start') or '0')

if count == 0 or start < now - interval then
  redis.call('HSET', KEYS[1], 'count', 1, 'window_start', ARGV[1])
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
  return {1, 1, now}
end
if count >= limit then
  return {0, count, start}
end
redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {1, count + 1, start}
`)

// RedisStore keeps each window in a hash updated by a single script call.
// Windows expire through key TTLs, so DeleteBefore is a no-op.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(key Key) string {
	return fmt.Sprintf("ratelimit:%s:%s", key.Action, key.UserID)
}

func (s *RedisStore) Hit(ctx context.Context, key Key, now time.Time, cfg Config) (Result, error) {
	ttl := max(s.ttl, cfg.Interval)
	vals, err := hitScript.Run(ctx, s.rdb, []string{redisKey(key)},
		now.UnixMilli(), cfg.Limit, cfg.Interval.Milliseconds(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", vals)
	}

	count := int(vals[1])
	return Result{
		Success:   vals[0] == 1,
		Remaining: max(0, cfg.Limit-count),
		ResetAt:   time.UnixMilli(vals[2]).Add(cfg.Interval),
		Limit:     cfg.Limit,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*models.RateLimitRecord, error) {
	vals, err := s.rdb.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		return nil, err
	}
	return parseRecord(key, vals)
}

func (s *RedisStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func parseRecord(key Key, vals map[string]string) (*models.RateLimitRecord, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	count, err := strconv.Atoi(vals["count"])
	if err != nil {
		return nil, fmt.Errorf("parse count: %w", err)
	}
	ms, err := strconv.ParseInt(vals["window_start"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse window_start: %w", err)
	}
	return &models.RateLimitRecord{
		Key:         key.Action,
		UserID:      key.UserID,
		Count:       count,
		WindowStart: time.UnixMilli(ms),
	}, nil
}
