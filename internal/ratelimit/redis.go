package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tjfontaine/api-explainer/internal/config"
	"github.com/tjfontaine/api-explainer/internal/metrics"
)

// slidingWindow prunes expired calls, then counts and admits atomically.
// Returns {allowed, count, oldest_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  count = count + 1
  allowed = 1
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestMs = now
if oldest[2] then
  oldestMs = tonumber(oldest[2])
end

return {allowed, count, oldestMs}
`)

// Redis is a sliding window limiter shared by every instance pointing at the
// same Redis database.
type Redis struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    Clock
	logger *slog.Logger
}

// NewRedis creates a Redis-backed limiter over an existing client.
func NewRedis(client redis.Scripter, prefix string, limit int, window time.Duration, logger *slog.Logger) *Redis {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
		logger: logger,
	}
}

// NewRedisFromConfig connects to Redis and verifies the connection.
func NewRedisFromConfig(ctx context.Context, cfg config.RateLimitConfig, logger *slog.Logger) (*Redis, *redis.Client, error) {
	opts, err := redisOptions(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("connected to Redis rate limit store",
		slog.String("addr", cfg.Redis.Addr),
		slog.Int("db", cfg.Redis.DB),
	)

	return NewRedis(client, cfg.Redis.Prefix, cfg.Limit, cfg.Window, logger), client, nil
}

// Allow implements Limiter. When Redis is unreachable the call is allowed
// and the store error is returned alongside the decision.
func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := slidingWindow.Run(ctx, r.client,
		[]string{r.prefix + key},
		nowMs, r.window.Milliseconds(), r.limit, member,
	).Int64Slice()
	if err != nil {
		metrics.IncRateLimitStoreError("redis")
		r.logger.WarnContext(ctx, "redis rate limit check failed", slog.String("error", err.Error()))
		return Decision{Allowed: true, Limit: r.limit}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 3 {
		return Decision{Allowed: true, Limit: r.limit}, fmt.Errorf("redis rate limit: unexpected reply %v", res)
	}

	count := int(res[1])
	resetAt := time.UnixMilli(res[2]).Add(r.window)

	d := Decision{
		Allowed: res[0] == 1,
		Limit:   r.limit,
		ResetAt: resetAt,
	}
	if d.Allowed {
		d.Remaining = r.limit - count
	} else {
		d.RetryAfter = retryAfter(resetAt.Sub(now))
	}
	return d, nil
}

// redisOptions accepts either host:port or a redis:// URL in Addr.
func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Addr}
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return opts, nil
}
