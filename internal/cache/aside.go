package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"mybuddy/internal/middleware"
	"mybuddy/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Aside loads key into dest, falling back to load on a miss and caching its result for ttl.
// Redis failures never fail the call; load is used instead.
func Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, load func() error) error {
	rdb := GetClient()
	if rdb == nil {
		return load()
	}

	ctx, span := observability.StartRedisSpan(ctx, "aside")
	defer span.End()

	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
		middleware.Logger.WarnContext(ctx, "discarding undecodable cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		span.SetError(err)
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := load(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		span.SetError(err)
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate deletes key, ignoring errors and a disabled client.
func Invalidate(ctx context.Context, key string) {
	if rdb := GetClient(); rdb != nil {
		if err := rdb.Del(ctx, key).Err(); err != nil {
			middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}
