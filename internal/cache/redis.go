// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mybuddy/internal/middleware"
	"mybuddy/internal/observability"

	"github.com/redis/go-redis/v9"
)

var (
	mu     sync.RWMutex
	client *redis.Client
)

type metricsHook struct{}

func (metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// NewClient builds a Redis client for addr, which may be host:port or a redis:// URL.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(metricsHook{})
	return rdb, nil
}

// InitRedis connects the package-level client. When Redis is unreachable the
// application keeps running without cache, rate limiting or cross-replica events.
func InitRedis(addr string) {
	rdb, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("Redis disabled: invalid REDIS_URL", slog.String("addr", addr), slog.String("error", err.Error()))
		SetClient(nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("Redis unavailable, continuing without cache", slog.String("error", err.Error()))
		_ = rdb.Close()
		SetClient(nil)
		return
	}

	middleware.Logger.Info("Redis connected successfully")
	SetClient(rdb)
}

// SetClient replaces the package-level client.
func SetClient(rdb *redis.Client) {
	mu.Lock()
	client = rdb
	mu.Unlock()
}

// GetClient returns the current Redis client instance, or nil when Redis is disabled.
func GetClient() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}
