package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mybuddy/internal/models"
	"mybuddy/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// CheckRateLimit counts one hit for id on resource and reports whether it is within limit for the window.
// Rate limiting is disabled until InitMiddleware runs and when the configured
// environment is "test" or "development".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	switch appEnv {
	case "", "test", "development":
		return true, nil
	}
	if limit <= 0 {
		return true, nil
	}
	if rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		observability.RedisErrors.WithLabelValues("incr").Inc()
		return false, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			observability.RedisErrors.WithLabelValues("expire").Inc()
		}
	}
	return cnt <= int64(limit), nil
}

// RateLimit returns a fail-open Fiber middleware enforcing limit requests per window.
// Callers are keyed by c.Locals("userID") when authenticated, otherwise by remote IP.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		} else {
			id = "ip:" + c.IP()
		}

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		allowed, err := CheckRateLimit(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit fail-closed",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
