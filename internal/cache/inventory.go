package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"mybuddy/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Keys and channels owned by this application.
const (
	ReportsListPrefix = "reports:all:"
	ReportsListGenKey = "reports:gen"
	ModerationChannel = "moderation:reports"
)

// ReportsListTTL bounds how long an unread listing generation lingers.
const ReportsListTTL = time.Minute

// ReportsListKey returns the cache key of the current report listing generation.
// ok is false when Redis is disabled or the generation cannot be read, in which
// case the listing should not be cached.
//
// The generation must be read before the listing is loaded: a writer that commits
// afterwards bumps the generation, so a listing loaded before that commit is stored
// under a key no later reader asks for.
func ReportsListKey(ctx context.Context) (key string, ok bool) {
	rdb := GetClient()
	if rdb == nil {
		return "", false
	}
	gen, err := rdb.Get(ctx, ReportsListGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.Logger.WarnContext(ctx, "reading report listing generation failed", slog.String("error", err.Error()))
		return "", false
	}
	return ReportsListPrefix + strconv.FormatInt(gen, 10), true
}

// InvalidateReportsList retires the cached report listing. Call it after the write commits.
func InvalidateReportsList(ctx context.Context) {
	rdb := GetClient()
	if rdb == nil {
		return
	}
	if err := rdb.Incr(ctx, ReportsListGenKey).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "bumping report listing generation failed", slog.String("error", err.Error()))
	}
}
