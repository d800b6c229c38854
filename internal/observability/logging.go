// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.Default())
}

// SetLogger replaces the logger used by repository and websocket loggers.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// LoggingConfig defines which types of automated logging are enabled.
type LoggingConfig struct {
	EnableRepoLogging bool
	EnableWSLogging   bool
}

// Config holds the current logging configuration.
var Config = LoggingConfig{
	EnableRepoLogging: true,
	EnableWSLogging:   true,
}

func fieldAttrs(base []any, fields map[string]interface{}) []any {
	for k, v := range fields {
		base = append(base, slog.Any(k, v))
	}
	return base
}

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

func (l *RepoLogger) log(ctx context.Context, operation string, fields map[string]interface{}) {
	if !Config.EnableRepoLogging {
		return
	}
	attrs := fieldAttrs([]any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}, fields)
	logger.Load().DebugContext(ctx, "repository "+operation, attrs...)
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "create", fields)
}

// LogRead logs a repository read operation.
func (l *RepoLogger) LogRead(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "read", fields)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "update", fields)
}

// LogDelete logs a repository delete operation.
func (l *RepoLogger) LogDelete(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "delete", fields)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	if !Config.EnableRepoLogging || err == nil {
		return
	}
	logger.Load().ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// WSLogger provides structured logging for WebSocket operations.
type WSLogger struct {
	hubName string
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName}
}

// LogConnect logs a WebSocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, userID uint) {
	if !Config.EnableWSLogging {
		return
	}
	logger.Load().InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
	)
}

// LogDisconnect logs a WebSocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, reason string) {
	if !Config.EnableWSLogging {
		return
	}
	logger.Load().InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
	)
}

// LogError logs a WebSocket error event.
func (l *WSLogger) LogError(ctx context.Context, userID uint, err error, eventType string) {
	if !Config.EnableWSLogging || err == nil {
		return
	}
	logger.Load().ErrorContext(ctx, "websocket error",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogLifecycle logs a WebSocket hub lifecycle event.
func (l *WSLogger) LogLifecycle(ctx context.Context, event string, fields map[string]interface{}) {
	if !Config.EnableWSLogging {
		return
	}
	attrs := fieldAttrs([]any{
		slog.String("hub", l.hubName),
		slog.String("event", event),
	}, fields)
	logger.Load().InfoContext(ctx, "websocket lifecycle", attrs...)
}
