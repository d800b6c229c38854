package database

import (
	"fmt"
	"time"

	"mybuddy/internal/observability"

	"gorm.io/gorm"
)

const queryStartKey = "mybuddy:query_start"

// QueryMetrics is a GORM plugin that records statement latency in
// observability.DatabaseQueryLatency, labelled by operation and table.
type QueryMetrics struct{}

// Name implements gorm.Plugin.
func (*QueryMetrics) Name() string { return "mybuddy:query_metrics" }

// Initialize implements gorm.Plugin.
func (*QueryMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	register := []struct {
		op     string
		before error
		after  error
	}{
		{"create",
			cb.Create().Before("gorm:create").Register("mybuddy:before_create", startTimer),
			cb.Create().After("gorm:create").Register("mybuddy:after_create", observe("create"))},
		{"query",
			cb.Query().Before("gorm:query").Register("mybuddy:before_query", startTimer),
			cb.Query().After("gorm:query").Register("mybuddy:after_query", observe("query"))},
		{"update",
			cb.Update().Before("gorm:update").Register("mybuddy:before_update", startTimer),
			cb.Update().After("gorm:update").Register("mybuddy:after_update", observe("update"))},
		{"delete",
			cb.Delete().Before("gorm:delete").Register("mybuddy:before_delete", startTimer),
			cb.Delete().After("gorm:delete").Register("mybuddy:after_delete", observe("delete"))},
		{"row",
			cb.Row().Before("gorm:row").Register("mybuddy:before_row", startTimer),
			cb.Row().After("gorm:row").Register("mybuddy:after_row", observe("row"))},
		{"raw",
			cb.Raw().Before("gorm:raw").Register("mybuddy:before_raw", startTimer),
			cb.Raw().After("gorm:raw").Register("mybuddy:after_raw", observe("raw"))},
	}
	for _, r := range register {
		if r.before != nil {
			return fmt.Errorf("register %s timer: %w", r.op, r.before)
		}
		if r.after != nil {
			return fmt.Errorf("register %s observer: %w", r.op, r.after)
		}
	}
	return nil
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func observe(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		observability.ObserveQuery(op, db.Statement.Table, start)
	}
}
