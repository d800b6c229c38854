// Package bootstrap prepares the process-wide runtime shared by the commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mybuddy/internal/cache"
	"mybuddy/internal/config"
	"mybuddy/internal/database"
	"mybuddy/internal/middleware"
	"mybuddy/internal/models"
	"mybuddy/internal/observability"
	"mybuddy/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// Seed, when set, populates demo data after the schema is applied.
	Seed *seed.Options
}

// InitObservability installs the logger and tracer for cfg and returns the tracer shutdown.
func InitObservability(cfg *config.Config, version string) (func(context.Context) error, error) {
	middleware.InitLogger(cfg.Env, cfg.LogLevel)
	return observability.InitTracing(observability.TracingConfig{
		ServiceName:    observability.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
}

// InitRuntime connects to the database (applying the schema policy) and Redis,
// and optionally seeds. The returned Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if err := ensureDevRootAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.Seed != nil {
		if _, err := seed.NewSeeder(db).Seed(ctx, *opts.Seed); err != nil {
			return nil, nil, fmt.Errorf("seed: %w", err)
		}
	}

	return db, rdb, nil
}

// ensureDevRootAdmin makes sure a known, enabled moderator account exists in
// development so the moderation feed can be watched without manual setup.
func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "mybuddy_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@mybuddy.local"
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	var rootID uint
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("username = ?", username).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hashed),
				Enabled:  true,
				IsAdmin:  true,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			if err := tx.Model(&models.User{}).Where("id = ?", root.ID).
				Updates(map[string]any{"is_admin": true, "enabled": true}).Error; err != nil {
				return err
			}
		}
		rootID = root.ID

		// Rows inserted with explicit IDs (seed dumps, fixtures) can leave the
		// sequence behind the table.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(`
				SELECT setval(
					pg_get_serial_sequence('users', 'id'),
					GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1),
					true
				)
			`).Error; err != nil {
				return fmt.Errorf("failed to reset users sequence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "development root admin ensured",
		slog.Uint64("user_id", uint64(rootID)),
		slog.String("username", username),
	)
	return nil
}
