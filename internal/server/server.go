// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "mybuddy/docs" // swagger docs
	"mybuddy/internal/config"
	"mybuddy/internal/database"
	"mybuddy/internal/featureflags"
	"mybuddy/internal/middleware"
	"mybuddy/internal/models"
	"mybuddy/internal/notifications"
	"mybuddy/internal/repository"
	"mybuddy/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const readinessTimeout = 5 * time.Second

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	reportService  *service.ReportService
	accountService *service.AccountService
}

// NewServerWithDeps creates a Server on an open database. redisClient may be nil,
// which disables the listing cache, rate limits and cross-replica moderation events.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	repos := repository.NewRepos(db)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		userRepo:       repos.Users,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(redisClient),
		featureFlags:   flags,
		reportService:  service.NewReportService(repository.NewTransactor(db), repos.Reports, flags),
		accountService: service.NewAccountService(repos.Users, repos.Tokens),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Registers GET /metrics ahead of the rest of the chain.
	middleware.InitMetrics(app)

	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so browser clients still receive CORS
	// headers on 429 responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.HealthCheck)

	app.Get("/swagger/*", swagger.HandlerDefault)

	reportWindow := time.Duration(s.config.ReportRateWindowSeconds) * time.Second
	app.Post("/post/newsfeed/report/:postId",
		middleware.RateLimit(s.redis, s.config.ReportRateLimit, reportWindow, "report_intake"),
		s.SaveReport)
	app.Get("/post/newsfeed/report", s.GetReports)
	app.Delete("/post/newsfeed/report/:id", s.DeleteReport)

	app.Get("/user/confirm-account", s.ConfirmAccount)

	api := app.Group("/api")
	api.Get("/ws/reports",
		middleware.WebSocketAuthRequired, s.AdminRequired(), upgradeRequired,
		s.ModerationFeedHandler())

	admin := api.Group("/admin", middleware.AuthRequired, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/moderators/online", s.GetOnlineModerators)
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "MyBuddy Moderation API",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler keeps the status of fiber errors (404 route, 405 method, body
// limits) and reports anything else as 500.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return models.RespondWithError(c, fe.Code, &models.AppError{Message: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// HealthCheck is a legacy alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis answer a ping.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the moderation feed to Redis and serves HTTP until Shutdown.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	s.app = s.App()

	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		middleware.Logger.Error("moderation feed wiring failed", slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("http shutdown failed", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("moderation hub shutdown failed", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("closing database failed", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("closing redis failed", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
