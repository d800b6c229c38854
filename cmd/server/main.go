// Command server runs the MyBuddy moderation API.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mybuddy/internal/bootstrap"
	"mybuddy/internal/config"
	"mybuddy/internal/middleware"
	"mybuddy/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title MyBuddy Moderation API
// @version 1.0
// @description Report intake, moderation review and account confirmation for the MyBuddy newsfeed.

// @contact.name API Support
// @contact.email support@mybuddy.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := bootstrap.InitObservability(cfg, version)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	middleware.InitMiddleware(cfg)

	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
