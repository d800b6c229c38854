package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics registers HTTP request metrics on app and serves them on /metrics.
// The collectors live in the default registry and are shared by every app.
func InitMetrics(app *fiber.App) {
	promOnce.Do(func() {
		prom = fiberprometheus.New("mybuddy-api")
	})
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
}
