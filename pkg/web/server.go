package web

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/flowtransfer/pkg/registry"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type Server struct {
	logger   *slog.Logger
	runs     RunController
	stats    StatsProvider
	registry *registry.Registry
	app      *fiber.App
}

func NewServer(log *slog.Logger, runs RunController, stats StatsProvider, reg *registry.Registry) *Server {
	return &Server{
		logger:   log.With("module", "status_api"),
		runs:     runs,
		stats:    stats,
		registry: reg,
	}
}

func (s *Server) App() *fiber.App {
	handlers := NewStatusHandlers(s.logger, s.runs, s.stats, s.registry)

	app := fiber.New()
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowtransfer status API")
	})

	app.Get("/progress", handlers.GetProgress)
	app.Post("/cancel", handlers.Cancel)
	app.Get("/stats", handlers.GetStats)
	app.Get("/plugins", handlers.GetPlugins)
	app.Get("/plugins/:name", handlers.GetPlugin)
	app.Get("/health", handlers.HealthCheck)

	return app
}

// Start serves the status API until ctx is done.
func (s *Server) Start(ctx context.Context, port int) error {
	s.app = s.App()

	go func() {
		<-ctx.Done()

		err := s.app.Shutdown()
		if err != nil {
			s.logger.Error("Failed to stop status API", "error", err)
		}
	}()

	s.logger.Info("Status API listening", "port", port)

	return s.app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
