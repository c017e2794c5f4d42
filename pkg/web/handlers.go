// Package web exposes the state of a running transfer over HTTP.
package web

import (
	"log/slog"
	"time"

	"github.com/dukex/flowtransfer/pkg/httpclient"
	"github.com/dukex/flowtransfer/pkg/models"
	"github.com/dukex/flowtransfer/pkg/protocol"
	"github.com/dukex/flowtransfer/pkg/registry"
	"github.com/gofiber/fiber/v3"
)

// RunController is the part of a transfer manager the status API drives.
type RunController interface {
	Progress() models.Progress
	Cancel() bool
	RunID() string
}

// StatsProvider reports HTTP client counters keyed by instance name.
type StatsProvider func() map[string]httpclient.Stats

type StatusHandlers struct {
	logger   *slog.Logger
	runs     RunController
	stats    StatsProvider
	registry *registry.Registry
	started  time.Time
}

func NewStatusHandlers(
	logger *slog.Logger,
	runs RunController,
	stats StatsProvider,
	registry *registry.Registry,
) *StatusHandlers {
	return &StatusHandlers{
		logger:   logger,
		runs:     runs,
		stats:    stats,
		registry: registry,
		started:  time.Now(),
	}
}

type ProgressResponse struct {
	RunID    string          `json:"runId,omitempty"`
	Progress models.Progress `json:"progress"`
}

func (h *StatusHandlers) GetProgress(c fiber.Ctx) error {
	return c.JSON(ProgressResponse{
		RunID:    h.runs.RunID(),
		Progress: h.runs.Progress(),
	})
}

func (h *StatusHandlers) Cancel(c fiber.Ctx) error {
	if !h.runs.Cancel() {
		return conflict(c, "no transfer is running")
	}

	h.logger.Info("Cancellation requested over HTTP", "run_id", h.runs.RunID())

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"runId":     h.runs.RunID(),
		"cancelled": true,
	})
}

func (h *StatusHandlers) GetStats(c fiber.Ctx) error {
	if h.stats == nil {
		return c.JSON(map[string]httpclient.Stats{})
	}

	return c.JSON(h.stats())
}

func (h *StatusHandlers) GetPlugins(c fiber.Ctx) error {
	all := h.registry.GetAll()

	infos := make([]protocol.PluginInfo, 0, len(all))
	for _, p := range all {
		infos = append(infos, p.Info())
	}

	return c.JSON(infos)
}

func (h *StatusHandlers) GetPlugin(c fiber.Ctx) error {
	name := c.Params("name")

	for _, p := range h.registry.GetAll() {
		if p.Info().Name == name {
			return c.JSON(p.Info())
		}
	}

	return notFound(c, "plugin "+name+" is not registered")
}

func (h *StatusHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"run":    h.runs.Progress().Status,
	})
}
