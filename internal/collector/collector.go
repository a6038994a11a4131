// Package collector is the self-hosted ingestion endpoint: a small fiber
// service that accepts pixel payloads on the same routes the hosted
// backend exposes, so a site can point the pixel at its own box.
package collector

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"

	"rankitopixel/internal/config"
	"rankitopixel/internal/events"
	"rankitopixel/internal/transport"
)

const (
	msgEventAccepted  = "Event accepted"
	errInvalidRequest = "Invalid request"
	errInvalidToken   = "Invalid token"

	recentEventLimit = 10
)

// Collector receives pixel traffic and keeps a short in-memory tail of it
// for the debug endpoint.
type Collector struct {
	cfg    *config.Config
	logger *slog.Logger

	mu     sync.Mutex
	recent []events.Payload
}

// New creates a collector.
func New(cfg *config.Config, logger *slog.Logger) *Collector {
	return &Collector{cfg: cfg, logger: logger}
}

// App builds the fiber application with all routes registered.
func (c *Collector) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               c.cfg.AppName,
		DisableStartupMessage: true,
	})

	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})
	app.Post("/functions/v1/api-track", c.trackHandler)
	app.Post("/functions/v1/track-rank-rent-conversion", c.conversionHandler)

	// The event tail is a development aid and stays off production boxes.
	if !c.cfg.IsProduction() {
		app.Get("/debug/events", c.debugEventsHandler)
	}

	return app
}

// trackHandler ingests one event payload. Beacon-sent exits arrive on the
// same route with a text/plain content type, so the body is decoded
// manually rather than content-type negotiated.
func (c *Collector) trackHandler(ctx *fiber.Ctx) error {
	if !c.validToken(ctx) {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error": errInvalidToken,
		})
	}

	var payload events.Payload
	if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
		c.logger.Debug("failed to parse event payload", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
		})
	}
	if payload.EventType == "" || payload.SiteName == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
		})
	}

	c.remember(payload)
	c.logger.Info("collected event",
		slog.String("event_type", string(payload.EventType)),
		slog.String("site", payload.SiteName),
		slog.String("session_id", payload.SessionID))

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgEventAccepted,
		"status":  http.StatusAccepted,
	})
}

// conversionHandler ingests one conversion payload.
func (c *Collector) conversionHandler(ctx *fiber.Ctx) error {
	if !c.validToken(ctx) {
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error": errInvalidToken,
		})
	}

	var payload transport.ConversionPayload
	if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
		c.logger.Debug("failed to parse conversion payload", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
		})
	}
	if payload.SiteName == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
		})
	}

	c.logger.Info("collected conversion",
		slog.String("site", payload.SiteName),
		slog.String("event_type", payload.EventType),
		slog.String("cta_text", payload.CTAText))

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgEventAccepted,
		"status":  http.StatusAccepted,
	})
}

// debugEventsHandler returns the tail of recently collected events.
func (c *Collector) debugEventsHandler(ctx *fiber.Ctx) error {
	c.mu.Lock()
	out := make([]events.Payload, len(c.recent))
	copy(out, c.recent)
	c.mu.Unlock()

	return ctx.JSON(fiber.Map{
		"events": out,
		"count":  len(out),
	})
}

// validToken checks the site token carried as a query parameter. The
// pixel appends it to every request. An empty configured token disables
// the check.
func (c *Collector) validToken(ctx *fiber.Ctx) bool {
	return c.cfg.Token == "" || ctx.Query("token") == c.cfg.Token
}

func (c *Collector) remember(payload events.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent = append(c.recent, payload)
	if len(c.recent) > recentEventLimit {
		c.recent = c.recent[len(c.recent)-recentEventLimit:]
	}
}
