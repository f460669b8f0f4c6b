// Package control is the operator HTTP API of a running lobby host.
package control

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"kartlobby/game"
)

const requestTimeout = 5 * time.Second

// Lobby is the part of game.Runner the API needs.
type Lobby interface {
	Snapshot() game.Snapshot
	Do(ctx context.Context, fn func(*game.Session) error) error
}

// New builds the API. /metrics is served only when gatherer is set.
func New(lobby Lobby, gatherer prometheus.Gatherer, logger zerolog.Logger) *fiber.App {
	logger = logger.With().Str("component", "control").Logger()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	do := func(c *fiber.Ctx, what string, fn func(*game.Session) error) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()

		if err := lobby.Do(ctx, fn); err != nil {
			logger.Warn().Err(err).Str("op", what).Msg("control request failed")
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		logger.Info().Str("op", what).Msg("control request")
		return c.JSON(lobby.Snapshot())
	}

	app.Get("/status", func(c *fiber.Ctx) error {
		snap := lobby.Snapshot()
		return c.JSON(fiber.Map{
			"session":  snap.SessionID,
			"role":     snap.Role,
			"phase":    snap.Phase,
			"capacity": snap.Capacity,
			"players":  len(snap.Players),
			"race":     snap.Race,
			"barrier":  snap.Barrier,
			"error":    snap.Error,
		})
	})

	app.Get("/players", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"players": lobby.Snapshot().Players,
		})
	})

	app.Post("/lobby/close", func(c *fiber.Ctx) error {
		return do(c, "close lobby", (*game.Session).RequestCharacterSelectPhase)
	})

	app.Post("/session/start", func(c *fiber.Ctx) error {
		return do(c, "start", (*game.Session).RequestReadySetGoPhase)
	})

	app.Post("/session/sync", func(c *fiber.Ctx) error {
		return do(c, "sync", (*game.Session).RequestRaceDataSync)
	})

	app.Post("/track", func(c *fiber.Ctx) error {
		type Req struct {
			Name string `json:"name"`
			Laps int    `json:"laps"`
		}

		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		return do(c, "track", func(s *game.Session) error {
			race := s.Race()
			race.Track = req.Name
			if req.Laps != 0 {
				race.Laps = req.Laps
			}
			return s.SetRace(race)
		})
	})

	app.Post("/kick", func(c *fiber.Ctx) error {
		type Req struct {
			ID *int `json:"id"`
		}

		var req Req
		if err := c.BodyParser(&req); err != nil || req.ID == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
		if *req.ID < 0 || *req.ID >= game.MaxPeers {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": game.ErrUnknownPeer.Error()})
		}
		return do(c, "kick", func(s *game.Session) error {
			return s.Kick(game.Identity(*req.ID))
		})
	})

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return app
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrWrongPhase), errors.Is(err, game.ErrWrongRole):
		return fiber.StatusConflict
	case errors.Is(err, game.ErrUnknownPeer):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrInvalidRace):
		return fiber.StatusBadRequest
	case errors.Is(err, game.ErrClosed):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
