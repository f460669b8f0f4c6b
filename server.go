package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"kartlobby/config"
	"kartlobby/control"
	"kartlobby/game"
	"kartlobby/karts"
)

// loadKarts returns nil, which accepts every kart, when no directory is
// configured.
func loadKarts(cfg config.Config, logger zerolog.Logger) (*karts.Catalog, error) {
	if cfg.KartsDir == "" {
		return nil, nil
	}
	return karts.LoadCatalog(cfg.KartsDir, logger)
}

func startControl(addr string, app *fiber.App, logger zerolog.Logger) func() {
	go func() {
		logger.Info().Str("addr", addr).Msg("control API running")
		if err := app.Listen(addr); err != nil {
			logger.Error().Err(err).Msg("control API stopped")
		}
	}()
	return func() {
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			logger.Warn().Err(err).Msg("control API shutdown")
		}
	}
}

func runServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	catalog, err := loadKarts(cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	session := game.NewSession(newHost(cfg, logger), game.Options{
		Nickname: cfg.Name,
		Port:     cfg.Port,
		Capacity: cfg.Capacity,
		Track:    cfg.Track,
		Laps:     cfg.Laps,
		Catalog:  catalog,
		Metrics:  game.NewMetrics(reg),
		Logger:   logger,
	})
	defer session.Close()

	if err := session.SetRole(game.RoleServer); err != nil {
		return err
	}
	if cfg.Kart != "" {
		if err := session.SetLocalVehicleSelection(0, cfg.Kart, cfg.KartName); err != nil {
			return err
		}
	}

	runner := game.NewRunner(session, game.RunnerOptions{
		FrameRate: cfg.FrameRate,
		AutoStart: cfg.AutoStart,
		Logger:    logger,
	})

	if cfg.ControlAddr != "" {
		var gatherer prometheus.Gatherer
		if cfg.Metrics {
			gatherer = reg
		}
		stop := startControl(cfg.ControlAddr, control.New(runner, gatherer, logger), logger)
		defer stop()
	}

	err = runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("server stopped")
		return nil
	}
	if err != nil {
		return err
	}

	snap := runner.Snapshot()
	logger.Info().
		Str("track", snap.Race.Track).
		Int("laps", snap.Race.Laps).
		Int("players", len(snap.Players)).
		Msg("lobby finished, race handed off")

	// The control API keeps reporting the final roster until shutdown.
	<-ctx.Done()
	return nil
}
