package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"kartlobby/config"
	"kartlobby/game"
	"kartlobby/karts"
)

var errNoFreeKart = errors.New("every kart in the catalog is taken")

// kartPicker claims the configured kart and walks the catalog after each
// rejection until one is accepted or every kart has been tried.
type kartPicker struct {
	catalog *karts.Catalog
	kart    string
	tries   int
	err     error
}

func (p *kartPicker) onFrame(s *game.Session) {
	switch s.Phase() {
	case game.PhaseCharacterRejected:
		next, ok := p.catalog.After(p.kart)
		if !ok || p.tries+1 >= p.catalog.Len() {
			p.err = errNoFreeKart
			return
		}
		err := s.SetLocalVehicleSelection(0, next, "")
		if errors.Is(err, game.ErrWrongPhase) {
			// previous retry still in flight
			return
		}
		if err != nil {
			p.err = err
			return
		}
		p.kart = next
		p.tries++

	case game.PhaseCharacterSelect:
		if err := s.RequestReadySetGoPhase(); err != nil {
			p.err = err
		}
	}
}

func runClient(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	catalog, err := loadKarts(cfg, logger)
	if err != nil {
		return err
	}

	kart := cfg.Kart
	if kart == "" {
		first, ok := catalog.After("")
		if !ok {
			return &config.ConfigError{Field: "kart", Message: "client needs a kart or a kart catalog"}
		}
		kart = first
	}

	session := game.NewSession(newHost(cfg, logger), game.Options{
		Nickname: cfg.Name,
		Address:  cfg.Address,
		Port:     cfg.Port,
		Catalog:  catalog,
		Logger:   logger,
	})
	defer session.Close()

	if err := session.SetRole(game.RoleClient); err != nil {
		return err
	}
	if err := session.SetLocalVehicleSelection(0, kart, cfg.KartName); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	picker := &kartPicker{catalog: catalog, kart: kart}
	runner := game.NewRunner(session, game.RunnerOptions{
		FrameRate:      cfg.FrameRate,
		ConnectTimeout: cfg.ConnectTimeout(),
		OnFrame: func(s *game.Session) {
			picker.onFrame(s)
			if picker.err != nil {
				cancel()
			}
		},
		Logger: logger,
	})

	err = runner.Run(ctx)
	if picker.err != nil {
		return picker.err
	}
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("client stopped")
		return nil
	}
	if err != nil {
		return err
	}

	snap := runner.Snapshot()
	logger.Info().
		Stringer("id", snap.LocalID).
		Str("track", snap.Race.Track).
		Int("laps", snap.Race.Laps).
		Int("players", len(snap.Players)).
		Msg("race starting")
	return nil
}
