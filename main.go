package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"kartlobby/config"
	"kartlobby/logging"
	"kartlobby/transport"
	webrtc_host "kartlobby/webrtc"
)

const usage = `kartlobby runs the pre-race lobby of a networked kart race.

Usage:
  kartlobby [server|client] [flags]

Flags:
`

// loadConfig layers defaults, the TOML file, the environment and finally
// flags that were set on the command line.
func loadConfig(args []string) (config.Config, error) {
	cfg := config.Default()

	fs := flag.NewFlagSet("kartlobby", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	configPath := fs.StringP("config", "c", "", "TOML config file")
	envFile := fs.String("env-file", ".env", "dotenv file read before KARTLOBBY_* variables")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")

	flags := cfg
	fs.StringVar(&flags.Role, "role", cfg.Role, "server or client")
	fs.StringVarP(&flags.Name, "name", "n", cfg.Name, "player nickname")
	fs.StringVarP(&flags.Address, "address", "a", cfg.Address, "host address to join")
	fs.IntVarP(&flags.Port, "port", "p", cfg.Port, "lobby port")
	fs.StringVarP(&flags.Transport, "transport", "t", cfg.Transport, "websocket or webrtc")
	fs.IntVar(&flags.Capacity, "capacity", cfg.Capacity, "remote players the lobby waits for")
	fs.IntVar(&flags.FrameRate, "frame-rate", cfg.FrameRate, "session updates per second")
	fs.IntVar(&flags.ConnectTimeoutSec, "connect-timeout", cfg.ConnectTimeoutSec, "seconds a client waits for the host, 0 waits forever")
	fs.BoolVar(&flags.AutoStart, "auto-start", cfg.AutoStart, "start the countdown as soon as character select opens")
	fs.StringVarP(&flags.Kart, "kart", "k", cfg.Kart, "kart to claim")
	fs.StringVar(&flags.KartName, "kart-name", cfg.KartName, "display name for the claimed kart")
	fs.StringVar(&flags.KartsDir, "karts", cfg.KartsDir, "kart catalog directory")
	fs.StringVar(&flags.Track, "track", cfg.Track, "track announced to players")
	fs.IntVar(&flags.Laps, "laps", cfg.Laps, "lap count announced to players")
	fs.StringVar(&flags.ControlAddr, "control-addr", cfg.ControlAddr, "control API address, empty disables it")
	fs.BoolVar(&flags.Metrics, "metrics", cfg.Metrics, "serve prometheus metrics on the control API")
	fs.StringVar(&flags.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error")
	fs.StringVar(&flags.LogFormat, "log-format", cfg.LogFormat, "console or json")
	fs.StringVar(&flags.LogFile, "log-file", cfg.LogFile, "also write JSON logs to this file")
	fs.StringSliceVar(&flags.ICEServers, "ice-server", cfg.ICEServers, "ICE server URL, repeatable")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if *showVersion {
		fmt.Println("kartlobby", config.Version)
		os.Exit(0)
	}

	if *configPath != "" {
		if err := config.Load(*configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := config.LoadEnv(&cfg, *envFile); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "role":
			cfg.Role = flags.Role
		case "name":
			cfg.Name = flags.Name
		case "address":
			cfg.Address = flags.Address
		case "port":
			cfg.Port = flags.Port
		case "transport":
			cfg.Transport = flags.Transport
		case "capacity":
			cfg.Capacity = flags.Capacity
		case "frame-rate":
			cfg.FrameRate = flags.FrameRate
		case "connect-timeout":
			cfg.ConnectTimeoutSec = flags.ConnectTimeoutSec
		case "auto-start":
			cfg.AutoStart = flags.AutoStart
		case "kart":
			cfg.Kart = flags.Kart
		case "kart-name":
			cfg.KartName = flags.KartName
		case "karts":
			cfg.KartsDir = flags.KartsDir
		case "track":
			cfg.Track = flags.Track
		case "laps":
			cfg.Laps = flags.Laps
		case "control-addr":
			cfg.ControlAddr = flags.ControlAddr
		case "metrics":
			cfg.Metrics = flags.Metrics
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		case "log-file":
			cfg.LogFile = flags.LogFile
		case "ice-server":
			cfg.ICEServers = flags.ICEServers
		}
	})

	// A positional mode beats --role.
	if rest := fs.Args(); len(rest) > 0 {
		cfg.Role = rest[0]
	}
	return cfg, cfg.Validate()
}

func newHost(cfg config.Config, logger zerolog.Logger) transport.Host {
	if cfg.Transport == config.TransportWebRTC {
		return webrtc_host.NewHost(webrtc_host.Options{
			ICEServers:      cfg.ICEServers,
			IncludeLoopback: cfg.Address == "127.0.0.1" || cfg.Address == "localhost",
			Logger:          logger,
		})
	}
	return transport.NewWebsocketHost(logger)
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{
		App:    "kartlobby-" + cfg.Role,
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", config.Version).Str("role", cfg.Role).Str("transport", cfg.Transport).Msg("kartlobby starting")

	if cfg.Role == "server" {
		return runServer(ctx, cfg, logger)
	}
	return runClient(ctx, cfg, logger)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "kartlobby:", err)
		os.Exit(1)
	}
}
