package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "KARTLOBBY_"

// Load overlays the TOML file at path onto cfg. Keys kartlobby does not
// know are an error.
func Load(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadEnv reads the given .env files, skipping missing ones, and then
// overlays KARTLOBBY_* variables onto cfg. Variables already set in the
// process environment win over .env values.
func LoadEnv(cfg *Config, files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if v := env("ROLE"); v != "" {
		cfg.Role = v
	}
	if v := env("NAME"); v != "" {
		cfg.Name = v
	}
	if v := env("ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := env("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := env("KART"); v != "" {
		cfg.Kart = v
	}
	if v := env("KART_NAME"); v != "" {
		cfg.KartName = v
	}
	if v := env("KARTS_DIR"); v != "" {
		cfg.KartsDir = v
	}
	if v := env("TRACK"); v != "" {
		cfg.Track = v
	}
	if v := env("CONTROL_ADDR"); v != "" {
		cfg.ControlAddr = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := env("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := env("ICE_SERVERS"); v != "" {
		cfg.ICEServers = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &cfg.Port},
		{"CAPACITY", &cfg.Capacity},
		{"FRAME_RATE", &cfg.FrameRate},
		{"CONNECT_TIMEOUT_SEC", &cfg.ConnectTimeoutSec},
		{"LAPS", &cfg.Laps},
	}
	for _, i := range ints {
		if err := envInt(i.key, i.dst); err != nil {
			return err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"AUTO_START", &cfg.AutoStart},
		{"METRICS", &cfg.Metrics},
	}
	for _, b := range bools {
		if err := envBool(b.key, b.dst); err != nil {
			return err
		}
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func envInt(key string, dst *int) error {
	v := env(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &ConfigError{Field: envPrefix + key, Value: v, Message: "not an integer"}
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := env(key)
	if v == "" {
		return nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		return &ConfigError{Field: envPrefix + key, Value: v, Message: "not a boolean"}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
