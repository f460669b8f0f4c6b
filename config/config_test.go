package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad role", func(c *Config) { c.Role = "referee" }, "role"},
		{"port zero", func(c *Config) { c.Port = 0 }, "port"},
		{"port high", func(c *Config) { c.Port = 70000 }, "port"},
		{"bad transport", func(c *Config) { c.Transport = "carrier-pigeon" }, "transport"},
		{"frame rate", func(c *Config) { c.FrameRate = 0 }, "frame_rate"},
		{"negative timeout", func(c *Config) { c.ConnectTimeoutSec = -1 }, "connect_timeout_sec"},
		{"capacity zero", func(c *Config) { c.Capacity = 0 }, "capacity"},
		{"capacity too high", func(c *Config) { c.Capacity = 255 }, "capacity"},
		{"no laps", func(c *Config) { c.Laps = 0 }, "laps"},
		{"client without address", func(c *Config) { c.Role = "client"; c.Address = "" }, "address"},
		{"webrtc without ice", func(c *Config) { c.Transport = TransportWebRTC; c.ICEServers = nil }, "ice_servers"},
		{"client ignores capacity", func(c *Config) { c.Role = "client"; c.Capacity = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantField, cerr.Field)
		})
	}
}

func TestConfigErrorFormat(t *testing.T) {
	err := &ConfigError{Field: "port", Value: 99999, Message: "out of range 1-65535"}
	assert.Equal(t, "config: port=99999: out of range 1-65535", err.Error())

	err = &ConfigError{Field: "address", Message: "required for client"}
	assert.Equal(t, "config: address: required for client", err.Error())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kartlobby.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
role = "client"
name = "alice"
port = 3000
kart = "tux"
ice_servers = ["stun:example.org:3478"]
`), 0o644))

	cfg := Default()
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "client", cfg.Role)
	assert.Equal(t, "alice", cfg.Name)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "tux", cfg.Kart)
	assert.Equal(t, []string{"stun:example.org:3478"}, cfg.ICEServers)
	// Untouched keys keep their defaults.
	assert.Equal(t, TransportWebsocket, cfg.Transport)
	assert.Equal(t, 3, cfg.Laps)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kartlobby.toml")
	require.NoError(t, os.WriteFile(path, []byte("prot = 3000\n"), 0o644))

	cfg := Default()
	err := Load(path, &cfg)
	assert.ErrorContains(t, err, "unknown keys prot")
}

func TestLoadMissingFile(t *testing.T) {
	cfg := Default()
	assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.toml"), &cfg))
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("KARTLOBBY_ROLE", "client")
	t.Setenv("KARTLOBBY_PORT", "4000")
	t.Setenv("KARTLOBBY_AUTO_START", "yes")
	t.Setenv("KARTLOBBY_ICE_SERVERS", "stun:a:1, stun:b:2,")

	cfg := Default()
	require.NoError(t, LoadEnv(&cfg, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, "client", cfg.Role)
	assert.Equal(t, 4000, cfg.Port)
	assert.True(t, cfg.AutoStart)
	assert.Equal(t, []string{"stun:a:1", "stun:b:2"}, cfg.ICEServers)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KARTLOBBY_KART=gnu\nKARTLOBBY_LAPS=5\n"), 0o644))
	t.Setenv("KARTLOBBY_KART", "")
	t.Setenv("KARTLOBBY_LAPS", "")
	os.Unsetenv("KARTLOBBY_KART")
	os.Unsetenv("KARTLOBBY_LAPS")

	cfg := Default()
	require.NoError(t, LoadEnv(&cfg, path))

	assert.Equal(t, "gnu", cfg.Kart)
	assert.Equal(t, 5, cfg.Laps)
}

func TestLoadEnvBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"KARTLOBBY_PORT", "eighty"},
		{"KARTLOBBY_METRICS", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg := Default()
			var cerr *ConfigError
			require.ErrorAs(t, LoadEnv(&cfg), &cerr)
			assert.Equal(t, tt.key, cerr.Field)
		})
	}
}
