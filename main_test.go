package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartlobby/config"
	"kartlobby/game"
	"kartlobby/karts"
	"kartlobby/transport"
)

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kartlobby.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"from-file\"\nport = 3000\nlaps = 7\n"), 0o644))
	t.Setenv("KARTLOBBY_NAME", "from-env")

	cfg, err := loadConfig([]string{
		"--config", path,
		"--env-file", filepath.Join(dir, "missing.env"),
		"--port", "4000",
		"client",
	})
	require.NoError(t, err)

	assert.Equal(t, "client", cfg.Role)
	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, 7, cfg.Laps)
	assert.Equal(t, config.TransportWebsocket, cfg.Transport)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := loadConfig([]string{"--env-file", filepath.Join(t.TempDir(), "none"), "--transport", "carrier-pigeon"})
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "transport", cfgErr.Field)
}

func lobbyWithHostKart(t *testing.T, catalog *karts.Catalog, hostKart string) (*game.Session, *game.Session) {
	t.Helper()
	net := transport.NewNetwork()

	host := game.NewSession(net.Host("host"), game.Options{
		Nickname: "host",
		Port:     2759,
		Capacity: 1,
		Track:    "lighthouse",
		Laps:     3,
		Catalog:  catalog,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, host.SetRole(game.RoleServer))
	require.NoError(t, host.SetLocalVehicleSelection(0, hostKart, ""))
	require.NoError(t, host.BeginNetworking())
	t.Cleanup(func() { host.Close() })

	client := game.NewSession(net.Host("guest"), game.Options{
		Nickname: "guest",
		Address:  "host",
		Port:     2759,
		Catalog:  catalog,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, client.SetRole(game.RoleClient))
	require.NoError(t, client.SetLocalVehicleSelection(0, hostKart, ""))
	require.NoError(t, client.BeginNetworking())
	t.Cleanup(func() { client.Close() })
	return host, client
}

func TestKartPickerRetriesAndReadies(t *testing.T) {
	catalog := karts.NewCatalog("adiumy", "beastie", "tux")
	host, client := lobbyWithHostKart(t, catalog, "adiumy")
	picker := &kartPicker{catalog: catalog, kart: "adiumy"}

	for i := 0; i < 20; i++ {
		require.NoError(t, host.Update(16*time.Millisecond))
		require.NoError(t, client.Update(16*time.Millisecond))
		picker.onFrame(client)
	}

	require.NoError(t, picker.err)
	sel, ok := client.Selection(client.LocalIdentity())
	require.True(t, ok)
	assert.Equal(t, "beastie", sel.Vehicle)
	assert.Equal(t, 1, picker.tries)
	assert.Equal(t, game.PhaseReadySetGoBarrier, client.Phase())
	assert.Equal(t, game.PhaseCharacterSelect, host.Phase())
}

func TestKartPickerGivesUp(t *testing.T) {
	catalog := karts.NewCatalog("tux")
	host, client := lobbyWithHostKart(t, catalog, "tux")
	picker := &kartPicker{catalog: catalog, kart: "tux"}

	for i := 0; i < 10 && picker.err == nil; i++ {
		require.NoError(t, host.Update(16*time.Millisecond))
		require.NoError(t, client.Update(16*time.Millisecond))
		picker.onFrame(client)
	}

	assert.ErrorIs(t, picker.err, errNoFreeKart)
	assert.Equal(t, game.PhaseCharacterRejected, client.Phase())
}
