package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartlobby/game"
	"kartlobby/transport"
)

// syncLobby runs commands directly on the caller's goroutine.
type syncLobby struct {
	s *game.Session
}

func (l syncLobby) Snapshot() game.Snapshot { return l.s.Snapshot() }

func (l syncLobby) Do(ctx context.Context, fn func(*game.Session) error) error {
	return fn(l.s)
}

func newTestAPI(t *testing.T) (*fiber.App, *game.Session) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := game.NewSession(transport.NewNetwork().Host("host"), game.Options{
		Nickname: "host",
		Port:     2759,
		Capacity: 2,
		Track:    "lighthouse",
		Laps:     3,
		Metrics:  game.NewMetrics(reg),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, s.SetRole(game.RoleServer))
	require.NoError(t, s.BeginNetworking())
	t.Cleanup(func() { s.Close() })
	return New(syncLobby{s}, reg, zerolog.Nop()), s
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	app, s := newTestAPI(t)

	code, body := call(t, app, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AcceptingConnections", body["phase"])
	assert.Equal(t, "server", body["role"])
	assert.Equal(t, s.SessionID().String(), body["session"])
	assert.Equal(t, float64(1), body["players"])
}

func TestPlayers(t *testing.T) {
	app, _ := newTestAPI(t)

	code, body := call(t, app, http.MethodGet, "/players", "")
	require.Equal(t, http.StatusOK, code)
	players, ok := body["players"].([]any)
	require.True(t, ok)
	require.Len(t, players, 1)
	assert.Equal(t, "host", players[0].(map[string]any)["nickname"])
}

func TestLobbyFlow(t *testing.T) {
	app, s := newTestAPI(t)

	code, _ := call(t, app, http.MethodPost, "/session/start", "")
	assert.Equal(t, http.StatusConflict, code)

	code, body := call(t, app, http.MethodPost, "/track", `{"name":"hacienda","laps":5}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, game.RaceInfo{Track: "hacienda", Laps: 5}, s.Race())
	assert.Equal(t, "AcceptingConnections", body["phase"])

	code, body = call(t, app, http.MethodPost, "/lobby/close", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CharacterSelect", body["phase"])

	code, _ = call(t, app, http.MethodPost, "/track", `{"name":"volcano"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = call(t, app, http.MethodPost, "/session/sync", "")
	assert.Equal(t, http.StatusOK, code)

	code, body = call(t, app, http.MethodPost, "/session/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Racing", body["phase"])
}

func TestKick(t *testing.T) {
	app, _ := newTestAPI(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing id", `{}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"out of range", `{"id":300}`, http.StatusNotFound},
		{"unknown peer", `{"id":0}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := call(t, app, http.MethodPost, "/kick", tt.body)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestInvalidTrack(t *testing.T) {
	app, _ := newTestAPI(t)

	code, _ := call(t, app, http.MethodPost, "/track", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMetrics(t *testing.T) {
	app, _ := newTestAPI(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "kartlobby_session_phase_transitions_total")
}
