package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{"", zerolog.InfoLevel, false},
		{"  DEBUG ", zerolog.DebugLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"diagnostics", zerolog.TraceLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseLevel(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestNewJSON(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	var buf bytes.Buffer
	logger, closer, err := New(Options{App: "kartlobby", Level: "warn", Format: "json", Out: &buf})
	require.NoError(t, err)
	defer closer()

	logger.Info().Msg("hidden")
	logger.Warn().Str("phase", "Racing").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "kartlobby", line["app"])
	assert.Equal(t, "Racing", line["phase"])
}

func TestNewEnvOverridesLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "debug", Format: "json", Out: &buf})
	require.NoError(t, err)

	logger.Warn().Msg("dropped")
	assert.Empty(t, buf.String())
}

func TestNewFileTee(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "lobby.log")
	var buf bytes.Buffer
	logger, closer, err := New(Options{Format: "json", File: path, Out: &buf})
	require.NoError(t, err)

	logger.Info().Msg("both")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"both"`)
	assert.Contains(t, buf.String(), `"message":"both"`)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
