package slogpretty

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	opts := PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo}}
	log := slog.New(opts.NewPrettyHandler(&buf)).With(slog.String("component", "staking"))

	log.Debug("hidden")
	log.Info("staked tokens", slog.Uint64("amount", 42), slog.Any("error", errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "staked tokens")
	assert.Contains(t, out, `"component": "staking"`)
	assert.Contains(t, out, `"amount": 42`)
	assert.Contains(t, out, `"error": "boom"`)
}

func TestPrettyHandlerGroups(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	opts := PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo}}
	log := slog.New(opts.NewPrettyHandler(&buf)).
		With(slog.String("component", "http")).
		WithGroup("request").
		With(slog.String("method", "POST"))

	log.Info("request served", slog.String("path", "/initialize"), slog.Group("caller", slog.String("owner", "alice")))

	var fields map[string]any
	out := buf.String()
	require.NoError(t, json.Unmarshal([]byte(out[strings.Index(out, "{"):]), &fields))

	assert.Equal(t, "http", fields["component"])
	assert.Equal(t, map[string]any{
		"method": "POST",
		"path":   "/initialize",
		"caller": map[string]any{"owner": "alice"},
	}, fields["request"])
	assert.NotContains(t, fields, "path")
}
