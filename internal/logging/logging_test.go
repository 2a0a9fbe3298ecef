package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		l := New(&bytes.Buffer{}, tt.in)
		require.Equal(t, tt.want, l.GetLevel(), "level %q", tt.in)
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info")
	l.Debug().Msg("hidden")
	l.Info().Str("refresh_hash", "abc123").Msg("rotated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "rotated", entry["message"])
	require.Equal(t, "abc123", entry["refresh_hash"])
	require.Contains(t, entry, "time")
}

func TestSetup_ReturnsConfiguredLogger(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	l := Setup("warn", "production")
	require.Equal(t, zerolog.WarnLevel, l.GetLevel())
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
