package serialmon

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		" Debug ":  zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"disabled": zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}

	_, ok := parseLevel("")
	require.False(t, ok)
	_, ok = parseLevel("loud")
	require.False(t, ok)
}

func TestNewLogger_EnvLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogNoColor, "true")

	var buf bytes.Buffer
	logger := NewLogger(&buf)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger.Debug().Str("k", "v").Msg("hello")
	out := buf.String()
	require.Contains(t, out, "hello")
	require.Contains(t, out, "app=serialmon")
	require.NotContains(t, out, "\x1b[")
}

func TestNewLogger_DefaultWarn(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	logger.Info().Msg("quiet")
	require.Empty(t, buf.String())
}
