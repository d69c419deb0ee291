package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := parseLevel("loud")
	assert.False(t, ok)
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvLogFormat, "")
	var buf bytes.Buffer
	log := New(&buf, ProfileTest, Options{Level: "warn", Format: "json"})

	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "v", line["k"])
	_, hasTime := line["time"]
	assert.False(t, hasTime, "test profile omits timestamps")
}

func TestNew_EnvOverridesOptions(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	var buf bytes.Buffer
	log := New(&buf, ProfileRuntime, Options{Level: "debug"})

	log.Warn().Msg("hidden")
	assert.Empty(t, buf.String())
	log.Error().Msg("shown")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}
