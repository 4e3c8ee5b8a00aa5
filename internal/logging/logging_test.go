package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	t.Run("json output honours level", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Setup("warn", false, &buf))

		log.Info().Msg("hidden")
		log.Warn().Str("relay", "wss://nos.lol").Msg("shown")

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		require.Len(t, lines, 1)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(lines[0], &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "shown", entry["message"])
		assert.Equal(t, "wss://nos.lol", entry["relay"])
	})

	t.Run("pretty output is not json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Setup("debug", true, &buf))

		log.Debug().Msg("console line")
		assert.Contains(t, buf.String(), "console line")
		assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
	})

	t.Run("empty level defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Setup("", false, &buf))
		assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})

	t.Run("unknown level is an error", func(t *testing.T) {
		err := Setup("loud", false, &bytes.Buffer{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
