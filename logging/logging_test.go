package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	logger.Debug().Str("stage", "initial").Msg("map stage")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "initial", entry["stage"])
	assert.Equal(t, "map stage", entry["message"])
}

func TestNewWithWriter_DefaultsToInfo(t *testing.T) {
	tests := []string{"", "bogus"}
	for _, lvl := range tests {
		var buf bytes.Buffer
		logger := NewWithWriter(Config{Level: lvl}, &buf)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel(), "level %q", lvl)

		logger.Debug().Msg("hidden")
		assert.Zero(t, buf.Len())
	}
}
