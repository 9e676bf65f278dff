package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	log, err := New(&buf, "warn")
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("symbol", "SPY").Msg("skipped bar")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "skipped bar")
	assert.Contains(t, out, "symbol=SPY")
}

func TestNewBadLevel(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(&buf, "loud")
	assert.Error(t, err)
}
