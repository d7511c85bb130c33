package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestBuildLevels(t *testing.T) {
	var buf bytes.Buffer

	l := build(&buf, "dombot", "warn")
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel())

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "dombot")
}

func TestBuildFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, "dombot", "loud")
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
