package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelThreshold(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "WARNING", "test")

	l.Debug("hidden %d", 1)
	l.Info("hidden %d", 2)
	assert.Empty(buf.String())

	l.Warning("shown %d", 3)
	assert.Contains(buf.String(), "[test] WARNING: shown 3")

	l.Named("other").Error("boom")
	assert.Contains(buf.String(), "[other] ERROR: boom")
}

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(LevelDebug, ParseLevel("debug"))
	assert.Equal(LevelInfo, ParseLevel(""))
	assert.Equal(LevelWarning, ParseLevel("WARN"))
	assert.Equal(LevelError, ParseLevel(" ERROR "))
}
