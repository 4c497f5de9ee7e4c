package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestZapLoggerWritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)

	logger.Info("parcel accepted", String("parcel_id", "p-1"), Int("sequence", 7))

	output := buf.String()
	assert.Contains(t, output, "parcel accepted")
	assert.Contains(t, output, "p-1")
	assert.Contains(t, output, "INFO")
}

func TestZapLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
	require.NoError(t, err)

	logger.Debug("noise")
	logger.Info("still noise")
	logger.Warn("queue nearly full")

	output := buf.String()
	assert.NotContains(t, output, "noise")
	assert.Contains(t, output, "queue nearly full")
}

func TestZapLoggerErrorIncludesErrField(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)

	logger.Error("evaluation failed", errors.New("chute offline"), String("rule_id", "r-1"))

	output := buf.String()
	assert.Contains(t, output, "evaluation failed")
	assert.Contains(t, output, "chute offline")
	assert.Contains(t, output, "r-1")
}

func TestWithFieldsCarriesFieldsToEveryEntry(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)

	logger := base.WithFields(String("component", "janitor"))
	logger.Info("sweep complete")
	logger.Info("sweep complete again")

	assert.Equal(t, 2, strings.Count(buf.String(), "janitor"))
}

func TestGlobalLoggerReplaceable(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)

	SetGlobalLogger(logger)
	Info("wired", String("backend", "test"))

	assert.Same(t, logger, GetGlobalLogger())
	assert.Contains(t, buf.String(), "wired")
}
