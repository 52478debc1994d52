package logger

import (
	"testing"

	"contractor-sync/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"empty defaults to info", "", zerolog.InfoLevel},
		{"trace level", "trace", zerolog.TraceLevel},
		{"debug level", "debug", zerolog.DebugLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"warning alias", "warning", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
		{"uppercase INFO", "INFO", zerolog.InfoLevel},
		{"unknown defaults to info", "garbage", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.level))
		})
	}
}

func TestInitSetsLevel(t *testing.T) {
	Init(config.LoggerConfig{Level: "warn", Environment: "test"})
	assert.Equal(t, zerolog.WarnLevel, Get().GetLevel())
}
