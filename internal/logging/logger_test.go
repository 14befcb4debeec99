package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelWarn,
		"verbose": slog.LevelWarn,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestNewLogger_DropsTime(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, false, "info")

	log.Info("deployment confirmed", "unit", "Token", "block", 12)
	assert.Equal(t, "level=INFO msg=\"deployment confirmed\" unit=Token block=12\n", buf.String())

	buf.Reset()
	log.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestNewLogger_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, true, "error")

	log.Debug("rpc", "method", "eth_chainId")
	assert.Contains(t, buf.String(), "source=logging/logger_test.go:")
	assert.Contains(t, buf.String(), "method=eth_chainId")
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "usecase/deploy_plan.go", shortPath("/home/dev/tulip/internal/usecase/deploy_plan.go"))
}
