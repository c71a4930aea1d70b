package logging

import (
	"strings"
	"testing"

	"github.com/zulandar/trendyard/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.LoggingConfig
		enable zapcore.Level
		quiet  zapcore.Level
	}{
		{"json info", config.LoggingConfig{Level: "info", Format: "json"}, zapcore.InfoLevel, zapcore.DebugLevel},
		{"console debug", config.LoggingConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"warn", config.LoggingConfig{Level: "warn", Format: "json"}, zapcore.WarnLevel, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !logger.Core().Enabled(tt.enable) {
				t.Errorf("level %s should be enabled", tt.enable)
			}
			if logger.Core().Enabled(tt.quiet) {
				t.Errorf("level %s should be disabled", tt.quiet)
			}
		})
	}
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "logging:") {
		t.Errorf("error = %q, want logging prefix", err.Error())
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}
