package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var extra bytes.Buffer
	logger := NewLogger(Config{Level: "info", Format: "json", Output: "stdout"}, &extra)
	logger.Info("hello", "key", "value")

	if !strings.Contains(extra.String(), `"key":"value"`) {
		t.Errorf("expected JSON-formatted log line, got %q", extra.String())
	}
}

func TestNewLoggerMultiWritesToExtra(t *testing.T) {
	var extra bytes.Buffer
	logger := NewLogger(Config{Level: "info", Format: "text", Output: "stdout"}, &extra)
	logger.Info("hello")

	if !strings.Contains(extra.String(), "hello") {
		t.Errorf("expected the extra writer to receive the log line, got %q", extra.String())
	}
}
