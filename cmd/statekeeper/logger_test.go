// ABOUTME: Tests for the daemon's slog setup
// ABOUTME: Checks level parsing and the color handler's attribute rendering

package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo)).With("component", "server")

	logger.Debug("hidden")
	logger.WithGroup("req").Info("served", "status", 200)
	logger.Warn("slow", "ms", 900)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be filtered at info level")
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "INF served component=server req.status=200") {
		t.Errorf("unexpected info line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "WRN slow component=server ms=900") {
		t.Errorf("unexpected warn line: %q", lines[1])
	}
}
