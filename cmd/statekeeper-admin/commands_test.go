// ABOUTME: Tests for admin CLI helpers
// ABOUTME: Covers key=value settings overlays and output truncation

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/statekeeper/internal/prefs"
)

func TestApplySettings(t *testing.T) {
	base := prefs.DefaultSettings()

	got, err := applySettings(base, []string{
		"high_contrast=true",
		"text_scaling=1.25",
		"color_blind_mode=protanopia",
		"slow_keys_delay=500",
	})
	require.NoError(t, err)

	assert.True(t, got.HighContrast)
	assert.Equal(t, 1.25, got.TextScaling)
	assert.Equal(t, prefs.ColorBlindProtanopia, got.ColorBlindMode)
	assert.Equal(t, uint32(500), got.SlowKeysDelay)
	assert.Equal(t, base.LineSpacing, got.LineSpacing, "untouched fields keep their value")
}

func TestApplySettingsErrors(t *testing.T) {
	base := prefs.DefaultSettings()

	tests := []struct {
		name  string
		pairs []string
	}{
		{"missing equals", []string{"high_contrast"}},
		{"empty key", []string{"=true"}},
		{"unknown key", []string{"font_size=12"}},
		{"wrong type", []string{"high_contrast=maybe"}},
		{"negative unsigned", []string{"slow_keys_delay=-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := applySettings(base, tt.pairs)
			assert.Error(t, err)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
