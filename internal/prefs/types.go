// ABOUTME: Persisted record types for settings, voice commands and document scans
// ABOUTME: Field names are the stored JSON keys and must stay stable across releases

package prefs

// Namespace and slot names of the persisted documents.
const (
	SettingsNamespace = "accessibility"
	SettingsSlot      = "accessibility_settings"

	HistoryNamespace = "voice_commands"
	HistorySlot      = "command_history"

	ScansNamespace = "document_cache"
	ScansSlot      = "scans"
)

// Retention defaults.
const (
	DefaultHistoryCap   = 1000
	DefaultHistoryLimit = 100
	DefaultScanCacheCap = 50
)

// Namespaces lists every namespace the service owns.
func Namespaces() []string {
	return []string{SettingsNamespace, HistoryNamespace, ScansNamespace}
}

// Color blind modes.
const (
	ColorBlindNone         = "none"
	ColorBlindProtanopia   = "protanopia"
	ColorBlindDeuteranopia = "deuteranopia"
	ColorBlindTritanopia   = "tritanopia"
)

// Cursor sizes.
const (
	CursorNormal     = "normal"
	CursorLarge      = "large"
	CursorExtraLarge = "extra-large"
)

// Focus indicator styles.
const (
	FocusDefault        = "default"
	FocusEnhanced       = "enhanced"
	FocusHighVisibility = "high-visibility"
)

// AccessibilitySettings is the user's accessibility preference record.
type AccessibilitySettings struct {
	// Visual
	HighContrast   bool    `json:"high_contrast"`
	ReducedMotion  bool    `json:"reduced_motion"`
	LargeText      bool    `json:"large_text"`
	TextScaling    float64 `json:"text_scaling"`
	ColorBlindMode string  `json:"color_blind_mode"`
	CursorSize     string  `json:"cursor_size"`

	// Audio
	ScreenReader  bool `json:"screen_reader"`
	SoundEffects  bool `json:"sound_effects"`
	VoiceFeedback bool `json:"voice_feedback"`

	// Motor
	KeyboardNavigation bool   `json:"keyboard_navigation"`
	StickyKeys         bool   `json:"sticky_keys"`
	SlowKeys           bool   `json:"slow_keys"`
	SlowKeysDelay      uint32 `json:"slow_keys_delay"`
	FocusIndicator     string `json:"focus_indicator"`

	// Cognitive
	SimplifiedUI bool    `json:"simplified_ui"`
	ReadingGuide bool    `json:"reading_guide"`
	DyslexiaFont bool    `json:"dyslexia_font"`
	LineSpacing  float64 `json:"line_spacing"`
	WordSpacing  float64 `json:"word_spacing"`
}

// DefaultSettings returns the settings a fresh install starts from.
func DefaultSettings() AccessibilitySettings {
	return AccessibilitySettings{
		TextScaling:        1.0,
		ColorBlindMode:     ColorBlindNone,
		CursorSize:         CursorNormal,
		SoundEffects:       true,
		KeyboardNavigation: true,
		SlowKeysDelay:      300,
		FocusIndicator:     FocusDefault,
		LineSpacing:        1.5,
		WordSpacing:        0,
	}
}

// VoiceCommand is one recognized utterance. Entries are never modified after append.
type VoiceCommand struct {
	ID             string  `json:"id"`
	Transcript     string  `json:"transcript"`
	CommandMatched string  `json:"command_matched"`
	Confidence     float64 `json:"confidence"`
	Timestamp      string  `json:"timestamp"`
}

// CachedScan is the stored result of a document scan.
type CachedScan struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"`
	Result   string `json:"result"`
	CachedAt string `json:"cached_at"`
}

// Key identifies the scan within the cache.
func (s CachedScan) Key() string {
	return s.ID
}
