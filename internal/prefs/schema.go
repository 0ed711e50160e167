// ABOUTME: JSON schema validation of incoming records
// ABOUTME: Schemas are compiled once; violations are reported as ErrInvalid

package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalid is returned when a record fails schema validation.
var ErrInvalid = errors.New("invalid record")

const settingsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "high_contrast":       {"type": "boolean"},
    "reduced_motion":      {"type": "boolean"},
    "large_text":          {"type": "boolean"},
    "text_scaling":        {"type": "number", "exclusiveMinimum": 0, "maximum": 10},
    "color_blind_mode":    {"enum": ["none", "protanopia", "deuteranopia", "tritanopia"]},
    "cursor_size":         {"enum": ["normal", "large", "extra-large"]},
    "screen_reader":       {"type": "boolean"},
    "sound_effects":       {"type": "boolean"},
    "voice_feedback":      {"type": "boolean"},
    "keyboard_navigation": {"type": "boolean"},
    "sticky_keys":         {"type": "boolean"},
    "slow_keys":           {"type": "boolean"},
    "slow_keys_delay":     {"type": "integer", "minimum": 0},
    "focus_indicator":     {"enum": ["default", "enhanced", "high-visibility"]},
    "simplified_ui":       {"type": "boolean"},
    "reading_guide":       {"type": "boolean"},
    "dyslexia_font":       {"type": "boolean"},
    "line_spacing":        {"type": "number", "minimum": 0},
    "word_spacing":        {"type": "number", "minimum": 0}
  },
  "required": ["text_scaling", "color_blind_mode", "cursor_size", "focus_indicator"]
}`

const commandSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "id":              {"type": "string", "minLength": 1},
    "transcript":      {"type": "string"},
    "command_matched": {"type": "string"},
    "confidence":      {"type": "number", "minimum": 0, "maximum": 1},
    "timestamp":       {"type": "string", "format": "date-time"}
  },
  "required": ["id", "timestamp"]
}`

const scanSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "id":        {"type": "string", "minLength": 1},
    "file_path": {"type": "string", "minLength": 1},
    "result":    {"type": "string"},
    "cached_at": {"type": "string", "format": "date-time"}
  },
  "required": ["id", "file_path", "cached_at"]
}`

// Validator checks records against their schemas.
//
// Incoming records get the full schema. Stored records get a shape-only
// variant: every property present with the right JSON type, no value rules.
type Validator struct {
	settings *gojsonschema.Schema
	command  *gojsonschema.Schema
	scan     *gojsonschema.Schema

	storedSettings *gojsonschema.Schema
	storedCommand  *gojsonschema.Schema
	storedScan     *gojsonschema.Schema
}

// NewValidator compiles the record schemas.
func NewValidator() (*Validator, error) {
	var v Validator
	for _, c := range []struct {
		name   string
		src    string
		full   **gojsonschema.Schema
		stored **gojsonschema.Schema
	}{
		{"settings", settingsSchema, &v.settings, &v.storedSettings},
		{"command", commandSchema, &v.command, &v.storedCommand},
		{"scan", scanSchema, &v.scan, &v.storedScan},
	} {
		full, err := compile(c.src)
		if err != nil {
			return nil, fmt.Errorf("%s schema: %w", c.name, err)
		}
		stored, err := compileStored(c.src)
		if err != nil {
			return nil, fmt.Errorf("stored %s schema: %w", c.name, err)
		}
		*c.full, *c.stored = full, stored
	}
	return &v, nil
}

// MustValidator is NewValidator for the built-in schemas, which always compile.
func MustValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Settings validates an AccessibilitySettings record.
func (v *Validator) Settings(s AccessibilitySettings) error {
	return validate(v.settings, s)
}

// Command validates a VoiceCommand.
func (v *Validator) Command(c VoiceCommand) error {
	return validate(v.command, c)
}

// Scan validates a CachedScan.
func (v *Validator) Scan(s CachedScan) error {
	return validate(v.scan, s)
}

// StoredSettings checks the shape of a stored settings value.
func (v *Validator) StoredSettings(raw json.RawMessage) error {
	return validateLoader(v.storedSettings, gojsonschema.NewBytesLoader(raw))
}

// StoredCommand checks the shape of one stored history entry.
func (v *Validator) StoredCommand(raw json.RawMessage) error {
	return validateLoader(v.storedCommand, gojsonschema.NewBytesLoader(raw))
}

// StoredScan checks the shape of one stored cache entry.
func (v *Validator) StoredScan(raw json.RawMessage) error {
	return validateLoader(v.storedScan, gojsonschema.NewBytesLoader(raw))
}

func compile(src string) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
}

// compileStored derives the shape-only schema from a record schema.
// Enum properties are strings.
func compileStored(src string) (*gojsonschema.Schema, error) {
	var doc struct {
		Properties map[string]map[string]any `json:"properties"`
	}
	if err := json.Unmarshal([]byte(src), &doc); err != nil {
		return nil, err
	}

	props := make(map[string]any, len(doc.Properties))
	required := make([]string, 0, len(doc.Properties))
	for name, prop := range doc.Properties {
		typ, ok := prop["type"]
		if !ok {
			typ = "string"
		}
		props[name] = map[string]any{"type": typ}
		required = append(required, name)
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
		"required":   required,
	}))
}

func validate(schema *gojsonschema.Schema, record any) error {
	return validateLoader(schema, gojsonschema.NewGoLoader(record))
}

func validateLoader(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) error {
	result, err := schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}

	descs := result.Errors()
	msgs := make([]string, 0, min(len(descs), 3))
	for _, d := range descs[:min(len(descs), 3)] {
		msgs = append(msgs, d.String())
	}
	if extra := len(descs) - len(msgs); extra > 0 {
		msgs = append(msgs, fmt.Sprintf("and %d more", extra))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
