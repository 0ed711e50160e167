// ABOUTME: The command surface: settings, voice command history and scan cache operations
// ABOUTME: Fills generated ids and timestamps, validates records, then delegates to prefs

package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/statekeeper/internal/prefs"
)

// Backend is the state the commands operate on. *prefs.Service implements it.
type Backend interface {
	Settings(ctx context.Context) (prefs.AccessibilitySettings, bool, error)
	SaveSettings(ctx context.Context, s prefs.AccessibilitySettings) error
	History(ctx context.Context, limit int) ([]prefs.VoiceCommand, error)
	SaveCommand(ctx context.Context, cmd prefs.VoiceCommand) error
	ClearHistory(ctx context.Context) error
	Scan(ctx context.Context, id string) (prefs.CachedScan, bool, error)
	SaveScan(ctx context.Context, scan prefs.CachedScan) error
	ClearScans(ctx context.Context) error
	Stats(ctx context.Context) (prefs.Stats, error)
}

var _ Backend = (*prefs.Service)(nil)

// Options configures a Commands.
type Options struct {
	// DefaultLimit is used by GetHistory when no limit is given.
	DefaultLimit int
	Logger       *slog.Logger

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Commands implements the command surface.
type Commands struct {
	backend      Backend
	validator    *prefs.Validator
	defaultLimit int
	now          func() time.Time
	newID        func() string
	logger       *slog.Logger
}

// New creates the command surface over backend.
func New(backend Backend, opts Options) *Commands {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = prefs.DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{
		backend:      backend,
		validator:    prefs.MustValidator(),
		defaultLimit: opts.DefaultLimit,
		now:          opts.Now,
		newID:        opts.NewID,
		logger:       logger.With("component", "commands"),
	}
}

// GetSettings returns the saved settings, or nil before the first save.
func (c *Commands) GetSettings(ctx context.Context) (*prefs.AccessibilitySettings, error) {
	settings, ok, err := c.backend.Settings(ctx)
	if err != nil {
		return nil, c.fail(classify("get_settings", "load settings", err))
	}
	if !ok {
		return nil, nil
	}
	return &settings, nil
}

// SaveSettings replaces the saved settings.
func (c *Commands) SaveSettings(ctx context.Context, settings prefs.AccessibilitySettings) error {
	if err := c.validator.Settings(settings); err != nil {
		return c.fail(invalid("save_settings", "settings", err))
	}
	if err := c.backend.SaveSettings(ctx, settings); err != nil {
		return c.fail(classify("save_settings", "save settings", err))
	}
	return nil
}

// GetHistory returns up to *limit commands, most recent first. A nil limit
// uses the default; zero returns an empty list.
func (c *Commands) GetHistory(ctx context.Context, limit *int) ([]prefs.VoiceCommand, error) {
	n := c.defaultLimit
	if limit != nil {
		if *limit < 0 {
			return nil, c.fail(invalid("get_history", "limit", errors.New("must not be negative")))
		}
		n = *limit
	}

	history, err := c.backend.History(ctx, n)
	if err != nil {
		return nil, c.fail(classify("get_history", "load history", err))
	}
	return history, nil
}

// SaveCommand appends cmd to the history and returns the stored entry.
// An empty ID or Timestamp is filled in.
func (c *Commands) SaveCommand(ctx context.Context, cmd prefs.VoiceCommand) (prefs.VoiceCommand, error) {
	if cmd.ID == "" {
		cmd.ID = c.newID()
	}
	if cmd.Timestamp == "" {
		cmd.Timestamp = c.timestamp()
	}
	if err := c.validator.Command(cmd); err != nil {
		return prefs.VoiceCommand{}, c.fail(invalid("save_command", "command", err))
	}
	if err := c.backend.SaveCommand(ctx, cmd); err != nil {
		return prefs.VoiceCommand{}, c.fail(classify("save_command", "save command", err))
	}
	return cmd, nil
}

// ClearHistory removes every stored command.
func (c *Commands) ClearHistory(ctx context.Context) error {
	if err := c.backend.ClearHistory(ctx); err != nil {
		return c.fail(classify("clear_history", "clear history", err))
	}
	return nil
}

// GetScan returns the cached scan with id, or nil if none is cached.
func (c *Commands) GetScan(ctx context.Context, id string) (*prefs.CachedScan, error) {
	if id == "" {
		return nil, c.fail(invalid("get_scan", "scan id", errors.New("must not be empty")))
	}
	scan, ok, err := c.backend.Scan(ctx, id)
	if err != nil {
		return nil, c.fail(classify("get_scan", "load scan", err))
	}
	if !ok {
		return nil, nil
	}
	return &scan, nil
}

// SaveScan inserts or replaces scan and returns the stored entry.
// An empty ID or CachedAt is filled in.
func (c *Commands) SaveScan(ctx context.Context, scan prefs.CachedScan) (prefs.CachedScan, error) {
	if scan.ID == "" {
		scan.ID = c.newID()
	}
	if scan.CachedAt == "" {
		scan.CachedAt = c.timestamp()
	}
	if err := c.validator.Scan(scan); err != nil {
		return prefs.CachedScan{}, c.fail(invalid("save_scan", "scan", err))
	}
	if err := c.backend.SaveScan(ctx, scan); err != nil {
		return prefs.CachedScan{}, c.fail(classify("save_scan", "save scan", err))
	}
	return scan, nil
}

// ClearScans removes every cached scan.
func (c *Commands) ClearScans(ctx context.Context) error {
	if err := c.backend.ClearScans(ctx); err != nil {
		return c.fail(classify("clear_scans", "clear cache", err))
	}
	return nil
}

// Status reports collection sizes and caps.
func (c *Commands) Status(ctx context.Context) (prefs.Stats, error) {
	stats, err := c.backend.Stats(ctx)
	if err != nil {
		return prefs.Stats{}, c.fail(classify("status", "load status", err))
	}
	return stats, nil
}

func (c *Commands) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

func (c *Commands) fail(err *Error) error {
	if err.Kind == KindInvalid {
		c.logger.Debug("rejected input", "op", err.Op, "error", err.Err)
	} else {
		c.logger.Error("command failed", "op", err.Op, "kind", err.Kind.String(), "error", err.Err)
	}
	return err
}
