// ABOUTME: Service binds the application namespaces to bounded collections
// ABOUTME: It is the single owner of the store handle for the lifetime of the process

package prefs

import (
	"context"
	"log/slog"

	"github.com/2389/statekeeper/internal/collection"
	"github.com/2389/statekeeper/internal/kvstore"
)

// Options configures retention. Zero values fall back to the defaults.
type Options struct {
	HistoryCap   int
	ScanCacheCap int
	Logger       *slog.Logger
}

// Stats summarizes the stored collections.
type Stats struct {
	SettingsSaved bool `json:"settings_saved"`
	HistoryLen    int  `json:"history_len"`
	HistoryCap    int  `json:"history_cap"`
	ScansLen      int  `json:"scans_len"`
	ScansCap      int  `json:"scans_cap"`
}

// Service provides typed access to settings, command history and the scan cache.
type Service struct {
	store    kvstore.Store
	locks    *collection.Locks
	settings *collection.Slot[AccessibilitySettings]
	history  *collection.Log[VoiceCommand]
	scans    *collection.Cache[CachedScan]
	logger   *slog.Logger
}

// NewService binds the three namespaces of store.
func NewService(store kvstore.Store, opts Options) *Service {
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = DefaultHistoryCap
	}
	if opts.ScanCacheCap <= 0 {
		opts.ScanCacheCap = DefaultScanCacheCap
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "prefs")

	locks := collection.NewLocks()
	validator := MustValidator()
	bind := func(namespace, slot string, check collection.CheckFunc) collection.Binding {
		return collection.Binding{
			Store:     store,
			Namespace: namespace,
			Slot:      slot,
			Locks:     locks,
			Check:     check,
			Logger:    logger,
		}
	}

	return &Service{
		store:    store,
		locks:    locks,
		settings: collection.NewSlot[AccessibilitySettings](bind(SettingsNamespace, SettingsSlot, validator.StoredSettings)),
		history:  collection.NewLog[VoiceCommand](bind(HistoryNamespace, HistorySlot, validator.StoredCommand), opts.HistoryCap),
		scans:    collection.NewCache[CachedScan](bind(ScansNamespace, ScansSlot, validator.StoredScan), opts.ScanCacheCap),
		logger:   logger,
	}
}

// Settings returns the saved settings. ok is false before the first save.
func (s *Service) Settings(ctx context.Context) (AccessibilitySettings, bool, error) {
	return s.settings.Get(ctx)
}

// SaveSettings replaces the saved settings.
func (s *Service) SaveSettings(ctx context.Context, settings AccessibilitySettings) error {
	return s.settings.Set(ctx, settings)
}

// History returns up to limit commands, most recent first.
func (s *Service) History(ctx context.Context, limit int) ([]VoiceCommand, error) {
	return s.history.Recent(ctx, limit)
}

// SaveCommand appends cmd to the history.
func (s *Service) SaveCommand(ctx context.Context, cmd VoiceCommand) error {
	return s.history.Append(ctx, cmd)
}

// ClearHistory empties the command history.
func (s *Service) ClearHistory(ctx context.Context) error {
	if err := s.history.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("command history cleared")
	return nil
}

// Scan returns the cached scan with id.
func (s *Service) Scan(ctx context.Context, id string) (CachedScan, bool, error) {
	return s.scans.Get(ctx, id)
}

// SaveScan inserts or replaces scan in the cache.
func (s *Service) SaveScan(ctx context.Context, scan CachedScan) error {
	return s.scans.Put(ctx, scan)
}

// ClearScans empties the scan cache.
func (s *Service) ClearScans(ctx context.Context) error {
	if err := s.scans.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("scan cache cleared")
	return nil
}

// Stats reports collection sizes.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	_, saved, err := s.settings.Get(ctx)
	if err != nil {
		return Stats{}, err
	}
	historyLen, err := s.history.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	scansLen, err := s.scans.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		SettingsSaved: saved,
		HistoryLen:    historyLen,
		HistoryCap:    s.history.Cap(),
		ScansLen:      scansLen,
		ScansCap:      s.scans.Cap(),
	}, nil
}

// Close waits for in-flight mutations and closes the store.
func (s *Service) Close() error {
	for _, ns := range Namespaces() {
		lock := s.locks.For(ns)
		lock.Lock()
		defer lock.Unlock()
	}
	return s.store.Close()
}
