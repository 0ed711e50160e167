// ABOUTME: Package prefs defines the persisted application records and binds them to collections
// ABOUTME: Settings live in a singleton slot, voice commands in a capped log, scans in a capped cache

// Package prefs owns the three application namespaces.
//
// A Service is constructed once with a kvstore.Store and shared by every
// caller. It binds:
//
//   - accessibility/accessibility_settings to a collection.Slot
//   - voice_commands/command_history to a collection.Log capped at 1000
//   - document_cache/scans to a collection.Cache capped at 50
//
// All three share one collection.Locks registry so mutations on a namespace
// are serialized no matter which caller issues them.
package prefs
