// Package kvstore provides the named-document key-value stores that back
// statekeeper's persisted collections.
//
// # Model
//
// A Store hands out one Document per namespace ("accessibility",
// "voice_commands", "document_cache"). A Document is an in-memory map of
// slot name to JSON value. Set and Delete only change the in-memory map;
// Save flushes the whole document to the backend in one step.
//
//	doc, err := store.Open(ctx, "voice_commands")
//	raw, ok := doc.Get("command_history")
//	doc.Set("command_history", next)
//	err = doc.Save(ctx)
//
// Open returns the same Document for the same namespace for the lifetime
// of the Store, so every caller observes the same in-memory state.
//
// # Backends
//
//   - FileStore: one JSON file per namespace, written with temp file + rename
//   - SQLiteStore: one row per (namespace, slot) in a documents table
//   - MemoryStore: in-process only, with failure injection for tests
//
// # Errors
//
//   - ErrStoreAccess: the namespace document could not be opened or read
//   - ErrPersistence: Save could not flush the document
//
// Documents do not serialize read-modify-write cycles. Callers that mutate
// a slot based on its previous value must hold their own per-namespace lock
// (see internal/collection).
package kvstore
