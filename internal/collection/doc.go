// Package collection implements bounded collections persisted as single
// values in kvstore documents.
//
// Three shapes are provided:
//
//   - Slot: a singleton value, overwritten wholesale
//   - Log: an append-only sequence capped at a fixed size, oldest dropped first
//   - Cache: a sequence unique by key, capped, where re-inserting a key
//     replaces the entry and makes it the newest
//
// Every mutation runs a read-decode-modify-encode-write-save cycle while
// holding the exclusive lock of its namespace (see Locks). Reads do not
// lock. A failed save restores the previous in-memory value before the lock
// is released. Stored values that fail to decode are treated as absent or
// empty and logged at WARN.
package collection
