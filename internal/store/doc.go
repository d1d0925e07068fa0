// Package store is the persistent store of studydb: it owns the active
// storage engine and everything that keeps it durable.
//
// # Lifecycle
//
// A Store is constructed explicitly with New and passed to whoever needs it.
// Initialize brings it to the ready state:
//
//  1. rename a legacy snapshot key to the current one, once
//  2. load the relational snapshot, or create the database from schema.sql
//  3. run pending schema migrations in ascending order
//  4. seed singleton rows that are absent
//  5. restore the active engine selector and the document image
//  6. persist an initial snapshot if anything changed
//
// Concurrent Initialize calls share one run. A failed run is remembered and
// returned to every later caller until Close.
//
// # Saves
//
// Mutations are followed by ScheduleSave. Only the last call within the
// debounce window flushes; a flush serializes the whole active engine and
// replaces its blob. A failed flush is recorded in LastFlush and the data is
// written again by the next scheduled save.
//
// # Engines
//
// The relational engine is the source of truth until the transition to the
// document engine (Migrate, SwitchEngine) succeeds. The transition never
// modifies relational data, so it can be retried after any failure.
//
// # Durable keys
//
//	<ns>.snapshot         relational snapshot
//	<ns>.documents        document engine image
//	<ns>.engine           active engine selector
//	<ns>.engine-migrated  set once the transition has completed
package store
