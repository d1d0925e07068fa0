// Package engine defines what the persistent store needs from a storage
// engine, plus the types shared by every layer above the engines.
//
// Two engines implement Engine:
//   - relational: an in-memory SQLite database, persisted as a binary snapshot
//   - document: typed keyed tables validated against CUE definitions
//
// The store owns exactly one active Engine and routes all reads and writes to
// it. Switching engines is the job of the store's transition orchestrator.
//
// The package also carries the error taxonomy (Error, ErrorCode) and the
// Clock abstraction used for debounced saves.
package engine
