package engine

import (
	"context"
	"fmt"

	"github.com/roach88/studydb/internal/record"
)

// Kind selects a storage engine. Exactly one engine is active at a time.
type Kind string

const (
	// Relational is the in-memory SQLite engine rehydrated from a snapshot.
	Relational Kind = "relational"

	// Document is the typed keyed-table engine targeted by the transition.
	Document Kind = "document"
)

// ParseKind validates an engine name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Relational, Document:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown engine %q (supported: relational, document)", s)
	}
}

// Engine is the contract both storage engines satisfy. The persistent store
// routes every read and write to the single active Engine.
//
// Implementations run their operations one at a time; callers never observe
// two operations interleaved.
type Engine interface {
	// Kind identifies the engine.
	Kind() Kind

	// Tables returns user-data table names in a stable order.
	Tables(ctx context.Context) ([]string, error)

	// Table returns the shape of a user-data table.
	Table(ctx context.Context, name string) (record.Table, error)

	// Count returns the number of rows in a table.
	Count(ctx context.Context, table string) (int, error)

	// ReadAll returns every row of a table in insertion or primary-key order.
	ReadAll(ctx context.Context, table string) ([]record.Row, error)

	// Put validates and writes a row, replacing any row with the same key.
	Put(ctx context.Context, table string, row record.Row) error

	// Delete removes the row whose key column equals key. Returns true if it
	// existed.
	Delete(ctx context.Context, table string, key record.Value) (bool, error)

	// ReplaceAll atomically replaces the contents of every named table.
	// Tables not named are untouched. On error nothing changes.
	ReplaceAll(ctx context.Context, data map[string][]record.Row) error

	// Serialize returns the engine's full state as an opaque image.
	Serialize(ctx context.Context) ([]byte, error)

	// Close releases the engine.
	Close() error
}
