package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/studydb/internal/engine"
)

// Migration is one schema change.
type Migration struct {
	// Version orders migrations and keys the marker. Must exceed
	// engine.BaseSchemaVersion.
	Version int

	// Name is recorded next to the marker.
	Name string

	// Up applies the change. It must not commit or roll back tx.
	Up func(ctx context.Context, tx *sql.Tx) error
}

// Registry is an ordered, immutable set of migrations.
type Registry struct {
	migrations []Migration
}

// NewRegistry validates ms and sorts them by version.
func NewRegistry(ms ...Migration) (*Registry, error) {
	seen := make(map[int]string, len(ms))
	sorted := make([]Migration, 0, len(ms))
	for _, m := range ms {
		if m.Version <= engine.BaseSchemaVersion {
			return nil, fmt.Errorf("migration %q: version %d must be greater than base version %d",
				m.Name, m.Version, engine.BaseSchemaVersion)
		}
		if m.Up == nil {
			return nil, fmt.Errorf("migration %d (%s): no Up function", m.Version, m.Name)
		}
		if prev, dup := seen[m.Version]; dup {
			return nil, fmt.Errorf("migration %d registered twice (%s, %s)", m.Version, prev, m.Name)
		}
		seen[m.Version] = m.Name
		sorted = append(sorted, m)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Registry{migrations: sorted}, nil
}

// MustRegistry is NewRegistry for static migration lists. Panics on error.
func MustRegistry(ms ...Migration) *Registry {
	r, err := NewRegistry(ms...)
	if err != nil {
		panic(err)
	}
	return r
}

// Migrations returns the migrations in ascending version order.
func (r *Registry) Migrations() []Migration {
	if r == nil {
		return nil
	}
	out := make([]Migration, len(r.migrations))
	copy(out, r.migrations)
	return out
}

// Latest returns the highest registered version, or the base version.
func (r *Registry) Latest() int {
	if r == nil || len(r.migrations) == 0 {
		return engine.BaseSchemaVersion
	}
	return r.migrations[len(r.migrations)-1].Version
}

// Upgrade returns an Up function that reapplies, in order, every migration
// newer than version. It writes no markers: it brings rows restored from an
// older backup up to a schema that is already current, so the migrations it
// runs must be idempotent.
func (r *Registry) Upgrade(version int) func(ctx context.Context, tx *sql.Tx) error {
	var pending []Migration
	for _, m := range r.Migrations() {
		if m.Version > version {
			pending = append(pending, m)
		}
	}
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, m := range pending {
			if err := m.Up(ctx, tx); err != nil {
				return fmt.Errorf("upgrade %d (%s): %w", m.Version, m.Name, err)
			}
		}
		return nil
	}
}

// Default returns the built-in migrations for the study schema.
func Default() *Registry {
	return MustRegistry(SessionTags(), SessionIDFormat())
}
