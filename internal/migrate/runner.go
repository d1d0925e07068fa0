package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/studydb/internal/engine"
	"github.com/roach88/studydb/internal/relational"
)

// Marker records that a migration has run.
type Marker struct {
	Version   int
	Name      string
	AppliedAt string
}

// Runner applies a Registry to a database.
type Runner struct {
	Registry *Registry

	// Now stamps markers. Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Run applies reg to db with default settings. See Runner.Run.
func Run(ctx context.Context, db *sql.DB, reg *Registry) ([]int, error) {
	return (&Runner{Registry: reg}).Run(ctx, db)
}

// Run applies every pending migration in ascending order and returns the
// versions applied. It stops at the first failure; migrations applied before
// it stay applied.
func (r *Runner) Run(ctx context.Context, db *sql.DB) ([]int, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureMarkerTable(ctx, db); err != nil {
		return nil, err
	}
	markers, err := Applied(ctx, db)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(markers))
	highest := engine.BaseSchemaVersion
	for _, m := range markers {
		done[m.Version] = true
		highest = max(highest, m.Version)
	}

	var applied []int
	for _, m := range r.Registry.Migrations() {
		if done[m.Version] {
			continue
		}
		if m.Version < highest {
			return applied, fmt.Errorf("migration %d (%s) is older than applied version %d", m.Version, m.Name, highest)
		}
		if err := r.apply(ctx, db, m); err != nil {
			return applied, err
		}
		logger.Info("schema migration applied", "version", m.Version, "name", m.Name)
		applied = append(applied, m.Version)
		highest = m.Version
	}
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, db *sql.DB, m Migration) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.Version, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := m.Up(ctx, tx); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (version, name, applied_at) VALUES (?, ?, ?)", relational.MigrationsTable)
	if _, err := tx.ExecContext(ctx, stmt, m.Version, m.Name, now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("migration %d: record marker: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("migration %d: set user_version: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.Version, err)
	}
	return nil
}

func ensureMarkerTable(ctx context.Context, db *sql.DB) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`, relational.MigrationsTable)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", relational.MigrationsTable, err)
	}
	return nil
}

// Applied returns the recorded markers in ascending version order. A
// database without the marker table has none.
func Applied(ctx context.Context, db *sql.DB) ([]Marker, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		relational.MigrationsTable).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", relational.MigrationsTable, err)
	}
	if exists == 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		"SELECT version, name, applied_at FROM %s ORDER BY version", relational.MigrationsTable))
	if err != nil {
		return nil, fmt.Errorf("read markers: %w", err)
	}
	defer rows.Close()

	var out []Marker
	for rows.Next() {
		var m Marker
		if err := rows.Scan(&m.Version, &m.Name, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CurrentVersion returns the highest applied marker, or the base schema
// version if none.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	markers, err := Applied(ctx, db)
	if err != nil {
		return 0, err
	}
	v := engine.BaseSchemaVersion
	for _, m := range markers {
		v = max(v, m.Version)
	}
	return v, nil
}
