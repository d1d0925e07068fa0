package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/studydb/internal/relational"
)

// SessionTags adds study_sessions.tags, a JSON array stored as text.
func SessionTags() Migration {
	return Migration{
		Version: 2,
		Name:    "session_tags",
		Up:      AddColumnIfMissing("study_sessions", "tags", "TEXT NOT NULL DEFAULT '[]'"),
	}
}

// SessionIDFormat rewrites every session id into the "session_<id>" form.
func SessionIDFormat() Migration {
	return Migration{
		Version: 3,
		Name:    "session_id_format",
		Up:      NormalizeKeys("study_sessions", "id", "session"),
	}
}

// AddColumnIfMissing returns an Up function that adds column to table
// unless it already exists.
func AddColumnIfMissing(table, column, decl string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		exists, err := relational.ColumnExists(ctx, tx, table, column)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			relational.QuoteIdent(table), relational.QuoteIdent(column), decl)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, column, err)
		}
		return nil
	}
}

// NormalizeKeys returns an Up function that rewrites column into the tagged
// identifier form with a single UPDATE over the whole table.
func NormalizeKeys(table, column, prefix string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		col := relational.QuoteIdent(column)
		stmt := fmt.Sprintf("UPDATE %s SET %s = normalize_id(?, %s) WHERE %s <> normalize_id(?, %s)",
			relational.QuoteIdent(table), col, col, col, col)
		if _, err := tx.ExecContext(ctx, stmt, prefix, prefix); err != nil {
			return fmt.Errorf("normalize %s.%s: %w", table, column, err)
		}
		return nil
	}
}
