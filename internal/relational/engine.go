package relational

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/studydb/internal/engine"
)

// MigrationsTable holds schema version markers. It is engine bookkeeping, not
// user data, so it is excluded from Tables and backups.
const MigrationsTable = "schema_migrations"

// Engine is the relational storage engine: a private in-memory SQLite
// database whose full state round-trips through Serialize and Load.
type Engine struct {
	db *sql.DB
}

var _ engine.Engine = (*Engine)(nil)

// Create opens an empty database and applies the schema script verbatim.
func Create(ctx context.Context, schemaScript string) (*Engine, error) {
	db, err := open(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaScript); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return &Engine{db: db}, nil
}

// Load rehydrates a database from a snapshot produced by Serialize.
func Load(ctx context.Context, snapshot []byte) (*Engine, error) {
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("failed to load snapshot: empty image")
	}
	db, err := open(ctx)
	if err != nil {
		return nil, err
	}
	e := &Engine{db: db}

	err = e.raw(ctx, func(conn *sqlite3.SQLiteConn) error {
		return conn.Deserialize(snapshot, "main")
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	// Deserialize accepts any bytes; the first read detects a bad image.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return e, nil
}

// open creates a private in-memory database.
func open(ctx context.Context) (*sql.DB, error) {
	registerDriver()

	db, err := sql.Open(DriverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database, so the pool
	// must hold exactly one connection for the engine's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return db, nil
}

// raw runs fn against the driver connection.
func (e *Engine) raw(ctx context.Context, fn func(*sqlite3.SQLiteConn) error) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		return fn(sc)
	})
}

// Kind implements engine.Engine.
func (e *Engine) Kind() engine.Kind {
	return engine.Relational
}

// Serialize returns the database image. Load(Serialize()) reproduces the
// full state, including schema version markers.
func (e *Engine) Serialize(ctx context.Context) ([]byte, error) {
	var image []byte
	err := e.raw(ctx, func(conn *sqlite3.SQLiteConn) error {
		b, err := conn.Serialize("main")
		if err != nil {
			return err
		}
		image = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("serialize database: %w", err)
	}
	return image, nil
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Engine methods when available.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Exec runs a statement. Convenience wrapper around db.ExecContext for
// application code that owns its own SQL.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return e.db.ExecContext(ctx, query, args...)
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return e.db.QueryContext(ctx, query, args...)
}

// Close closes the database. The in-memory state is gone afterwards.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}
