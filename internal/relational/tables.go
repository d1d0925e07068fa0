package relational

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/studydb/internal/record"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// QuoteIdent quotes a table or column name for SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableInfo reads a table's columns via PRAGMA table_info.
// Returns an error if the table does not exist.
func TableInfo(ctx context.Context, q Querier, name string) (record.Table, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA table_info("+QuoteIdent(name)+")")
	if err != nil {
		return record.Table{}, fmt.Errorf("table info %s: %w", name, err)
	}
	defer rows.Close()

	t := record.Table{Name: name}
	for rows.Next() {
		var (
			cid     int
			colName string
			decl    string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &decl, &notNull, &dflt, &pk); err != nil {
			return record.Table{}, fmt.Errorf("scan table info %s: %w", name, err)
		}
		t.Columns = append(t.Columns, record.Column{
			Name:       colName,
			Kind:       record.KindFromDecl(decl),
			NotNull:    notNull != 0,
			PrimaryKey: pk > 0,
			HasDefault: dflt.Valid,
		})
	}
	if err := rows.Err(); err != nil {
		return record.Table{}, fmt.Errorf("iterate table info %s: %w", name, err)
	}
	if len(t.Columns) == 0 {
		return record.Table{}, fmt.Errorf("no such table: %s", name)
	}
	return t, nil
}

// ColumnExists reports whether table has column.
func ColumnExists(ctx context.Context, q Querier, table, column string) (bool, error) {
	t, err := TableInfo(ctx, q, table)
	if err != nil {
		return false, err
	}
	_, ok := t.Column(column)
	return ok, nil
}

// Tables returns user-data tables ordered by name.
func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> ?
		ORDER BY name COLLATE BINARY ASC
	`, MigrationsTable)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// Table returns the shape of a user-data table.
func (e *Engine) Table(ctx context.Context, name string) (record.Table, error) {
	if name == MigrationsTable {
		return record.Table{}, fmt.Errorf("no such table: %s", name)
	}
	return TableInfo(ctx, e.db, name)
}

// Count returns the number of rows in table.
func (e *Engine) Count(ctx context.Context, table string) (int, error) {
	var n int
	err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ReadAll returns every row of table ordered by rowid, which is insertion
// order for text keys and key order for integer primary keys.
func (e *Engine) ReadAll(ctx context.Context, table string) ([]record.Row, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT * FROM "+QuoteIdent(table)+" ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}

	out := []record.Row{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(record.Row, len(cols))
		for i, c := range cols {
			v, err := record.FromSQL(raw[i])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", table, c, err)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// Put validates row against the table and upserts it by primary key. An
// updated row keeps its rowid, and therefore its position in ReadAll.
func (e *Engine) Put(ctx context.Context, table string, row record.Row) error {
	t, err := e.Table(ctx, table)
	if err != nil {
		return err
	}
	if err := t.ValidateRow(row); err != nil {
		return err
	}
	query, args := upsertStatement(t, row)
	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put %s: %w", table, err)
	}
	return nil
}

// Has reports whether a row with the given single-column primary key exists.
func (e *Engine) Has(ctx context.Context, table string, key record.Value) (bool, error) {
	t, err := e.Table(ctx, table)
	if err != nil {
		return false, err
	}
	pk := primaryKey(t)
	if len(pk) != 1 {
		return false, fmt.Errorf("lookup %s: table needs a single-column primary key", table)
	}
	var n int
	err = e.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+QuoteIdent(table)+" WHERE "+QuoteIdent(pk[0])+" = ?", key.SQL()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", table, err)
	}
	return n > 0, nil
}

// Delete removes the row whose single-column primary key equals key.
func (e *Engine) Delete(ctx context.Context, table string, key record.Value) (bool, error) {
	t, err := e.Table(ctx, table)
	if err != nil {
		return false, err
	}
	pk := primaryKey(t)
	if len(pk) != 1 {
		return false, fmt.Errorf("delete %s: table needs a single-column primary key", table)
	}
	res, err := e.db.ExecContext(ctx,
		"DELETE FROM "+QuoteIdent(table)+" WHERE "+QuoteIdent(pk[0])+" = ?", key.SQL())
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: rows affected: %w", table, err)
	}
	return n > 0, nil
}

// ReplaceAll deletes every row of each named table and inserts the given
// rows, all in one transaction. Any failure rolls back to the prior state.
func (e *Engine) ReplaceAll(ctx context.Context, data map[string][]record.Row) error {
	return e.ReplaceAllThen(ctx, data, nil)
}

// ReplaceAllThen is ReplaceAll with then run inside the same transaction
// after the rows are written. If then fails nothing changes.
func (e *Engine) ReplaceAllThen(ctx context.Context, data map[string][]record.Row, then func(context.Context, *sql.Tx) error) error {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	slices.Sort(names)

	// Shapes are read before the transaction: the pool holds one connection.
	shapes := make(map[string]record.Table, len(names))
	for _, name := range names {
		t, err := e.Table(ctx, name)
		if err != nil {
			return err
		}
		for i, row := range data[name] {
			if err := t.ValidateRow(row); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		shapes[name] = t
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace all: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, name := range names {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+QuoteIdent(name)); err != nil {
			return fmt.Errorf("replace all: clear %s: %w", name, err)
		}
		for i, row := range data[name] {
			query, args := insertStatement(shapes[name], row)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("replace all: insert %s row %d: %w", name, i, err)
			}
		}
	}

	if then != nil {
		if err := then(ctx, tx); err != nil {
			return fmt.Errorf("replace all: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace all: commit: %w", err)
	}
	return nil
}

func primaryKey(t record.Table) []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

func insertStatement(t record.Table, row record.Row) (string, []any) {
	cols := row.SortedKeys()
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
		args[i] = row[c].SQL()
	}
	if len(cols) == 0 {
		return "INSERT INTO " + QuoteIdent(t.Name) + " DEFAULT VALUES", nil
	}
	return "INSERT INTO " + QuoteIdent(t.Name) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")", args
}

func upsertStatement(t record.Table, row record.Row) (string, []any) {
	query, args := insertStatement(t, row)
	pk := primaryKey(t)
	if len(pk) == 0 {
		return query, args
	}
	for _, k := range pk {
		if _, ok := row[k]; !ok {
			return query, args
		}
	}

	quotedPK := make([]string, len(pk))
	for i, k := range pk {
		quotedPK[i] = QuoteIdent(k)
	}
	var sets []string
	for _, c := range row.SortedKeys() {
		if slices.Contains(pk, c) {
			continue
		}
		sets = append(sets, QuoteIdent(c)+" = excluded."+QuoteIdent(c))
	}
	conflict := " ON CONFLICT(" + strings.Join(quotedPK, ", ") + ")"
	if len(sets) == 0 {
		return query + conflict + " DO NOTHING", args
	}
	return query + conflict + " DO UPDATE SET " + strings.Join(sets, ", "), args
}
