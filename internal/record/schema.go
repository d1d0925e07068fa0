package record

import (
	"fmt"
	"strings"
)

// Column describes one column of a table as reported by the owning engine.
type Column struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
	HasDefault bool   `json:"has_default"`
}

// Table describes a table's shape. Columns are in declaration order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ValidateRow checks a row against the table before it is written:
// every column must exist, each value must be assignable to the column's
// kind, and NOT NULL columns without a default must be present.
func (t Table) ValidateRow(r Row) error {
	for _, name := range r.SortedKeys() {
		col, ok := t.Column(name)
		if !ok {
			return fmt.Errorf("table %s: unknown column %q", t.Name, name)
		}
		if err := col.Accepts(r[name]); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
	}
	for _, col := range t.Columns {
		if !col.NotNull || col.HasDefault || col.PrimaryKey {
			continue
		}
		if _, ok := r[col.Name]; !ok {
			return fmt.Errorf("table %s: missing required column %q", t.Name, col.Name)
		}
	}
	return nil
}

// Accepts reports whether v may be stored in the column.
// Int widens to Real and Bool narrows to Int (0/1).
func (c Column) Accepts(v Value) error {
	if v == nil {
		v = Null{}
	}
	k := v.Kind()
	if k == KindNull {
		if c.NotNull && !c.HasDefault && !c.PrimaryKey {
			return fmt.Errorf("column %q: null not allowed", c.Name)
		}
		return nil
	}
	if k == c.Kind {
		return nil
	}
	switch {
	case c.Kind == KindReal && k == KindInt:
		return nil
	case c.Kind == KindInt && k == KindBool:
		return nil
	case c.Kind == KindBool && k == KindInt:
		if i := v.(Int); i == 0 || i == 1 {
			return nil
		}
	}
	return fmt.Errorf("column %q: %s value not assignable to %s", c.Name, k, c.Kind)
}

// KindFromDecl maps a SQLite declared column type to a Kind using SQLite's
// type affinity rules.
func KindFromDecl(decl string) Kind {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "INT"):
		return KindInt
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return KindText
	case strings.Contains(d, "BOOL"):
		return KindBool
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return KindReal
	default:
		return KindText
	}
}
