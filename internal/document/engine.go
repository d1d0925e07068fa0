package document

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/goccy/go-json"

	"github.com/roach88/studydb/internal/engine"
	"github.com/roach88/studydb/internal/record"
)

// Engine is the document storage engine.
// Safe for concurrent use; operations run one at a time.
type Engine struct {
	mu     sync.Mutex
	cue    *cue.Context
	shapes map[string]*shape
	names  []string // sorted table names
	tables map[string]*table
}

var _ engine.Engine = (*Engine)(nil)

// table holds rows in insertion order.
type table struct {
	keys []string
	rows map[string]record.Row
}

func newTable() *table {
	return &table{rows: make(map[string]record.Row)}
}

func (t *table) put(key string, row record.Row) {
	if _, ok := t.rows[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.rows[key] = row
}

// image is the serialized form of the engine.
type image struct {
	Format int                     `json:"format"`
	Tables map[string][]record.Row `json:"tables"`
}

// New compiles the CUE source and creates empty tables for defs.
func New(source string, defs []TableDef) (*Engine, error) {
	cctx := cuecontext.New()
	root := cctx.CompileString(source, cue.Filename("documents.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile document shapes: %w", err)
	}

	e := &Engine{
		cue:    cctx,
		shapes: make(map[string]*shape, len(defs)),
		tables: make(map[string]*table, len(defs)),
	}
	for _, def := range defs {
		if _, dup := e.shapes[def.Name]; dup {
			return nil, fmt.Errorf("duplicate document table %q", def.Name)
		}
		s, err := compileShape(root, def)
		if err != nil {
			return nil, err
		}
		e.shapes[def.Name] = s
		e.tables[def.Name] = newTable()
		e.names = append(e.names, def.Name)
	}
	slices.Sort(e.names)
	return e, nil
}

// Kind implements engine.Engine.
func (e *Engine) Kind() engine.Kind {
	return engine.Document
}

// Tables returns table names in sorted order.
func (e *Engine) Tables(_ context.Context) ([]string, error) {
	return slices.Clone(e.names), nil
}

// Table returns the shape derived from the table's CUE definition.
func (e *Engine) Table(_ context.Context, name string) (record.Table, error) {
	s, ok := e.shapes[name]
	if !ok {
		return record.Table{}, fmt.Errorf("no such table: %s", name)
	}
	return s.table, nil
}

// KeyField returns the key field of a table.
func (e *Engine) KeyField(name string) (string, error) {
	s, ok := e.shapes[name]
	if !ok {
		return "", fmt.Errorf("no such table: %s", name)
	}
	return s.def.Key, nil
}

// Count returns the number of rows in table.
func (e *Engine) Count(_ context.Context, name string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return 0, fmt.Errorf("no such table: %s", name)
	}
	return len(t.keys), nil
}

// Empty reports whether every table has no rows.
func (e *Engine) Empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.tables {
		if len(t.keys) > 0 {
			return false
		}
	}
	return true
}

// ReadAll returns copies of every row in insertion order.
func (e *Engine) ReadAll(_ context.Context, name string) ([]record.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, fmt.Errorf("no such table: %s", name)
	}
	out := make([]record.Row, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.rows[k].Clone())
	}
	return out, nil
}

// Get returns the row stored under key.
func (e *Engine) Get(_ context.Context, name string, key record.Value) (record.Row, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[name]
	if !ok {
		return nil, false, fmt.Errorf("no such table: %s", name)
	}
	k, err := keyString(name, key)
	if err != nil {
		return nil, false, err
	}
	row, ok := t.rows[k]
	if !ok {
		return nil, false, nil
	}
	return row.Clone(), true, nil
}

// Put validates row and stores it, replacing any row with the same key in
// place.
func (e *Engine) Put(_ context.Context, name string, row record.Row) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, t, err := e.lookup(name)
	if err != nil {
		return err
	}
	norm, err := s.normalize(e.cue, row)
	if err != nil {
		return err
	}
	key, err := s.keyOf(norm)
	if err != nil {
		return err
	}
	t.put(key, norm)
	return nil
}

// PutAll validates every row first and then writes them all, overwriting by
// key. Nothing is written if any row is invalid.
func (e *Engine) PutAll(_ context.Context, data map[string][]record.Row) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	type keyed struct {
		key string
		row record.Row
	}
	staged := make(map[string][]keyed, len(data))
	for _, name := range sortedNames(data) {
		s, _, err := e.lookup(name)
		if err != nil {
			return err
		}
		for i, row := range data[name] {
			norm, err := s.normalize(e.cue, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			key, err := s.keyOf(norm)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			staged[name] = append(staged[name], keyed{key, norm})
		}
	}

	for name, rows := range staged {
		t := e.tables[name]
		for _, r := range rows {
			t.put(r.key, r.row)
		}
	}
	return nil
}

// Delete removes the row stored under key.
func (e *Engine) Delete(_ context.Context, name string, key record.Value) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, t, err := e.lookup(name)
	if err != nil {
		return false, err
	}
	k, err := keyString(name, key)
	if err != nil {
		return false, err
	}
	if _, ok := t.rows[k]; !ok {
		return false, nil
	}
	delete(t.rows, k)
	t.keys = slices.DeleteFunc(t.keys, func(s string) bool { return s == k })
	return true, nil
}

// ReplaceAll validates the new contents of every named table into staging
// and swaps them in only if all rows are valid. Duplicate keys are an error.
func (e *Engine) ReplaceAll(_ context.Context, data map[string][]record.Row) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	staged, err := e.stage(data)
	if err != nil {
		return err
	}
	for name, t := range staged {
		e.tables[name] = t
	}
	return nil
}

func (e *Engine) stage(data map[string][]record.Row) (map[string]*table, error) {
	staged := make(map[string]*table, len(data))
	for _, name := range sortedNames(data) {
		s, _, err := e.lookup(name)
		if err != nil {
			return nil, err
		}
		t := newTable()
		for i, row := range data[name] {
			norm, err := s.normalize(e.cue, row)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			key, err := s.keyOf(norm)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			if _, dup := t.rows[key]; dup {
				return nil, fmt.Errorf("table %s: duplicate key %q", name, key)
			}
			t.put(key, norm)
		}
		staged[name] = t
	}
	return staged, nil
}

// Serialize encodes every table as JSON.
func (e *Engine) Serialize(_ context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	img := image{Format: engine.DocumentFormat, Tables: make(map[string][]record.Row, len(e.tables))}
	for name, t := range e.tables {
		rows := make([]record.Row, 0, len(t.keys))
		for _, k := range t.keys {
			rows = append(rows, t.rows[k])
		}
		img.Tables[name] = rows
	}
	data, err := json.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("serialize documents: %w", err)
	}
	return data, nil
}

// Load replaces the engine's contents with an image produced by Serialize.
// Tables absent from the image are emptied. On error nothing changes.
func (e *Engine) Load(_ context.Context, data []byte) error {
	var img image
	if err := json.Unmarshal(data, &img); err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	if img.Format != engine.DocumentFormat {
		return fmt.Errorf("load documents: unsupported format %d", img.Format)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	all := make(map[string][]record.Row, len(e.names))
	for _, name := range e.names {
		all[name] = nil
	}
	for name, rows := range img.Tables {
		all[name] = rows
	}
	staged, err := e.stage(all)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	e.tables = staged
	return nil
}

// Close drops all rows.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name := range e.tables {
		e.tables[name] = newTable()
	}
	return nil
}

func (e *Engine) lookup(name string) (*shape, *table, error) {
	s, ok := e.shapes[name]
	if !ok {
		return nil, nil, fmt.Errorf("no such table: %s", name)
	}
	return s, e.tables[name], nil
}

func sortedNames(data map[string][]record.Row) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
