package document

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/studydb/internal/record"
)

// TableDef binds a table name to the CUE definition describing its rows.
type TableDef struct {
	// Name is the table name.
	Name string

	// Key is the field that identifies a row within the table.
	Key string

	// Definition is the CUE path of the row definition, e.g. "#Session".
	Definition string
}

// shape is a compiled TableDef.
type shape struct {
	def      TableDef
	value    cue.Value
	table    record.Table
	defaults map[string]record.Value
	optional map[string]bool
}

func compileShape(root cue.Value, def TableDef) (*shape, error) {
	v := root.LookupPath(cue.ParsePath(def.Definition))
	if !v.Exists() {
		return nil, fmt.Errorf("table %s: definition %s not found", def.Name, def.Definition)
	}
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("table %s: %w", def.Name, err)
	}

	s := &shape{
		def:      def,
		value:    v,
		table:    record.Table{Name: def.Name},
		defaults: make(map[string]record.Value),
		optional: make(map[string]bool),
	}

	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", def.Name, err)
	}
	for iter.Next() {
		// Optional and required labels carry a ? or ! marker.
		name := strings.TrimRight(iter.Selector().String(), "?!")
		fv := iter.Value()
		col := record.Column{
			Name:       name,
			Kind:       kindOf(fv.IncompleteKind()),
			NotNull:    !iter.IsOptional(),
			PrimaryKey: name == def.Key,
		}
		if d, ok := fv.Default(); ok {
			dv, err := concreteValue(d, col.Kind)
			if err != nil {
				return nil, fmt.Errorf("table %s: default for %s: %w", def.Name, name, err)
			}
			s.defaults[name] = dv
			col.HasDefault = true
		}
		if iter.IsOptional() {
			s.optional[name] = true
		}
		s.table.Columns = append(s.table.Columns, col)
	}

	if _, ok := s.table.Column(def.Key); !ok {
		return nil, fmt.Errorf("table %s: key field %q not in %s", def.Name, def.Key, def.Definition)
	}
	return s, nil
}

func kindOf(k cue.Kind) record.Kind {
	switch {
	case k == cue.IntKind:
		return record.KindInt
	case k&cue.FloatKind != 0:
		return record.KindReal
	case k == cue.BoolKind:
		return record.KindBool
	default:
		return record.KindText
	}
}

func concreteValue(v cue.Value, kind record.Kind) (record.Value, error) {
	switch kind {
	case record.KindInt:
		n, err := v.Int64()
		return record.Int(n), err
	case record.KindReal:
		f, err := v.Float64()
		return record.Real(f), err
	case record.KindBool:
		b, err := v.Bool()
		return record.Bool(b), err
	default:
		s, err := v.String()
		return record.Text(s), err
	}
}

// normalize fills defaults, drops nulls in optional fields, and validates
// the row against the CUE definition. Caller holds the engine lock.
func (s *shape) normalize(cctx *cue.Context, row record.Row) (record.Row, error) {
	out := make(record.Row, len(row)+len(s.defaults))
	for k, v := range row {
		if _, ok := s.table.Column(k); !ok {
			return nil, fmt.Errorf("table %s: unknown field %q", s.def.Name, k)
		}
		if v == nil || v.Kind() == record.KindNull {
			if s.optional[k] {
				continue
			}
			if d, ok := s.defaults[k]; ok {
				out[k] = d
				continue
			}
		}
		out[k] = s.coerce(k, v)
	}
	for k, d := range s.defaults {
		if _, ok := out[k]; !ok {
			out[k] = d
		}
	}

	doc := make(map[string]any, len(out))
	for k, v := range out {
		doc[k] = record.Go(v)
	}
	unified := s.value.Unify(cctx.Encode(doc))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("table %s: %s", s.def.Name, errors.Details(err, nil))
	}
	return out, nil
}

// coerce widens Int to Real and 0/1 to Bool where the field asks for it.
func (s *shape) coerce(field string, v record.Value) record.Value {
	col, ok := s.table.Column(field)
	if !ok {
		return v
	}
	n, isInt := v.(record.Int)
	switch {
	case isInt && col.Kind == record.KindReal:
		return record.Real(n)
	case isInt && col.Kind == record.KindBool && (n == 0 || n == 1):
		return record.Bool(n == 1)
	}
	return v
}

// keyOf returns the string form of the row's key.
func (s *shape) keyOf(row record.Row) (string, error) {
	return keyString(s.def.Name, row.Get(s.def.Key))
}

func keyString(table string, v record.Value) (string, error) {
	switch k := v.(type) {
	case record.Text:
		return string(k), nil
	case record.Int:
		return strconv.FormatInt(int64(k), 10), nil
	default:
		return "", fmt.Errorf("table %s: key must be text or int, got %s", table, v.Kind())
	}
}
