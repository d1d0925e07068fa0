package store

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/studydb/internal/document"
	"github.com/roach88/studydb/internal/record"
	"github.com/roach88/studydb/internal/relational"
)

// TableMapping describes how rows of a relational table become documents.
type TableMapping struct {
	// Source is the relational table.
	Source string

	// Target is the document table.
	Target string

	// Renames maps source columns to document fields. Columns not listed
	// are renamed from snake_case to camelCase.
	Renames map[string]string

	// Tagged maps source columns to the prefix of their tagged identifier
	// form. Values are rewritten with relational.NormalizeID, so rows that
	// bypassed the key-format schema migration still become valid documents.
	Tagged map[string]string
}

// DocumentTables returns the document tables and their CUE definitions.
func DocumentTables() []document.TableDef {
	return []document.TableDef{
		{Name: "plans", Key: "id", Definition: "#Plan"},
		{Name: "sessions", Key: "id", Definition: "#Session"},
		{Name: "settings", Key: "key", Definition: "#Setting"},
		{Name: "progress", Key: "id", Definition: "#Progress"},
		{Name: "flashcards", Key: "id", Definition: "#Flashcard"},
	}
}

// DefaultMappings maps every study table to its document table.
func DefaultMappings() []TableMapping {
	return []TableMapping{
		{Source: "study_plans", Target: "plans"},
		{Source: "study_sessions", Target: "sessions", Tagged: map[string]string{"id": "session"}},
		{Source: "settings", Target: "settings"},
		{Source: "progress", Target: "progress", Renames: map[string]string{"streak_days": "streak"}},
		{Source: "flashcards", Target: "flashcards"},
	}
}

var titleCase = cases.Title(language.Und, cases.NoLower)

// camelCase converts a snake_case column name to a camelCase field name.
func camelCase(column string) string {
	parts := strings.Split(column, "_")
	for i := 1; i < len(parts); i++ {
		parts[i] = titleCase.String(parts[i])
	}
	return strings.Join(parts, "")
}

// field returns the document field for a source column.
func (m TableMapping) field(column string) string {
	if f, ok := m.Renames[column]; ok {
		return f
	}
	return camelCase(column)
}

// Transform converts one relational row into the document shape: columns
// are renamed, values coerced to the field kinds, and nulls dropped so the
// document defaults apply.
func (m TableMapping) Transform(shape record.Table, row record.Row) (record.Row, error) {
	out := make(record.Row, len(row))
	for _, col := range row.SortedKeys() {
		v := row[col]
		name := m.field(col)
		field, ok := shape.Column(name)
		if !ok {
			return nil, fmt.Errorf("%s.%s: no field %q in %s", m.Source, col, name, m.Target)
		}
		if v == nil || v.Kind() == record.KindNull {
			continue
		}
		cv, err := coerce(v, field.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.Source, col, err)
		}
		if prefix, ok := m.Tagged[col]; ok {
			text, ok := cv.(record.Text)
			if !ok {
				return nil, fmt.Errorf("%s.%s: tagged identifier must be text, got %s", m.Source, col, cv.Kind())
			}
			cv = record.Text(relational.NormalizeID(prefix, string(text)))
		}
		out[name] = cv
	}
	return out, nil
}

func coerce(v record.Value, kind record.Kind) (record.Value, error) {
	if v.Kind() == kind {
		return v, nil
	}
	switch val := v.(type) {
	case record.Int:
		switch kind {
		case record.KindReal:
			return record.Real(val), nil
		case record.KindBool:
			if val == 0 || val == 1 {
				return record.Bool(val == 1), nil
			}
		}
	case record.Bool:
		if kind == record.KindInt {
			if val {
				return record.Int(1), nil
			}
			return record.Int(0), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %s %s to %s", v.Kind(), record.String(v), kind)
}
