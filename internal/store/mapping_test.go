package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/studydb/internal/record"
)

func TestCamelCase(t *testing.T) {
	tests := map[string]string{
		"id":              "id",
		"plan_id":         "planId",
		"last_study_date": "lastStudyDate",
		"interval_days":   "intervalDays",
	}
	for in, want := range tests {
		assert.Equal(t, want, camelCase(in), in)
	}
}

func TestTransform(t *testing.T) {
	shape := record.Table{Name: "progress", Columns: []record.Column{
		{Name: "id", Kind: record.KindInt, PrimaryKey: true},
		{Name: "streak", Kind: record.KindInt},
		{Name: "ratio", Kind: record.KindReal},
		{Name: "done", Kind: record.KindBool},
		{Name: "lastStudyDate", Kind: record.KindText},
	}}
	m := TableMapping{Source: "progress", Target: "progress", Renames: map[string]string{"streak_days": "streak"}}

	got, err := m.Transform(shape, record.Row{
		"id":              record.Int(1),
		"streak_days":     record.Int(4),
		"ratio":           record.Int(2),
		"done":            record.Int(1),
		"last_study_date": record.Null{},
	})
	require.NoError(t, err)
	assert.Equal(t, record.Row{
		"id":     record.Int(1),
		"streak": record.Int(4),
		"ratio":  record.Real(2),
		"done":   record.Bool(true),
	}, got)

	_, err = m.Transform(shape, record.Row{"done": record.Int(7)})
	assert.Error(t, err)

	_, err = m.Transform(shape, record.Row{"color": record.Text("red")})
	assert.Error(t, err)
}

func TestTransform_TaggedIdentifier(t *testing.T) {
	shape := record.Table{Name: "sessions", Columns: []record.Column{
		{Name: "id", Kind: record.KindText, PrimaryKey: true},
		{Name: "planId", Kind: record.KindText},
	}}
	m := TableMapping{Source: "study_sessions", Target: "sessions", Tagged: map[string]string{"id": "session"}}

	for in, want := range map[string]string{
		"42":         "session_42",
		"session_42": "session_42",
		"Session-7":  "session_7",
	} {
		got, err := m.Transform(shape, record.Row{"id": record.Text(in), "plan_id": record.Text("p1")})
		require.NoError(t, err, in)
		assert.Equal(t, record.Text(want), got["id"], in)
		assert.Equal(t, record.Text("p1"), got["planId"], "untagged columns keep their value")
	}

	_, err := m.Transform(shape, record.Row{"id": record.Int(42)})
	assert.Error(t, err, "integer ids cannot be coerced to text")
}
