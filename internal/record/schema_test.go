package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionsTable() Table {
	return Table{
		Name: "study_sessions",
		Columns: []Column{
			{Name: "id", Kind: KindText, NotNull: true, PrimaryKey: true},
			{Name: "topic", Kind: KindText, NotNull: true},
			{Name: "duration_minutes", Kind: KindInt, NotNull: true, HasDefault: true},
			{Name: "completed", Kind: KindInt, NotNull: true, HasDefault: true},
			{Name: "score", Kind: KindReal},
			{Name: "notes", Kind: KindText},
		},
	}
}

func TestValidateRow_Valid(t *testing.T) {
	err := sessionsTable().ValidateRow(Row{
		"id":        Text("session_1"),
		"topic":     Text("trees"),
		"completed": Bool(true),
		"score":     Int(3),
		"notes":     Null{},
	})
	require.NoError(t, err)
}

func TestValidateRow_UnknownColumn(t *testing.T) {
	err := sessionsTable().ValidateRow(Row{"id": Text("x"), "topic": Text("t"), "mood": Text("ok")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "mood"`)
}

func TestValidateRow_MissingRequired(t *testing.T) {
	err := sessionsTable().ValidateRow(Row{"id": Text("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required column "topic"`)
}

func TestValidateRow_KindMismatch(t *testing.T) {
	err := sessionsTable().ValidateRow(Row{"id": Text("x"), "topic": Int(5)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not assignable")
}

func TestValidateRow_NullInNotNull(t *testing.T) {
	err := sessionsTable().ValidateRow(Row{"id": Text("x"), "topic": Null{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null not allowed")
}

func TestColumnAccepts_BoolColumn(t *testing.T) {
	col := Column{Name: "archived", Kind: KindBool, NotNull: true}
	assert.NoError(t, col.Accepts(Bool(false)))
	assert.NoError(t, col.Accepts(Int(1)))
	assert.Error(t, col.Accepts(Int(2)))
}

func TestKindFromDecl(t *testing.T) {
	assert.Equal(t, KindInt, KindFromDecl("INTEGER"))
	assert.Equal(t, KindText, KindFromDecl("TEXT"))
	assert.Equal(t, KindText, KindFromDecl("varchar(20)"))
	assert.Equal(t, KindReal, KindFromDecl("REAL"))
	assert.Equal(t, KindReal, KindFromDecl("DOUBLE"))
	assert.Equal(t, KindText, KindFromDecl(""))
}
