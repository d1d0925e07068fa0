package record

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowMarshalJSON_SortedKeys(t *testing.T) {
	r := Row{
		"topic":    Text("graphs"),
		"duration": Int(30),
		"ease":     Real(2.5),
		"done":     Bool(true),
		"notes":    Null{},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"done":true,"duration":30,"ease":2.5,"notes":null,"topic":"graphs"}`, string(data))
}

func TestRowMarshalJSON_WholeRealKeepsFraction(t *testing.T) {
	data, err := json.Marshal(Row{"ease": Real(2)})
	require.NoError(t, err)
	assert.Equal(t, `{"ease":2.0}`, string(data))

	var back Row
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Real(2), back["ease"])
}

func TestRowMarshalJSON_RejectsNaN(t *testing.T) {
	_, err := json.Marshal(Row{"ease": Real(math.NaN())})
	require.Error(t, err)
}

func TestRowUnmarshalJSON_Variants(t *testing.T) {
	var r Row
	err := json.Unmarshal([]byte(`{"a":"x","b":7,"c":1.25,"d":false,"e":null,"f":1e3}`), &r)
	require.NoError(t, err)

	assert.Equal(t, Text("x"), r["a"])
	assert.Equal(t, Int(7), r["b"])
	assert.Equal(t, Real(1.25), r["c"])
	assert.Equal(t, Bool(false), r["d"])
	assert.Equal(t, Null{}, r["e"])
	assert.Equal(t, Real(1000), r["f"])
}

func TestRowUnmarshalJSON_RejectsNested(t *testing.T) {
	var r Row
	err := json.Unmarshal([]byte(`{"tags":["a","b"]}`), &r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tags")
}

func TestRowUnmarshalJSON_LargeInt(t *testing.T) {
	var r Row
	require.NoError(t, json.Unmarshal([]byte(`{"n":9007199254740993}`), &r))
	assert.Equal(t, Int(9007199254740993), r["n"])
}

func TestFromSQL(t *testing.T) {
	tests := []struct {
		in   any
		want Value
	}{
		{nil, Null{}},
		{"s", Text("s")},
		{[]byte("b"), Text("b")},
		{int64(4), Int(4)},
		{3.5, Real(3.5)},
		{true, Bool(true)},
	}
	for _, tt := range tests {
		got, err := FromSQL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := FromSQL(struct{}{})
	require.Error(t, err)
}

func TestBoolSQL(t *testing.T) {
	assert.Equal(t, int64(1), Bool(true).SQL())
	assert.Equal(t, int64(0), Bool(false).SQL())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Real(1)))
	assert.True(t, Equal(nil, Null{}))
	assert.False(t, Equal(Text("a"), Text("b")))
}

func TestRowGet_MissingIsNull(t *testing.T) {
	r := Row{"a": Int(1)}
	assert.Equal(t, Null{}, r.Get("b"))
	assert.Equal(t, Int(1), r.Get("a"))
}
