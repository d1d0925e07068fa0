package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/studydb/internal/record"
)

func TestParse(t *testing.T) {
	b, err := Parse([]byte(`{"version":2,"timestamp":"2024-05-06T07:08:09.123Z","data":{"b":[],"a":[{"id":1,"ok":true,"score":0.5,"note":null}]}}`))
	require.NoError(t, err)

	assert.Equal(t, 2, b.Version)
	assert.Equal(t, []string{"a", "b"}, b.Tables())
	assert.Equal(t, record.Row{
		"id":    record.Int(1),
		"ok":    record.Bool(true),
		"score": record.Real(0.5),
		"note":  record.Null{},
	}, b.Data["a"][0])

	ts, err := b.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC), ts)
}

func TestMarshalIndent_Parses(t *testing.T) {
	b := &Bundle{
		Version:   3,
		Timestamp: "2024-05-06T07:08:09.000Z",
		Data:      map[string][]record.Row{"plans": {{"id": record.Text("p1"), "weight": record.Real(2)}}},
	}
	data, err := MarshalIndent(b)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"version\": 3")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, b, back)
}
