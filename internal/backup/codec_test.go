package backup

import (
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/studydb/internal/engine"
	"github.com/roach88/studydb/internal/record"
	"github.com/roach88/studydb/internal/relational"
)

const testSchema = `
CREATE TABLE plans (
	id TEXT PRIMARY KEY NOT NULL,
	title TEXT NOT NULL,
	weight REAL NOT NULL DEFAULT 1.0,
	archived BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE progress (
	id INTEGER PRIMARY KEY,
	xp INTEGER NOT NULL DEFAULT 0,
	note TEXT
);
`

const testSeed = `
INSERT INTO plans (id, title, weight, archived) VALUES ('p1', 'Go', 1.5, 0), ('p2', 'SQL', 2.0, 1);
INSERT INTO progress (id, xp, note) VALUES (1, 120, NULL);
`

func fixedNow() time.Time {
	return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
}

func newEngine(t *testing.T, seed bool) *relational.Engine {
	t.Helper()
	script := testSchema
	if seed {
		script += testSeed
	}
	e, err := relational.Create(context.Background(), script)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func newCodec(e engine.Engine) *Codec {
	return &Codec{Engine: e, Version: 3, Now: fixedNow}
}

func counts(t *testing.T, e engine.Engine) map[string]int {
	t.Helper()
	ctx := context.Background()
	names, err := e.Tables(ctx)
	require.NoError(t, err)
	out := make(map[string]int, len(names))
	for _, name := range names {
		n, err := e.Count(ctx, name)
		require.NoError(t, err)
		out[name] = n
	}
	return out
}

func TestExportAll_Golden(t *testing.T) {
	e := newEngine(t, true)

	data, err := newCodec(e).ExportAll(context.Background())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "export_bundle", data)
}

func TestExport_EmptyTables(t *testing.T) {
	e := newEngine(t, false)

	b, err := newCodec(e).Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, b.Version)
	assert.Equal(t, "2024-05-06T07:08:09.000Z", b.Timestamp)
	assert.Equal(t, []string{"plans", "progress"}, b.Tables())
	assert.NotNil(t, b.Data["plans"])
	assert.Empty(t, b.Data["plans"])
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newEngine(t, true)
	data, err := newCodec(src).ExportAll(ctx)
	require.NoError(t, err)

	dst := newEngine(t, false)
	_, err = newCodec(dst).ImportAll(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, counts(t, src), counts(t, dst))
	for _, name := range []string{"plans", "progress"} {
		want, err := src.ReadAll(ctx, name)
		require.NoError(t, err)
		got, err := dst.ReadAll(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestImportAll_ReplacesOnlyNamedTables(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, true)

	bundle := `{"version":3,"timestamp":"2024-05-06T07:08:09.000Z","data":{"plans":[{"id":"p9","title":"Rust"}]}}`
	b, err := newCodec(e).ImportAll(ctx, []byte(bundle))
	require.NoError(t, err)
	assert.Equal(t, []string{"plans"}, b.Tables())

	assert.Equal(t, map[string]int{"plans": 1, "progress": 1}, counts(t, e))
	rows, err := e.ReadAll(ctx, "plans")
	require.NoError(t, err)
	assert.Equal(t, record.Real(1), rows[0]["weight"], "column default applied")
}

func TestImportAll_RejectsWithoutMutation(t *testing.T) {
	tests := []struct {
		name   string
		bundle string
	}{
		{"malformed json", `{"version": 3, "data": {`},
		{"not an object", `[1, 2, 3]`},
		{"missing version", `{"timestamp":"2024-05-06T07:08:09.000Z","data":{}}`},
		{"missing timestamp", `{"version":3,"data":{}}`},
		{"missing data", `{"version":3,"timestamp":"2024-05-06T07:08:09.000Z"}`},
		{"bad timestamp", `{"version":3,"timestamp":"yesterday","data":{}}`},
		{"newer version", `{"version":4,"timestamp":"2024-05-06T07:08:09.000Z","data":{}}`},
		{"zero version", `{"version":0,"timestamp":"2024-05-06T07:08:09.000Z","data":{}}`},
		{"unknown table", `{"version":3,"timestamp":"2024-05-06T07:08:09.000Z","data":{"plans":[],"habits":[]}}`},
		{"unknown column", `{"version":3,"timestamp":"2024-05-06T07:08:09.000Z","data":{"plans":[{"id":"a","title":"A","color":"red"}]}}`},
		{"wrong kind", `{"version":3,"timestamp":"2024-05-06T07:08:09.000Z","data":{"progress":[{"id":1,"xp":"lots"}]}}`},
		{"missing required", `{"version":3,"timestamp":"2024-05-06T07:08:09.000Z","data":{"plans":[{"id":"a"}]}}`},
		{"nested value", `{"version":3,"timestamp":"2024-05-06T07:08:09.000Z","data":{"plans":[{"id":"a","title":["x"]}]}}`},
		{"duplicate key", `{"version":3,"timestamp":"2024-05-06T07:08:09.000Z","data":{"plans":[{"id":"a","title":"A"},{"id":"a","title":"B"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, true)
			before := counts(t, e)

			_, err := newCodec(e).ImportAll(context.Background(), []byte(tt.bundle))
			require.Error(t, err)
			assert.True(t, engine.IsBackupFormat(err), "got %v", err)
			assert.Equal(t, before, counts(t, e))
		})
	}
}

func TestImportAll_OlderVersionAccepted(t *testing.T) {
	e := newEngine(t, true)
	bundle := `{"version":1,"timestamp":"2023-01-01T00:00:00Z","data":{"progress":[]}}`

	_, err := newCodec(e).ImportAll(context.Background(), []byte(bundle))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"plans": 2, "progress": 0}, counts(t, e))
}

func TestSnapshotBlob(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, true)

	blob, err := newCodec(e).SnapshotBlob(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	loaded, err := relational.Load(ctx, blob)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, counts(t, e), counts(t, loaded))
}
