package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/studydb/internal/backup"
)

// run executes the CLI against dataDir and returns stdout and the exit code.
func run(t *testing.T, dataDir string, args ...string) (string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--data-dir", dataDir}, args...)
	code := Execute(context.Background(), full, &stdout, &stderr)
	if code != ExitSuccess {
		t.Logf("studydb %v: exit %d\nstderr: %s", args, code, stderr.String())
	}
	return stdout.String(), code
}

// runJSON executes a command with --format json and decodes the response.
func runJSON(t *testing.T, dataDir string, args ...string) (CLIResponse, int) {
	t.Helper()
	out, code := run(t, dataDir, append([]string{"--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, code
}

func dataMap(t *testing.T, resp CLIResponse) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	resp, code := runJSON(t, dir, "init")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "ok", resp.Status)

	data := dataMap(t, resp)
	assert.Equal(t, "relational", data["engine"])
	assert.Equal(t, float64(3), data["schema_version"])

	tables, ok := data["tables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), tables["progress"])
	assert.Equal(t, float64(3), tables["settings"])
	assert.Equal(t, float64(0), tables["study_plans"])

	// The snapshot is durable, so a second init sees the same store.
	out, code := run(t, dir, "init")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "engine relational, schema version 3")
}

func TestSessionAdd_Relational(t *testing.T) {
	dir := t.TempDir()

	resp, code := runJSON(t, dir, "session", "add", "--plan", "p1", "--topic", "goroutines", "--minutes", "25")
	require.Equal(t, ExitSuccess, code)
	data := dataMap(t, resp)
	assert.Equal(t, "relational", data["engine"])
	assert.Regexp(t, `^session_[0-9a-f-]{36}$`, data["id"])

	resp, code = runJSON(t, dir, "stats")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, float64(1), dataMap(t, resp)["study_sessions"])
}

func TestSessionAdd_MissingFlag(t *testing.T) {
	_, code := run(t, t.TempDir(), "session", "add", "--topic", "goroutines")
	assert.NotEqual(t, ExitSuccess, code)
}

func TestSessionAdd_NegativeMinutes(t *testing.T) {
	_, code := run(t, t.TempDir(), "session", "add", "--plan", "p1", "--topic", "x", "--minutes", "-5")
	assert.Equal(t, ExitCommandError, code)
}

func TestExportImport(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	bundlePath := filepath.Join(t.TempDir(), "backup.json")

	_, code := run(t, src, "session", "add", "--plan", "p1", "--topic", "channels", "--minutes", "40", "--notes", "buffered")
	require.Equal(t, ExitSuccess, code)

	_, code = run(t, src, "export", "-o", bundlePath)
	require.Equal(t, ExitSuccess, code)

	raw, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	b, err := backup.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Version)
	require.Len(t, b.Data["study_sessions"], 1)

	_, code = run(t, dst, "import", bundlePath)
	require.Equal(t, ExitSuccess, code)

	resp, code := runJSON(t, dst, "stats")
	require.Equal(t, ExitSuccess, code)
	stats := dataMap(t, resp)
	assert.Equal(t, float64(1), stats["study_sessions"])
	assert.Equal(t, float64(1), stats["progress"])
}

func TestExport_Stdout(t *testing.T) {
	out, code := run(t, t.TempDir(), "export")
	require.Equal(t, ExitSuccess, code)

	b, err := backup.Parse([]byte(out))
	require.NoError(t, err)
	assert.Contains(t, b.Tables(), "settings")
}

func TestImport_RejectsMalformedBundle(t *testing.T) {
	dir := t.TempDir()
	bundlePath := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bundlePath, []byte(`{"version": 99, "timestamp": "2024-05-06T07:08:09.000Z", "data": {}}`), 0o644))

	resp, code := runJSON(t, dir, "import", bundlePath)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BACKUP_FORMAT", resp.Error.Code)
	assert.Equal(t, ExitFailure, resp.Error.ExitCode)

	// Nothing changed.
	resp, code = runJSON(t, dir, "stats")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, float64(3), dataMap(t, resp)["settings"])
}

func TestImport_MissingFile(t *testing.T) {
	_, code := run(t, t.TempDir(), "import", filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, ExitCommandError, code)
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "studydb.sqlite")

	resp, code := runJSON(t, dir, "snapshot", "-o", path)
	require.Equal(t, ExitSuccess, code)

	image, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, float64(len(image)), dataMap(t, resp)["bytes"])
	assert.True(t, bytes.HasPrefix(image, []byte("SQLite format 3\x00")))
}

func TestSwitchEngine(t *testing.T) {
	dir := t.TempDir()

	_, code := run(t, dir, "session", "add", "--plan", "p1", "--topic", "maps", "--minutes", "10")
	require.Equal(t, ExitSuccess, code)

	resp, code := runJSON(t, dir, "status")
	require.Equal(t, ExitSuccess, code)
	status := dataMap(t, resp)
	assert.Equal(t, "relational", status["engine"])
	assert.Equal(t, true, status["migration_needed"])

	out, code := run(t, dir, "switch", "document")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Switched from relational to document")

	resp, code = runJSON(t, dir, "status")
	require.Equal(t, ExitSuccess, code)
	status = dataMap(t, resp)
	assert.Equal(t, "document", status["engine"])
	assert.Equal(t, false, status["migration_needed"])

	// New sessions land in the document engine.
	resp, code = runJSON(t, dir, "session", "add", "--plan", "p1", "--topic", "slices", "--minutes", "15")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "document", dataMap(t, resp)["engine"])

	resp, code = runJSON(t, dir, "stats")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, float64(2), dataMap(t, resp)["sessions"])

	out, code = run(t, dir, "switch", "document")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Already on document")

	out, code = run(t, dir, "switch", "relational")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Switched from document to relational")

	resp, code = runJSON(t, dir, "stats")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, float64(1), dataMap(t, resp)["study_sessions"])
}

func TestSwitch_UnknownEngine(t *testing.T) {
	_, code := run(t, t.TempDir(), "switch", "graph")
	assert.Equal(t, ExitCommandError, code)
}

func TestInvalidBackend(t *testing.T) {
	resp, code := runJSON(t, t.TempDir(), "--backend", "s3", "stats")
	assert.Equal(t, ExitCommandError, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "COMMAND", resp.Error.Code)
}

func TestMemoryBackend(t *testing.T) {
	resp, code := runJSON(t, t.TempDir(), "--backend", "memory", "init")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "relational", dataMap(t, resp)["engine"])
}
