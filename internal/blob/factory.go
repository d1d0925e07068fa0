package blob

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by New.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"file"   - one file per key in dataDir (default)
//	"sqlite" - SQLite database at dataDir/blobs.db
//	"memory" - in-memory (ephemeral, for testing)
func New(backend, dataDir string, quota int64) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dataDir, quota)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dataDir, "blobs.db"), quota)
	case BackendMemory:
		return NewMemoryStore(int(quota)), nil
	default:
		return nil, fmt.Errorf("unknown blob backend: %q (supported: file, sqlite, memory)", backend)
	}
}
