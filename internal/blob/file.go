package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore stores each key as a separate file in a directory.
//
// Layout:
//
//	data_dir/
//	  studydb.snapshot    # relational snapshot
//	  studydb.engine      # active engine selector
//
// Writes go to a temporary file that is renamed over the target, so a reader
// never observes a partially written value.
type FileStore struct {
	mu    sync.RWMutex
	dir   string
	quota int64
}

const tempSuffix = ".tmp"

// NewFileStore creates the directory if needed. A quota of 0 means unlimited.
func NewFileStore(dir string, quota int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{dir: dir, quota: quota}, nil
}

// fileName encodes key as a single file name inside the store directory.
// A leading dot and a trailing temp suffix are percent-encoded so that ".",
// ".." and keys that look like temp files stay ordinary entries.
func fileName(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	if strings.HasSuffix(name, tempSuffix) {
		name = strings.TrimSuffix(name, tempSuffix) + "%2Etmp"
	}
	return name, nil
}

func (s *FileStore) path(key string) (string, error) {
	name, err := fileName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read blob %q: %w", key, err)
	}
	return data, true, nil
}

func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		used, err := s.sizeWithout(filepath.Base(target))
		if err != nil {
			return err
		}
		if used+int64(len(data)) > s.quota {
			return ErrQuotaExceeded
		}
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync blob %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close blob %q: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("replace blob %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tempSuffix) {
			continue
		}
		key, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Close() error { return nil }

// sizeWithout sums stored bytes, excluding the file named skip. Caller
// holds mu.
func (s *FileStore) sizeWithout(skip string) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("measure blobs: %w", err)
	}
	var n int64
	for _, e := range entries {
		if e.IsDir() || e.Name() == skip || strings.HasSuffix(e.Name(), tempSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		n += info.Size()
	}
	return n, nil
}
