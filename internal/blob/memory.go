package blob

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
}

// NewMemoryStore creates an empty store. A quota of 0 means unlimited;
// otherwise the summed size of all values may not exceed quota bytes.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte), quota: quota}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 && s.sizeWithout(key)+len(data) > s.quota {
		return ErrQuotaExceeded
	}
	v := make([]byte, len(data))
	copy(v, data)
	s.data[key] = v
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Close() error { return nil }

// sizeWithout sums stored bytes, excluding key. Caller holds mu.
func (s *MemoryStore) sizeWithout(key string) int {
	n := 0
	for k, v := range s.data {
		if k != key {
			n += len(v)
		}
	}
	return n
}
