package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/roach88/studydb/internal/blob"
)

// FaultyStore wraps a blob.Store and fails selected operations on demand.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FaultyStore struct {
	blob.Store

	mu      sync.Mutex
	putErr  error
	putKey  string
	getErr  error
	puts    map[string]int
	lastPut map[string][]byte
}

var _ blob.Store = (*FaultyStore)(nil)

// NewFaultyStore wraps inner.
func NewFaultyStore(inner blob.Store) *FaultyStore {
	return &FaultyStore{
		Store:   inner,
		puts:    make(map[string]int),
		lastPut: make(map[string][]byte),
	}
}

// FailPuts makes every Put to a key containing substr return err. An empty
// substr matches every key; a nil err clears the fault.
func (s *FaultyStore) FailPuts(substr string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putKey = substr
	s.putErr = err
}

// FailGets makes every Get return err until cleared with nil.
func (s *FaultyStore) FailGets(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// Get implements blob.Store.
func (s *FaultyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	return s.Store.Get(ctx, key)
}

// Put implements blob.Store. Successful writes are counted per key.
func (s *FaultyStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	if s.putErr != nil && strings.Contains(key, s.putKey) {
		err := s.putErr
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.Store.Put(ctx, key, data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[key]++
	s.lastPut[key] = append([]byte(nil), data...)
	return nil
}

// Puts returns the number of successful writes to key.
func (s *FaultyStore) Puts(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[key]
}

// LastPut returns the bytes of the most recent successful write to key.
func (s *FaultyStore) LastPut(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPut[key]
}
