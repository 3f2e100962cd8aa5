package history

import (
	"bytes"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store, mainly used for testing.
type MemoryStore struct {
	mut sync.RWMutex
	mem map[string][]byte
}

// NewMemoryStore creates a new MemoryStore object.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mem: make(map[string][]byte),
	}
}

// PutNew implements the Store interface.
func (s *MemoryStore) PutNew(key, value []byte) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	if _, ok := s.mem[string(key)]; ok {
		return ErrKeyExists
	}
	s.mem[string(key)] = bytes.Clone(value)
	return nil
}

// Get implements the Store interface.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	if val, ok := s.mem[string(key)]; ok {
		return bytes.Clone(val), nil
	}
	return nil, ErrKeyNotFound
}

// Seek implements the Store interface. Never returns an error.
func (s *MemoryStore) Seek(prefix []byte, f func(k, v []byte) bool) error {
	s.mut.RLock()
	keys := make([]string, 0, len(s.mem))
	for k := range s.mem {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = bytes.Clone(s.mem[k])
	}
	s.mut.RUnlock()

	for i := range keys {
		if !f([]byte(keys[i]), vals[i]) {
			break
		}
	}
	return nil
}

// Close implements the Store interface. Never returns an error.
func (s *MemoryStore) Close() error {
	return nil
}
