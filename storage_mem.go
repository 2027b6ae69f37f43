package pkstore

import (
	"bytes"
	"errors"
	"slices"
	"sort"
	"sync"
)

var errMemStorageClosed = errors.New("storage closed")

type memStorage struct {
	mu     sync.RWMutex
	items  []memKV // sorted by key
	closed bool
}

type memKV struct {
	key   []byte
	value []byte
}

// NewMemStorage returns a transient in-memory Storage intended for tests.
func NewMemStorage() Storage {
	return &memStorage{}
}

func (s *memStorage) find(key []byte) (idx int, ok bool) {
	items := s.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}

func (s *memStorage) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errMemStorageClosed
	}
	i, ok := s.find(key)
	if !ok {
		return nil, nil
	}
	return slices.Clone(s.items[i].value), nil
}

func (s *memStorage) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errMemStorageClosed
	}
	key = slices.Clone(key)
	value = slices.Clone(value)

	i, ok := s.find(key)
	if ok {
		s.items[i].value = value
		return nil
	}
	s.items = slices.Insert(s.items, i, memKV{key: key, value: value})
	return nil
}

func (s *memStorage) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errMemStorageClosed
	}
	i, ok := s.find(key)
	if !ok {
		return nil
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

func (s *memStorage) Scan(after []byte, limit int, fn func(k, v []byte) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errMemStorageClosed
	}
	start := 0
	if after != nil {
		i, ok := s.find(after)
		if ok {
			i++
		}
		start = i
	}
	end := min(start+limit, len(s.items))
	var page []memKV
	if start < end {
		// items are replaced, never mutated in place, so sharing the slices is safe
		page = slices.Clone(s.items[start:end])
	}
	s.mu.RUnlock()

	for _, kv := range page {
		if err := fn(kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	return nil
}
