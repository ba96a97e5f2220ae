package kompas

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore is a bounded Store backed by a fixed-size LRU cache. Useful when
// one store instance holds documents for many client identifiers and memory
// must stay bounded; least recently used slots are evicted first.
type LRUStore struct {
	cache *lru.Cache[string, []byte]
}

// NewLRUStore returns an LRUStore holding at most size entries.
func NewLRUStore(size int) (*LRUStore, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: cache}, nil
}

func (s *LRUStore) GetItem(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *LRUStore) SetItem(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.cache.Add(key, stored)
	return nil
}

func (s *LRUStore) RemoveItem(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

// Len reports the number of stored items.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
