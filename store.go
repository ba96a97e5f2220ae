package kompas

import (
	"context"
	"hash/fnv"
	"sync"
)

// Store is the persistence collaborator for discovery documents. Values are
// opaque bytes; the store never interprets them. Implementations must be safe
// for concurrent use.
type Store interface {
	GetItem(ctx context.Context, key string) ([]byte, bool, error)
	SetItem(ctx context.Context, key string, value []byte) error
	RemoveItem(ctx context.Context, key string) error
}

// MemoryStore is a sharded in-memory Store.
type MemoryStore struct {
	shards    []*storeShard
	numShards int
}

type storeShard struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	numShards := 16
	shards := make([]*storeShard, numShards)
	for i := range shards {
		shards[i] = &storeShard{
			items: make(map[string][]byte),
		}
	}
	return &MemoryStore{
		shards:    shards,
		numShards: numShards,
	}
}

func (s *MemoryStore) getShard(key string) *storeShard {
	hash := fnv.New32a()
	hash.Write([]byte(key))
	return s.shards[hash.Sum32()%uint32(s.numShards)]
}

func (s *MemoryStore) GetItem(_ context.Context, key string) ([]byte, bool, error) {
	shard := s.getShard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	value, exists := shard.items[key]
	if !exists {
		return nil, false, nil
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *MemoryStore) SetItem(_ context.Context, key string, value []byte) error {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	shard.items[key] = stored
	return nil
}

func (s *MemoryStore) RemoveItem(_ context.Context, key string) error {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.items, key)
	return nil
}

// Clear removes every item from the store.
func (s *MemoryStore) Clear() {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.items = make(map[string][]byte)
		shard.mu.Unlock()
	}
}
