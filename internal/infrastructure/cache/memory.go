package cache

import (
	"context"
	"sync"
	"time"

	"github.com/powderchaser/backend/internal/domain"
)

// MemoryStore is a thread-safe in-memory CacheStore.
type MemoryStore struct {
	data  map[domain.EntityType]map[string]domain.CacheEntry
	mutex sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[domain.EntityType]map[string]domain.CacheEntry),
	}
}

// Get retrieves the entry for entity and key, regardless of its age
func (s *MemoryStore) Get(ctx context.Context, entity domain.EntityType, key string) (*domain.CacheEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, exists := s.data[entity][key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	entry.Payload = clonePayload(entry.Payload)
	return &entry, nil
}

// Upsert stores the entry, replacing any previous entry for the same key
func (s *MemoryStore) Upsert(ctx context.Context, entry domain.CacheEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	bucket, ok := s.data[entry.EntityType]
	if !ok {
		bucket = make(map[string]domain.CacheEntry)
		s.data[entry.EntityType] = bucket
	}

	entry.Payload = clonePayload(entry.Payload)
	bucket[entry.Key] = entry
	return nil
}

// DeleteAll removes every entry of the entity type
func (s *MemoryStore) DeleteAll(ctx context.Context, entity domain.EntityType) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.data, entity)
	return nil
}

// DeleteExpired removes entries of the entity type cached before the given time
func (s *MemoryStore) DeleteExpired(ctx context.Context, entity domain.EntityType, before time.Time) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for key, entry := range s.data[entity] {
		if entry.CachedAt.Before(before) {
			delete(s.data[entity], key)
			removed++
		}
	}
	return removed, nil
}

// Size returns the current number of entries across all entity types (for debugging/monitoring)
func (s *MemoryStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	n := 0
	for _, bucket := range s.data {
		n += len(bucket)
	}
	return n
}

func clonePayload(p []byte) []byte {
	if p == nil {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}
