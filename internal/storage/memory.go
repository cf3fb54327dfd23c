package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore is a thread-safe, in-memory ObjectStore for testing and
// development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject // "<bucket>/<key>"
}

// Compile-time check that MemoryStore implements ObjectStore.
var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Download fetches the full object at key.
func (s *MemoryStore) Download(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	obj, ok := s.objects[objectKey(bucket, key)]
	s.mu.RUnlock()

	if !ok {
		return nil, NotFound(bucket, key)
	}

	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

// Upload stores data at key.
func (s *MemoryStore) Upload(_ context.Context, bucket, key string, data []byte, contentType string, upsert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := objectKey(bucket, key)
	if _, exists := s.objects[k]; exists && !upsert {
		return fmt.Errorf("object already exists: %s/%s", bucket, key)
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[k] = memoryObject{data: stored, contentType: contentType}
	return nil
}

// Exists reports whether an object is present at key.
func (s *MemoryStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[objectKey(bucket, key)]
	return ok, nil
}

// List returns the keys under prefix, sorted.
func (s *MemoryStore) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	full := objectKey(bucket, prefix)
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, full) {
			keys = append(keys, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes an object; used by tests to simulate storage gaps.
func (s *MemoryStore) Delete(_ context.Context, bucket, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey(bucket, key))
}
