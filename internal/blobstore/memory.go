package blobstore

import (
	"context"
	"sort"
	"sync"
)

// Object is a stored blob as kept by MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
	PublicRead  bool
}

// MemoryStore keeps objects in process memory. Put and Delete failures can be
// injected for exercising partial-failure paths.
type MemoryStore struct {
	mu        sync.Mutex
	objects   map[string]Object
	putErr    error
	deleteErr error
	puts      int
	deletes   int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string, publicRead bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = Object{Data: cp, ContentType: contentType, PublicRead: publicRead}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// FailPuts makes every subsequent Put return err. Pass nil to clear.
func (m *MemoryStore) FailPuts(err error) {
	m.mu.Lock()
	m.putErr = err
	m.mu.Unlock()
}

// FailDeletes makes every subsequent Delete return err. Pass nil to clear.
func (m *MemoryStore) FailDeletes(err error) {
	m.mu.Lock()
	m.deleteErr = err
	m.mu.Unlock()
}

// Get returns the object under key.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys returns all stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls reports how many Put and Delete calls were attempted.
func (m *MemoryStore) Calls() (puts, deletes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts, m.deletes
}
