package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MockStore is an in-memory Backend for tests.
type MockStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	refs    map[string]string
	calls   MockCalls

	// FailPut makes Put return this error when set.
	FailPut error
}

// MockCalls tracks method invocations for test verification.
type MockCalls struct {
	Put    int
	Get    int
	Exists int
	Delete int
	List   int
	SetRef int
}

// NewMockStore creates a new in-memory object store.
func NewMockStore() *MockStore {
	return &MockStore{
		objects: make(map[string]*Object),
		refs:    make(map[string]string),
	}
}

// Put stores a copy of obj and returns its content hash.
func (m *MockStore) Put(_ context.Context, obj *Object) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++
	if m.FailPut != nil {
		return "", m.FailPut
	}

	hash := hashOf(obj)
	if _, ok := m.objects[hash]; ok {
		return hash, nil
	}
	m.objects[hash] = &Object{
		Hash:     hash,
		Type:     obj.Type,
		Size:     int64(len(obj.Data)),
		Data:     slices.Clone(obj.Data),
		Metadata: newMetadata(obj, time.Now()),
	}
	return hash, nil
}

// Get returns a copy of the stored object.
func (m *MockStore) Get(_ context.Context, hash string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	obj, ok := m.objects[hash]
	if !ok {
		return nil, notFound(hash)
	}
	obj.Metadata.LastAccessed = time.Now()

	result := *obj
	result.Data = slices.Clone(obj.Data)
	result.Metadata.Custom = make(map[string]string, len(obj.Metadata.Custom))
	for k, v := range obj.Metadata.Custom {
		result.Metadata.Custom[k] = v
	}
	return &result, nil
}

// Exists checks if an object with the given hash exists.
func (m *MockStore) Exists(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++
	_, ok := m.objects[hash]
	return ok, nil
}

// Delete removes an object by its content hash.
func (m *MockStore) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++
	if _, ok := m.objects[hash]; !ok {
		return notFound(hash)
	}
	delete(m.objects, hash)
	return nil
}

// List returns all object hashes matching the given type filter, sorted.
func (m *MockStore) List(_ context.Context, objectType ObjectType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++

	var hashes []string
	for hash, obj := range m.objects {
		if objectType == "" || obj.Type == objectType {
			hashes = append(hashes, hash)
		}
	}
	slices.Sort(hashes)
	return hashes, nil
}

// SetRef points name at hash.
func (m *MockStore) SetRef(_ context.Context, name, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.SetRef++
	m.refs[name] = hash
	return nil
}

// Ref returns the hash name points at, or "".
func (m *MockStore) Ref(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs[name], nil
}

// GC removes every object whose hash is not in keep.
func (m *MockStore) GC(_ context.Context, keep map[string]bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for hash := range m.objects {
		if !keep[hash] {
			delete(m.objects, hash)
			removed++
		}
	}
	return removed, nil
}

// Close releases resources (no-op for mock).
func (m *MockStore) Close() error {
	return nil
}

// Corrupt replaces the stored bytes of hash, simulating a damaged blob.
func (m *MockStore) Corrupt(hash string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[hash]; ok {
		obj.Data = slices.Clone(data)
	}
}

// GetCalls returns the number of times each method was called.
func (m *MockStore) GetCalls() MockCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Size returns the number of stored objects.
func (m *MockStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// String returns a string representation for debugging.
func (m *MockStore) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("MockStore{objects: %d, refs: %d, calls: %+v}", len(m.objects), len(m.refs), m.calls)
}
