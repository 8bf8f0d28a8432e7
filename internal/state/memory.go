package state

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context, owner string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[owner]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

// Update implements Backend.
func (m *MemoryBackend) Update(ctx context.Context, owner string, fn func([]byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(m.docs[owner])
	if err != nil {
		return err
	}
	m.docs[owner] = next
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, owner)
	return nil
}

// Put seeds a raw document, for tests and imports.
func (m *MemoryBackend) Put(owner string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[owner] = raw
}
