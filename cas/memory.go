package cas

import (
	"sync"

	"github.com/dgryski/go-farm"
)

type MemoryCAS struct {
	mu    sync.RWMutex
	data  map[Hash][]byte
	names map[string]Hash
}

func NewMemoryCAS() *MemoryCAS {
	return &MemoryCAS{
		data:  make(map[Hash][]byte),
		names: make(map[string]Hash),
	}
}

func (m *MemoryCAS) getValue(h Hash) (bool, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[h]
	if !ok {
		return false, nil, nil
	}
	return true, v, nil
}

func (m *MemoryCAS) Has(hash Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[hash]
	return ok
}

func (m *MemoryCAS) Put(item Hashable) (Hash, error) {
	data, err := encode(item)
	if err != nil {
		return 0, err
	}
	h := Hash(farm.Hash64(data))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[h] = data
	return h, nil
}

func (m *MemoryCAS) Bind(name string, hash Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[name] = hash
	return nil
}

func (m *MemoryCAS) Lookup(name string) (Hash, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.names[name]
	return h, ok, nil
}

// Len returns the number of stored objects.
func (m *MemoryCAS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
