package store

import (
	"slices"
	"sync"
)

// Memory keeps the ledger document in memory. It is meant for tests and
// dry runs.
type Memory struct {
	mu    sync.Mutex
	data  []byte
	saved bool
}

// Load returns a copy of the last saved document.
func (m *Memory) Load() ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.data), m.saved, nil
}

// Save keeps a copy of data.
func (m *Memory) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data, m.saved = slices.Clone(data), true

	return nil
}
