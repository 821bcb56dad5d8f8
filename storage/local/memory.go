package localstore

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/KeviinDCV/NotionK4S/core"
)

// MemoryMirror is an in-memory core.Mirror for tests and throwaway runs.
type MemoryMirror struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

var _ core.Mirror = (*MemoryMirror)(nil)

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{snapshots: make(map[string][]byte)}
}

func (m *MemoryMirror) Save(name string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshaling %q snapshot", name)
	}
	m.mu.Lock()
	m.snapshots[name] = payload
	m.mu.Unlock()
	return nil
}

func (m *MemoryMirror) Load(name string, into interface{}) (bool, error) {
	m.mu.RLock()
	payload, ok := m.snapshots[name]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, into); err != nil {
		return false, errors.Wrapf(err, "unmarshaling %q snapshot", name)
	}
	return true, nil
}
