package recordstore

import (
	"sync"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/ports"
)

// MemoryStore keeps records in a map. It is safe for concurrent use.
type MemoryStore struct {
	records map[string]entities.StoreRecord
	mu      sync.RWMutex
}

var _ ports.RecordStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]entities.StoreRecord)}
}

// Get implements ports.RecordStore.
func (s *MemoryStore) Get(id string) (entities.StoreRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok, nil
}

// Put implements ports.RecordStore.
func (s *MemoryStore) Put(id string, rec entities.StoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec
	return nil
}

// Delete implements ports.RecordStore.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
