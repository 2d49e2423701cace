// internal/store/memory.go
package store

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Put(_ context.Context, record *Record) error {
	touch(record)

	s.mu.Lock()
	s.records[record.ConsultationID] = *record
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, consultationID string) (*Record, error) {
	s.mu.RLock()
	record, ok := s.records[consultationID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}
