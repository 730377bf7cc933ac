package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the message log in process memory. It backs tests and
// runs where no database is configured; history then lasts only as long as
// the process.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore creates an empty in-memory message log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores one broadcast message at the end of the log.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// ListAll returns a copy of every stored message in append order.
func (s *MemoryStore) ListAll(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...), nil
}
