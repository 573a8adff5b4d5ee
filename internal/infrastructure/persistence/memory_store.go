package persistence

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fieldservice/backend/internal/domain/shared"
)

// MemoryRecordStore keeps collections in process memory. Used for local
// runs and tests; nothing survives a restart.
type MemoryRecordStore struct {
	mu   sync.RWMutex
	data map[shared.Collection]json.RawMessage
}

// NewMemoryRecordStore creates an empty store
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{data: make(map[shared.Collection]json.RawMessage)}
}

// Load returns a copy of the collection payload
func (s *MemoryRecordStore) Load(_ context.Context, collection shared.Collection) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[collection]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), raw...), nil
}

// Save stores a copy of data
func (s *MemoryRecordStore) Save(_ context.Context, collection shared.Collection, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[collection] = append(json.RawMessage(nil), data...)
	return nil
}

func (s *MemoryRecordStore) snapshot() map[shared.Collection]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[shared.Collection]json.RawMessage, len(s.data))
	for c, raw := range s.data {
		snap[c] = raw
	}
	return snap
}

func (s *MemoryRecordStore) restore(snap map[shared.Collection]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snap
}

// MemoryTransactionScope serializes units of work on a MemoryRecordStore and
// restores the previous state when one fails.
type MemoryTransactionScope struct {
	mu    sync.Mutex
	store *MemoryRecordStore
}

// NewMemoryTransactionScope creates a scope over store
func NewMemoryTransactionScope(store *MemoryRecordStore) *MemoryTransactionScope {
	return &MemoryTransactionScope{store: store}
}

// Execute runs fn and rolls the store back if it returns an error
func (s *MemoryTransactionScope) Execute(_ context.Context, fn func(tx shared.RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.snapshot()
	if err := fn(s.store); err != nil {
		s.store.restore(snap)
		return err
	}
	return nil
}

var (
	_ shared.RecordStore      = (*MemoryRecordStore)(nil)
	_ shared.TransactionScope = (*MemoryTransactionScope)(nil)
)
