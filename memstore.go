package enroll

import (
	"context"
	"sync"
)

// MemoryCredentialStore is a process-local [CredentialStore] for tests,
// examples, and single-instance deployments that do not need durability.
// The credstore subpackage provides the Postgres-backed implementation.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	records map[string]*StoredCredential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		records: make(map[string]*StoredCredential),
	}
}

func (s *MemoryCredentialStore) Insert(_ context.Context, rec *StoredCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *MemoryCredentialStore) FindByOwnerAndPhone(_ context.Context, ownerID, phone string) (*StoredCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.OwnerID == ownerID && rec.Phone == phone && rec.Status == CredentialStatusActive {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *MemoryCredentialStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Len reports the number of stored records.
func (s *MemoryCredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
