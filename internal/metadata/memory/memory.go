// Package memory is an in-process metadata store for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"homeinspect/internal/core"
	"homeinspect/internal/metadata"
)

type Store struct {
	mu      sync.Mutex
	records []core.UploadRecord
}

var _ metadata.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Insert appends r with a fresh ID.
func (s *Store) Insert(_ context.Context, r core.UploadRecord) (core.UploadRecord, error) {
	if r.OwnerID == "" {
		return core.UploadRecord{}, errors.New("insert: owner id is required")
	}
	r.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return r, nil
}

// List returns matching records in insertion order.
func (s *Store) List(_ context.Context, q metadata.Query) ([]core.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.UploadRecord
	for _, r := range s.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, ownerID, id string) (core.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(ownerID, id); i >= 0 {
		return s.records[i], nil
	}
	return core.UploadRecord{}, metadata.ErrNotFound
}

func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(ownerID, id)
	if i < 0 {
		return metadata.ErrNotFound
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return nil
}

func (s *Store) find(ownerID, id string) int {
	for i, r := range s.records {
		if r.ID == id && r.OwnerID == ownerID {
			return i
		}
	}
	return -1
}
