// Package memory is an in-process blob store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"homeinspect/internal/blob"
)

type object struct {
	data        []byte
	contentType string
}

type Store struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]object
}

var _ blob.Store = (*Store)(nil)

func New(baseURL string) *Store {
	if baseURL == "" {
		baseURL = "memory://inspection-images"
	}
	return &Store{baseURL: baseURL, objects: make(map[string]object)}
}

// Put stores a copy of data under key, replacing any previous object.
func (s *Store) Put(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("put: empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// Delete removes key. Deleting a missing key is not an error, matching object stores.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Store) PublicURL(key string) string {
	return blob.JoinURL(s.baseURL, key)
}

// Get returns the stored object.
func (s *Store) Get(_ context.Context, key string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", blob.ErrNotFound
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
