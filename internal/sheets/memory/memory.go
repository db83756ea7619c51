// Package memory keeps exported reports in process.
package memory

import (
	"context"
	"fmt"
	"sync"

	"homeinspect/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	reports map[string]sheets.Report
	exports int
}

var _ sheets.ReportExporter = (*Store)(nil)

func New() *Store {
	return &Store{reports: make(map[string]sheets.Report)}
}

// Export replaces the owner's report.
func (s *Store) Export(_ context.Context, r sheets.Report) (string, error) {
	if r.OwnerID == "" {
		return "", fmt.Errorf("export: owner id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.OwnerID] = r
	s.exports++
	return fmt.Sprintf("mem:%s", r.OwnerID), nil
}

// Report returns the latest export for ownerID.
func (s *Store) Report(ownerID string) (sheets.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[ownerID]
	return r, ok
}

// Exports counts Export calls.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
