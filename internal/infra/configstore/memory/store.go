// Package memory provides an in-process ConfigurationStore.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripgroups/pkg/domain"
)

var _ domain.ConfigurationStore = (*Store)(nil)

// Store keeps configuration records in memory. Records are deep-copied on
// the way in and out.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.GroupConfiguration
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]domain.GroupConfiguration),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateConfiguration assigns an id when missing and stamps CreatedAt.
func (s *Store) CreateConfiguration(_ context.Context, record domain.GroupConfiguration) (domain.GroupConfiguration, error) {
	if record.VendorID == "" {
		return domain.GroupConfiguration{}, errors.New("vendor id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if _, exists := s.records[record.ID]; exists {
		return domain.GroupConfiguration{}, errors.New("configuration " + record.ID + " already exists")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	stored := domain.CloneConfiguration(record)
	s.records[record.ID] = stored
	return domain.CloneConfiguration(stored), nil
}

// ListConfigurations returns vendorID's records, newest first.
func (s *Store) ListConfigurations(_ context.Context, vendorID string) ([]domain.GroupConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GroupConfiguration, 0)
	for _, record := range s.records {
		if record.VendorID == vendorID {
			out = append(out, domain.CloneConfiguration(record))
		}
	}
	domain.SortConfigurations(out)
	return out, nil
}
