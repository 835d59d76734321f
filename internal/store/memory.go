package store

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/model"
)

// MemoryStore keeps leads in process memory. It backs tests and the
// zero-configuration development server; contents are lost on exit.
type MemoryStore struct {
	mu    sync.RWMutex
	leads map[string]model.Lead
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{leads: make(map[string]model.Lead)}
}

func (s *MemoryStore) Save(_ context.Context, lead model.Lead) (model.Lead, error) {
	if err := validateForSave(lead); err != nil {
		return model.Lead{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leads[lead.ID]; exists {
		return model.Lead{}, eris.Errorf("memory: lead %s already exists", lead.ID)
	}
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *MemoryStore) Update(_ context.Context, lead model.Lead) (model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.leads[lead.ID]
	if !ok {
		return model.Lead{}, eris.Wrapf(ErrNotFound, "memory: update lead %s", lead.ID)
	}
	lead.Timestamp = existing.Timestamp
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.Lead, error) {
	s.mu.RLock()
	out := make([]model.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, l)
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) FindByIdentity(ctx context.Context, firstName, lastName, address string) (*model.Lead, error) {
	return findByIdentity(ctx, s.List, firstName, lastName, address)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
