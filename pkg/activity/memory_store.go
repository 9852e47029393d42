package activity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// MemoryStore keeps activity in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*domain.ActivityLogEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := *entry
	s.mu.Lock()
	s.entries = append(s.entries, &c)
	s.mu.Unlock()
	return nil
}

// ListByOrganization implements Store.
func (s *MemoryStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*domain.ActivityLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ActivityLogEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].OrganizationID == orgID {
			c := *s.entries[i]
			out = append(out, &c)
		}
	}
	return out, nil
}
