package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"returns-service/internal/models"
)

// MemoryStore is an in-memory ReturnStore for tests and local development
// without Postgres. It enforces the same optimistic-version semantics as the
// Postgres repository.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]models.Return
}

var _ ReturnStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]models.Return)}
}

// Create persists a new return, assigning an ID and initial timeline entry
func (s *MemoryStore) Create(ctx context.Context, ret *models.Return) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	if ret.RMANumber == "" {
		ret.RMANumber = "RMA-" + ret.ID.String()[:8]
	}
	now := time.Now()
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = now
	}
	ret.UpdatedAt = now
	timeline := ret.CreateTimelineEntry(models.ReturnStatusRequested, "Return request submitted", nil)
	ret.Timeline = append(ret.Timeline, timeline)

	// Store a copy so callers cannot mutate shared state
	s.items[ret.ID] = cloneReturn(ret)
	return nil
}

// GetByID retrieves a return or models.ErrReturnNotFound
func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret, ok := s.items[id]
	if !ok {
		return nil, models.ErrReturnNotFound
	}
	copied := cloneReturn(&ret)
	return &copied, nil
}

// GetByRMANumber retrieves a return by RMA number
func (s *MemoryStore) GetByRMANumber(ctx context.Context, rmaNumber string) (*models.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ret := range s.items {
		if ret.RMANumber == rmaNumber {
			copied := cloneReturn(&ret)
			return &copied, nil
		}
	}
	return nil, models.ErrReturnNotFound
}

// Save overwrites a return if the stored version matches expectedVersion
func (s *MemoryStore) Save(ctx context.Context, ret *models.Return, expectedVersion int64, entries ...models.ReturnTimeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[ret.ID]
	if !ok {
		return models.ErrReturnNotFound
	}
	if current.Version != expectedVersion {
		return models.ErrConcurrentModification
	}

	ret.Version = expectedVersion + 1
	ret.UpdatedAt = time.Now()
	ret.Timeline = append(ret.Timeline, entries...)
	s.items[ret.ID] = cloneReturn(ret)
	return nil
}

// Query returns returns matching the filter, newest first
func (s *MemoryStore) Query(ctx context.Context, filter ReturnFilter) ([]models.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Return, 0, len(s.items))
	for _, ret := range s.items {
		if filter.TenantID != "" && ret.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && ret.Status != filter.Status {
			continue
		}
		if filter.Reason != "" && ret.Reason != filter.Reason {
			continue
		}
		if filter.OrderID != nil && ret.OrderID != *filter.OrderID {
			continue
		}
		if filter.CustomerID != nil && ret.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.CreatedSince != nil && ret.CreatedAt.Before(*filter.CreatedSince) {
			continue
		}
		result = append(result, cloneReturn(&ret))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

func cloneReturn(ret *models.Return) models.Return {
	copied := *ret
	copied.Items = append([]models.ReturnItem(nil), ret.Items...)
	copied.Timeline = append([]models.ReturnTimeline(nil), ret.Timeline...)
	return copied
}
