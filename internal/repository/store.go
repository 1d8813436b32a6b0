package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"returns-service/internal/models"
)

// ReturnFilter narrows a Query over return records
type ReturnFilter struct {
	TenantID     string
	Status       models.ReturnStatus
	Reason       models.ReturnReason
	OrderID      *uuid.UUID
	CustomerID   *uuid.UUID
	CreatedSince *time.Time
	Limit        int
}

// ReturnStore is the durable keyed storage for Return aggregates. The
// orchestrator depends on this interface only; Postgres and in-memory
// implementations live in this package.
type ReturnStore interface {
	// Create persists a new return aggregate with its items and an initial
	// timeline entry
	Create(ctx context.Context, ret *models.Return) error

	// GetByID retrieves a return with items and timeline.
	// Returns models.ErrReturnNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Return, error)

	// GetByRMANumber retrieves a return by its RMA number
	GetByRMANumber(ctx context.Context, rmaNumber string) (*models.Return, error)

	// Save persists the mutable fields of a return under an optimistic
	// version check: the stored version must equal expectedVersion or the
	// save fails with models.ErrConcurrentModification and nothing is
	// written. Timeline entries are committed in the same transaction.
	// On success the aggregate's version is incremented.
	Save(ctx context.Context, ret *models.Return, expectedVersion int64, entries ...models.ReturnTimeline) error

	// Query returns a read snapshot of returns matching the filter,
	// newest first
	Query(ctx context.Context, filter ReturnFilter) ([]models.Return, error)
}
