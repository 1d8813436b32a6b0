package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"returns-service/internal/models"
)

// ReturnRepository is the Postgres-backed ReturnStore
type ReturnRepository struct {
	db *gorm.DB
}

var _ ReturnStore = (*ReturnRepository)(nil)

func NewReturnRepository(db *gorm.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

// Create persists a new return request
func (r *ReturnRepository) Create(ctx context.Context, ret *models.Return) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ret).Error; err != nil {
			return fmt.Errorf("failed to create return: %w", err)
		}

		timeline := ret.CreateTimelineEntry(
			models.ReturnStatusRequested,
			"Return request submitted",
			nil,
		)
		if err := tx.Create(&timeline).Error; err != nil {
			return fmt.Errorf("failed to create timeline entry: %w", err)
		}

		return nil
	})
}

// GetByID retrieves a return by ID with all relations
func (r *ReturnRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Return, error) {
	var ret models.Return
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Timeline").
		First(&ret, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrReturnNotFound
		}
		return nil, err
	}

	return &ret, nil
}

// GetByRMANumber retrieves a return by RMA number
func (r *ReturnRepository) GetByRMANumber(ctx context.Context, rmaNumber string) (*models.Return, error) {
	var ret models.Return
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Timeline").
		First(&ret, "rma_number = ?", rmaNumber).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrReturnNotFound
		}
		return nil, err
	}

	return &ret, nil
}

// Save persists the return's mutable fields under an optimistic version
// check. The UPDATE is guarded by the version read by the caller; zero rows
// affected means another writer got there first.
func (r *ReturnRepository) Save(ctx context.Context, ret *models.Return, expectedVersion int64, entries ...models.ReturnTimeline) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":             ret.Status,
			"comment":            ret.Comment,
			"rejection_reason":   ret.RejectionReason,
			"refund_amount":      ret.RefundAmount,
			"refund_id":          ret.RefundID,
			"tracking_number":    ret.TrackingNumber,
			"shipping_carrier":   ret.ShippingCarrier,
			"shipping_label_url": ret.ShippingLabelURL,
			"processed_at":       ret.ProcessedAt,
			"completed_at":       ret.CompletedAt,
			"version":            expectedVersion + 1,
		}

		res := tx.Model(&models.Return{}).
			Where("id = ? AND version = ?", ret.ID, expectedVersion).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to save return: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Distinguish a missing row from a version race
			var count int64
			if err := tx.Model(&models.Return{}).Where("id = ?", ret.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return models.ErrReturnNotFound
			}
			return models.ErrConcurrentModification
		}

		for i := range entries {
			if err := tx.Create(&entries[i]).Error; err != nil {
				return fmt.Errorf("failed to create timeline entry: %w", err)
			}
		}

		ret.Version = expectedVersion + 1
		return nil
	})
}

// Query returns returns matching the filter, newest first
func (r *ReturnRepository) Query(ctx context.Context, filter ReturnFilter) ([]models.Return, error) {
	query := r.db.WithContext(ctx).Model(&models.Return{})

	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Reason != "" {
		query = query.Where("reason = ?", filter.Reason)
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CreatedSince != nil {
		query = query.Where("created_at >= ?", *filter.CreatedSince)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var returns []models.Return
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Find(&returns).Error
	if err != nil {
		return nil, err
	}

	return returns, nil
}
