package services

import (
	"context"
	"fmt"
	"time"

	"returns-service/internal/models"
	"returns-service/internal/repository"
)

// StatsWindow is a fixed lookback window for return statistics
type StatsWindow string

const (
	StatsWindow7Days  StatsWindow = "7d"
	StatsWindow30Days StatsWindow = "30d"
	StatsWindow90Days StatsWindow = "90d"
	StatsWindow1Year  StatsWindow = "1y"
)

var statsWindowDurations = map[StatsWindow]time.Duration{
	StatsWindow7Days:  7 * 24 * time.Hour,
	StatsWindow30Days: 30 * 24 * time.Hour,
	StatsWindow90Days: 90 * 24 * time.Hour,
	StatsWindow1Year:  365 * 24 * time.Hour,
}

// ReturnStats is the aggregated reporting view over a lookback window
type ReturnStats struct {
	Window            StatsWindow                    `json:"window"`
	TotalReturns      int64                          `json:"totalReturns"`
	TotalRefundAmount float64                        `json:"totalRefundAmount"`
	ReasonCounts      map[models.ReturnReason]int64  `json:"reasonCounts"`
	StatusCounts      map[models.ReturnStatus]int64  `json:"statusCounts"`
}

// GetReturnStats aggregates counts, refund totals and reason/status
// breakdowns over a read snapshot of the tenant's returns. An empty window
// yields zeroed counters, not an error.
func (s *ReturnService) GetReturnStats(ctx context.Context, tenantID string, window StatsWindow) (*ReturnStats, error) {
	duration, ok := statsWindowDurations[window]
	if !ok {
		return nil, models.NewValidationError("window", fmt.Sprintf("unknown stats window %q", window))
	}

	cacheKey := fmt.Sprintf("returns:stats:%s:%s", tenantID, window)
	var cached ReturnStats
	if s.statsCache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	since := time.Now().Add(-duration)
	snapshot, err := s.store.Query(ctx, repository.ReturnFilter{
		TenantID:     tenantID,
		CreatedSince: &since,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query returns for stats: %w", err)
	}

	stats := &ReturnStats{
		Window:       window,
		ReasonCounts: make(map[models.ReturnReason]int64),
		StatusCounts: make(map[models.ReturnStatus]int64),
	}
	for _, ret := range snapshot {
		stats.TotalReturns++
		stats.ReasonCounts[ret.Reason]++
		stats.StatusCounts[ret.Status]++
		if ret.Status == models.ReturnStatusRefunded && ret.RefundAmount != nil {
			stats.TotalRefundAmount += *ret.RefundAmount
		}
	}

	s.statsCache.Set(ctx, cacheKey, stats)

	return stats, nil
}
