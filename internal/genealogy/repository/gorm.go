package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sib-swiss/dclust/pkg/model"
)

// GormHistoryRepository implements HistoryRepository using GORM.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GormHistoryRepository.
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// SaveHistory inserts the genealogy rows produced by one sweep pass.
func (r *GormHistoryRepository) SaveHistory(ctx context.Context, rows []model.ClusterHistory) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("failed to save cluster history: %w", err)
	}
	return nil
}

// GetHistoryForRun retrieves every history row recorded for a run, in pass
// order.
func (r *GormHistoryRepository) GetHistoryForRun(ctx context.Context, runID string) ([]model.ClusterHistory, error) {
	var rows []model.ClusterHistory
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("pass_ordinal ASC, cluster_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster history: %w", err)
	}
	return rows, nil
}

// GetHistoryForPass retrieves the history rows for a single pass.
func (r *GormHistoryRepository) GetHistoryForPass(ctx context.Context, runID string, passOrdinal int) ([]model.ClusterHistory, error) {
	var rows []model.ClusterHistory
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND pass_ordinal = ?", runID, passOrdinal).
		Order("cluster_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster history for pass %d: %w", passOrdinal, err)
	}
	return rows, nil
}

// UpdateRetainFlags persists the retention decision made by the selector
// for a batch of cluster ids within a pass.
func (r *GormHistoryRepository) UpdateRetainFlags(ctx context.Context, runID string, passOrdinal int, decisions map[model.ClusterID]model.RetainState) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for clusterID, retain := range decisions {
			result := tx.Model(&model.ClusterHistory{}).
				Where("run_id = ? AND pass_ordinal = ? AND cluster_id = ?", runID, passOrdinal, clusterID).
				Update("retain", retain)
			if result.Error != nil {
				return fmt.Errorf("failed to update retain flag for cluster %d: %w", clusterID, result.Error)
			}
		}
		return nil
	})
}

// SavePassSummary records the per-pass statistics the sweep controller
// computed.
func (r *GormHistoryRepository) SavePassSummary(ctx context.Context, runID string, summary model.PassSummary) error {
	row := passSummaryRowFrom(runID, summary)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save pass summary: %w", err)
	}
	return nil
}

// GetPassSummaries retrieves every recorded pass summary for a run, in pass
// order.
func (r *GormHistoryRepository) GetPassSummaries(ctx context.Context, runID string) ([]model.PassSummary, error) {
	var rows []passSummaryRow
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("pass_ordinal ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query pass summaries: %w", err)
	}

	out := make([]model.PassSummary, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}
