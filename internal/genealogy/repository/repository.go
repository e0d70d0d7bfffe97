// Package repository provides persistence for cluster genealogy history
// (spec.md §3, §4.8, C8).
package repository

import (
	"context"

	"github.com/sib-swiss/dclust/pkg/model"
)

// HistoryRepository defines the interface for cluster-history persistence.
type HistoryRepository interface {
	// SaveHistory inserts the genealogy rows produced by one sweep pass.
	SaveHistory(ctx context.Context, rows []model.ClusterHistory) error

	// GetHistoryForRun retrieves every history row recorded for a run, in
	// pass order.
	GetHistoryForRun(ctx context.Context, runID string) ([]model.ClusterHistory, error)

	// GetHistoryForPass retrieves the history rows for a single pass.
	GetHistoryForPass(ctx context.Context, runID string, passOrdinal int) ([]model.ClusterHistory, error)

	// UpdateRetainFlags persists the retention decision made by the
	// selector for a batch of cluster ids within a pass.
	UpdateRetainFlags(ctx context.Context, runID string, passOrdinal int, decisions map[model.ClusterID]model.RetainState) error

	// SavePassSummary records the per-pass statistics the sweep controller
	// computed (spec.md §4.7's stop-rule inputs).
	SavePassSummary(ctx context.Context, runID string, summary model.PassSummary) error

	// GetPassSummaries retrieves every recorded pass summary for a run, in
	// pass order.
	GetPassSummaries(ctx context.Context, runID string) ([]model.PassSummary, error)
}
