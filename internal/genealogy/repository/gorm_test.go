package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sib-swiss/dclust/pkg/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&model.ClusterHistory{}, &passSummaryRow{})
	require.NoError(t, err)

	return db
}

func TestGormHistoryRepository_SaveAndGetHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()

	rows := []model.ClusterHistory{
		{RunID: "run-1", PassOrdinal: 0, Cutoff: 4.0, ClusterID: 4_000_001, EventCount: 120, Retain: model.RetainUnknown},
		{RunID: "run-1", PassOrdinal: 0, Cutoff: 4.0, ClusterID: 4_000_002, EventCount: 80, Retain: model.RetainUnknown},
	}
	require.NoError(t, repo.SaveHistory(ctx, rows))

	got, err := repo.GetHistoryForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ClusterID(4_000_001), got[0].ClusterID)
}

func TestGormHistoryRepository_SaveHistory_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormHistoryRepository(db)
	assert.NoError(t, repo.SaveHistory(context.Background(), nil))
}

func TestGormHistoryRepository_GetHistoryForPass(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SaveHistory(ctx, []model.ClusterHistory{
		{RunID: "run-1", PassOrdinal: 0, ClusterID: 1},
		{RunID: "run-1", PassOrdinal: 1, ClusterID: 2},
	}))

	pass0, err := repo.GetHistoryForPass(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, pass0, 1)
	assert.Equal(t, model.ClusterID(1), pass0[0].ClusterID)
}

func TestGormHistoryRepository_UpdateRetainFlags(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SaveHistory(ctx, []model.ClusterHistory{
		{RunID: "run-1", PassOrdinal: 0, ClusterID: 10},
		{RunID: "run-1", PassOrdinal: 0, ClusterID: 20},
	}))

	err := repo.UpdateRetainFlags(ctx, "run-1", 0, map[model.ClusterID]model.RetainState{
		10: model.RetainYes,
		20: model.RetainNo,
	})
	require.NoError(t, err)

	rows, err := repo.GetHistoryForPass(ctx, "run-1", 0)
	require.NoError(t, err)
	byID := map[model.ClusterID]model.RetainState{}
	for _, r := range rows {
		byID[r.ClusterID] = r.Retain
	}
	assert.Equal(t, model.RetainYes, byID[10])
	assert.Equal(t, model.RetainNo, byID[20])
}

func TestGormHistoryRepository_PassSummary(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SavePassSummary(ctx, "run-1", model.PassSummary{
		PassOrdinal:   0,
		Cutoff:        4.0,
		RawClusterCnt: 100,
		RetainedCnt:   90,
		AssignedCount: 9000,
		TotalCount:    10000,
		PctAssigned:   0.9,
		SidecarPath:   "run-1.pass0.sidecar",
	}))
	require.NoError(t, repo.SavePassSummary(ctx, "run-1", model.PassSummary{PassOrdinal: 1, Cutoff: 6.0}))

	summaries, err := repo.GetPassSummaries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 0, summaries[0].PassOrdinal)
	assert.Equal(t, 1, summaries[1].PassOrdinal)
	assert.Equal(t, 0.9, summaries[0].PctAssigned)
}
