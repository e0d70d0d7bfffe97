package repository

import (
	"github.com/sib-swiss/dclust/pkg/model"
)

// passSummaryRow is the gorm model backing model.PassSummary; spec.md §3
// doesn't require pass summaries to be queryable relationally the way
// cluster_history is, but persisting them alongside it lets a resumed or
// inspected run reconstruct the sweep controller's stop-rule inputs
// without re-reading every sidecar file.
type passSummaryRow struct {
	ID            int64   `gorm:"column:id;primaryKey;autoIncrement"`
	RunID         string  `gorm:"column:run_id;type:varchar(64);index"`
	PassOrdinal   int     `gorm:"column:pass_ordinal"`
	Cutoff        float64 `gorm:"column:cutoff"`
	RawClusterCnt int     `gorm:"column:raw_cluster_cnt"`
	RetainedCnt   int     `gorm:"column:retained_cnt"`
	AssignedCount int64   `gorm:"column:assigned_count"`
	TotalCount    int64   `gorm:"column:total_count"`
	PctAssigned   float64 `gorm:"column:pct_assigned"`
	SidecarPath   string  `gorm:"column:sidecar_path;type:varchar(512)"`
}

func (passSummaryRow) TableName() string {
	return "pass_summary"
}

func (r passSummaryRow) toModel() model.PassSummary {
	return model.PassSummary{
		PassOrdinal:   r.PassOrdinal,
		Cutoff:        r.Cutoff,
		RawClusterCnt: r.RawClusterCnt,
		RetainedCnt:   r.RetainedCnt,
		AssignedCount: r.AssignedCount,
		TotalCount:    r.TotalCount,
		PctAssigned:   r.PctAssigned,
		SidecarPath:   r.SidecarPath,
	}
}

func passSummaryRowFrom(runID string, s model.PassSummary) passSummaryRow {
	return passSummaryRow{
		RunID:         runID,
		PassOrdinal:   s.PassOrdinal,
		Cutoff:        s.Cutoff,
		RawClusterCnt: s.RawClusterCnt,
		RetainedCnt:   s.RetainedCnt,
		AssignedCount: s.AssignedCount,
		TotalCount:    s.TotalCount,
		PctAssigned:   s.PctAssigned,
		SidecarPath:   s.SidecarPath,
	}
}
