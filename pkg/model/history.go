package model

// RetainState is the tri-state retention flag carried on each cluster
// history row (spec.md §3: "retain_flag ∈ {unknown, yes, no}").
type RetainState int

const (
	RetainUnknown RetainState = iota
	RetainYes
	RetainNo
)

// String renders the retain flag the way structured log fields expect.
func (r RetainState) String() string {
	switch r {
	case RetainYes:
		return "yes"
	case RetainNo:
		return "no"
	default:
		return "unknown"
	}
}

// ClusterHistory is one genealogy row: a raw (trimmed) cluster discovered
// during a pass, with its lineage (spec.md §3, §4.8).
type ClusterHistory struct {
	ID               int64 `gorm:"column:id;primaryKey;autoIncrement"`
	RunID            string `gorm:"column:run_id;type:varchar(64);index"`
	PassOrdinal      int    `gorm:"column:pass_ordinal"`
	Cutoff           float64 `gorm:"column:cutoff"`
	ClusterID        ClusterID `gorm:"column:cluster_id"`
	ParentClusterID  ClusterID `gorm:"column:parent_cluster_id"`
	MergedIntoID     ClusterID `gorm:"column:merged_into_id"`
	EventCount       int64     `gorm:"column:event_count"`
	Retain           RetainState `gorm:"column:retain"`
}

// TableName pins the genealogy table name for gorm, mirroring the
// teacher's explicit TableName() convention.
func (ClusterHistory) TableName() string {
	return "cluster_history"
}

// HasParent reports whether this row has a recorded ancestor in the
// previous pass.
func (h ClusterHistory) HasParent() bool {
	return h.PassOrdinal > 0 && h.ParentClusterID != Unassigned
}

// WasMerged reports whether this cluster was collapsed into another by
// the merge executor during a later pass.
func (h ClusterHistory) WasMerged() bool {
	return h.MergedIntoID != Unassigned
}

// PassSummary captures the per-pass statistics the sweep controller uses
// to drive its stop rules and that get logged/traced per pass.
type PassSummary struct {
	PassOrdinal    int
	Cutoff         float64
	RawClusterCnt  int
	RetainedCnt    int
	AssignedCount  int64
	TotalCount     int64
	PctAssigned    float64
	SidecarPath    string
}
