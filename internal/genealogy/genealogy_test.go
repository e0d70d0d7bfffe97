package genealogy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sib-swiss/dclust/internal/executor"
	"github.com/sib-swiss/dclust/pkg/model"
)

func TestRecordPass_FirstPassHasNoParents(t *testing.T) {
	tracker := NewTracker("run-1")
	ids := []model.ClusterID{10, 10, 10, 20, 20, 20}
	renum := executor.Renumber(ids, 1)
	ft := executor.ApplyMergeRequests(ids, nil)

	rows := tracker.RecordPass(0, 2, renum, ft, 0)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, model.Unassigned, r.ParentClusterID)
		assert.Equal(t, model.Unassigned, r.MergedIntoID)
		assert.Equal(t, int64(3), r.EventCount)
	}
}

// TestGenealogySplit_RetainsBothChildrenNotParent reproduces spec.md's
// S5 scenario: two passes where a tight cutoff finds two clusters A and
// B, and a much looser cutoff merges them into a single cluster C. The
// selector must retain A and B, not C.
func TestGenealogySplit_RetainsBothChildrenNotParent(t *testing.T) {
	tracker := NewTracker("run-1")

	// Pass 0 at d=2: A (raw id 10, 3 events) and B (raw id 20, 3 events).
	pass0IDs := []model.ClusterID{10, 10, 10, 20, 20, 20}
	renum0 := executor.Renumber(pass0IDs, 1)
	ft0 := executor.ApplyMergeRequests(pass0IDs, nil)
	tracker.RecordPass(0, 2, renum0, ft0, 0)

	// Pass 1 at d=10: A and B, now re-prefixed into worker 1's space
	// (spec.md §4.7), collide into a single cluster C.
	a := model.NewLocalClusterID(1, uint32(renum0.Dense[10]))
	b := model.NewLocalClusterID(1, uint32(renum0.Dense[20]))
	pass1IDs := []model.ClusterID{a, a, a, b, b, b}
	req, ok := model.NormalizeMergeRequest(a, b)
	require.True(t, ok)
	ft1 := executor.ApplyMergeRequests(pass1IDs, []model.MergeRequest{req})
	renum1 := executor.Renumber(pass1IDs, 1)
	tracker.RecordPass(1, 10, renum1, ft1, renum0.RetainedCount)

	rows := tracker.Select()
	require.Len(t, rows, 3)

	byPassCluster := func(pass int, cluster model.ClusterID) model.ClusterHistory {
		for _, r := range rows {
			if r.PassOrdinal == pass && r.ClusterID == cluster {
				return r
			}
		}
		t.Fatalf("no row for pass %d cluster %d", pass, cluster)
		return model.ClusterHistory{}
	}

	rowA := byPassCluster(0, renum0.Dense[10])
	rowB := byPassCluster(0, renum0.Dense[20])
	rowC := byPassCluster(1, renum1.Dense[a])

	assert.Equal(t, model.RetainYes, rowA.Retain)
	assert.Equal(t, model.RetainYes, rowB.Retain)
	assert.Equal(t, model.RetainNo, rowC.Retain)
	assert.Equal(t, rowA.ClusterID, rowC.ParentClusterID, "non-merged-away sibling A should be C's recorded parent")
}

func TestBuildOutput_CompactsRetainedRowsAcrossPasses(t *testing.T) {
	rows := []model.ClusterHistory{
		{PassOrdinal: 0, ClusterID: 1, Retain: model.RetainYes},
		{PassOrdinal: 0, ClusterID: 2, Retain: model.RetainYes},
		{PassOrdinal: 1, ClusterID: 1, Retain: model.RetainNo},
	}
	sidecars := map[int][]model.ClusterID{
		0: {1, 1, 2, 2},
	}
	out, err := BuildOutput(rows, 4, func(pass int) ([]model.ClusterID, error) {
		return sidecars[pass], nil
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ClusterID{1, 1, 2, 2}, out)
}

func TestBuildOutput_SkipsRowsNotMarkedRetainYes(t *testing.T) {
	rows := []model.ClusterHistory{
		{PassOrdinal: 0, ClusterID: 1, Retain: model.RetainNo},
	}
	out, err := BuildOutput(rows, 2, func(pass int) ([]model.ClusterID, error) {
		t.Fatalf("should not read sidecar for a non-retained row")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ClusterID{0, 0}, out)
}
