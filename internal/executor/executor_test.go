package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sib-swiss/dclust/pkg/model"
)

func TestBuildForwardingTable_SimpleChain(t *testing.T) {
	// (1,2) (1,3): both 2 and 3 collapse into 1.
	reqs := []model.MergeRequest{
		{C1: 1, C2: 2},
		{C1: 1, C2: 3},
	}
	ft := BuildForwardingTable(reqs)
	assert.Equal(t, model.ClusterID(1), ft.Resolve(2))
	assert.Equal(t, model.ClusterID(1), ft.Resolve(3))
	assert.Equal(t, model.ClusterID(1), ft.Resolve(1))
}

func TestBuildForwardingTable_TransitiveCollapse(t *testing.T) {
	// (2,3) then (1,2): 3 must end up forwarding to 1 too, since 3->2 and
	// then 2->1 means the table entry for 3 must be rewritten to 1.
	reqs := []model.MergeRequest{
		{C1: 1, C2: 2},
		{C1: 2, C2: 3},
	}
	ft := BuildForwardingTable(reqs)
	assert.Equal(t, model.ClusterID(1), ft.Resolve(2))
	assert.Equal(t, model.ClusterID(1), ft.Resolve(3))
}

func TestApplyMergeRequests(t *testing.T) {
	ids := []model.ClusterID{1, 2, 3, 0, 2}
	reqs := []model.MergeRequest{{C1: 1, C2: 2}, {C1: 2, C2: 3}}
	ApplyMergeRequests(ids, reqs)
	assert.Equal(t, []model.ClusterID{1, 1, 1, 0, 1}, ids)
}

func TestRenumber_SeparatesBySizeAndIsStable(t *testing.T) {
	ids := []model.ClusterID{10, 10, 10, 20, 20, 0, 30}
	r := Renumber(ids, 3)

	assert.Equal(t, 1, r.RetainedCount)
	assert.Equal(t, 2, r.SmallCount)
	assert.Equal(t, model.ClusterID(1), r.Dense[10])
	require.Contains(t, r.Dense, model.ClusterID(20))
	require.Contains(t, r.Dense, model.ClusterID(30))
	assert.NotEqual(t, model.ClusterID(1), r.Dense[20])
}

func TestApplyDense(t *testing.T) {
	ids := []model.ClusterID{10, 10, 20, 0}
	r := Renumber(ids, 1)
	ApplyDense(ids, r)

	assert.Equal(t, ids[0], ids[1])
	assert.NotEqual(t, ids[0], ids[2])
	assert.Equal(t, model.Unassigned, ids[3])
}

func TestRenumber_NoSurvivors(t *testing.T) {
	ids := []model.ClusterID{0, 0, 0}
	r := Renumber(ids, 1)
	assert.Equal(t, 0, r.RetainedCount)
	assert.Equal(t, 0, r.SmallCount)
	assert.Empty(t, r.Dense)
}
