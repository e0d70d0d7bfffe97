package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sib-swiss/dclust/internal/transport"
	"github.com/sib-swiss/dclust/pkg/model"
)

func mkPoints(data [][]uint16) []model.Point {
	pts := make([]model.Point, len(data))
	for i, d := range data {
		pts[i] = model.Point{NameIndex: model.NameIndex(i), Data: d}
	}
	return pts
}

func TestWorker_MintsNewClusterOnFirstPair(t *testing.T) {
	pts := mkPoints([][]uint16{
		{10, 10, 0, 0},
		{11, 10, 0, 0},
	})
	w := New(1, pts, 0, 16, 0, nil)

	ii := transport.Range{Start: 0, End: 1}
	jj := transport.Range{Start: 1, End: 2}
	iiIDs := []model.ClusterID{0}
	jjIDs := []model.ClusterID{0}

	done := w.processAssign(transport.Assign{II: ii, JJ: jj},
		transport.Slice{Range: ii, IDs: iiIDs},
		transport.Slice{Range: jj, IDs: jjIDs},
	)

	require.True(t, done.IIIDs[0].IsAssigned())
	assert.Equal(t, done.IIIDs[0], done.JJIDs[0])
	assert.Equal(t, uint32(1), done.IIIDs[0].WorkerOrdinal())
}

func TestWorker_EmitsMergeRequestOnCollision(t *testing.T) {
	pts := mkPoints([][]uint16{
		{10, 10, 0, 0},
		{11, 10, 0, 0},
	})
	w := New(1, pts, 0, 16, 10, nil)

	ii := transport.Range{Start: 0, End: 1}
	jj := transport.Range{Start: 1, End: 2}
	u := model.NewLocalClusterID(1, 5)
	v := model.NewLocalClusterID(1, 6)

	done := w.processAssign(transport.Assign{II: ii, JJ: jj},
		transport.Slice{Range: ii, IDs: []model.ClusterID{u}},
		transport.Slice{Range: jj, IDs: []model.ClusterID{v}},
	)

	assert.Equal(t, u, done.IIIDs[0])
	assert.Equal(t, v, done.JJIDs[0])
	items := w.MergeSet().IterSorted()
	require.Len(t, items, 1)
	assert.Equal(t, u, items[0].C1)
	assert.Equal(t, v, items[0].C2)
}

func TestWorker_FastRejectSkipsBlockPair(t *testing.T) {
	pts := mkPoints([][]uint16{
		{10, 0, 0, 0},
		{100, 0, 0, 0},
	})
	w := New(1, pts, 0, 16, 0, nil)

	ii := transport.Range{Start: 0, End: 1}
	jj := transport.Range{Start: 1, End: 2}

	done := w.processAssign(transport.Assign{II: ii, JJ: jj},
		transport.Slice{Range: ii, IDs: []model.ClusterID{0}},
		transport.Slice{Range: jj, IDs: []model.ClusterID{0}},
	)

	assert.False(t, done.IIIDs[0].IsAssigned())
	assert.False(t, done.JJIDs[0].IsAssigned())
}

func TestWorker_PropagatesExistingID(t *testing.T) {
	pts := mkPoints([][]uint16{
		{10, 10, 0, 0},
		{11, 10, 0, 0},
	})
	w := New(1, pts, 0, 16, 0, nil)

	existing := model.NewLocalClusterID(1, 3)
	ii := transport.Range{Start: 0, End: 1}
	jj := transport.Range{Start: 1, End: 2}

	done := w.processAssign(transport.Assign{II: ii, JJ: jj},
		transport.Slice{Range: ii, IDs: []model.ClusterID{existing}},
		transport.Slice{Range: jj, IDs: []model.ClusterID{0}},
	)

	assert.Equal(t, existing, done.JJIDs[0])
}

func TestWorker_RunHandlesSentinel(t *testing.T) {
	w := New(2, nil, 0, 16, 7, nil)
	link := transport.NewWorkerLink(1)

	done := make(chan struct{})
	go func() {
		w.Run(link)
		close(done)
	}()

	link.ToWorker <- transport.Sentinel{}
	msg := <-link.FromWorker
	fc, ok := msg.(transport.FinalCount)
	require.True(t, ok)
	assert.Equal(t, uint32(7), fc.Count)
	close(link.ToWorker)
	<-done
}
