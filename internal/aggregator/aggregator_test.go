package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sib-swiss/dclust/internal/mergeset"
)

func TestReduce_Empty(t *testing.T) {
	assert.Nil(t, Reduce(nil))
}

func TestReduce_SingleWorker(t *testing.T) {
	s := mergeset.New(nil)
	s.Insert(1, 2)
	result := Reduce([]*mergeset.Set{s})
	assert.Equal(t, 1, result.Len())
}

func TestReduce_CombinesAndDedupes(t *testing.T) {
	a := mergeset.New(nil)
	a.Insert(1, 2)

	b := mergeset.New(nil)
	b.Insert(1, 2) // duplicate
	b.Insert(3, 4)

	c := mergeset.New(nil)
	c.Insert(5, 6)

	d := mergeset.New(nil)
	d.Insert(7, 8)

	result := Reduce([]*mergeset.Set{a, b, c, d})
	require.NotNil(t, result)
	assert.Equal(t, 4, result.Len())

	items := result.IterSorted()
	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].C2, items[i].C2)
	}
}

func TestReduce_OddWorkerCount(t *testing.T) {
	a := mergeset.New(nil)
	a.Insert(1, 2)
	b := mergeset.New(nil)
	b.Insert(3, 4)
	c := mergeset.New(nil)
	c.Insert(5, 6)

	result := Reduce([]*mergeset.Set{a, b, c})
	require.NotNil(t, result)
	assert.Equal(t, 3, result.Len())
}
