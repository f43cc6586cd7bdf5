package fat12_test

import (
	"testing"

	"github.com/fat12img/fat12img/fat12"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, totalClusters uint) *fat12.Table {
	t.Helper()
	size := (totalClusters+2)*3/2 + 4
	return fat12.NewEmptyTable(size, totalClusters, 0xF8)
}

func TestEntryRoundTripEvenAndOdd(t *testing.T) {
	table := newTestTable(t, 20)

	table.SetEntry(2, 0x123)
	table.SetEntry(3, 0x456)
	table.SetEntry(4, fat12.ClusterEOF)

	assert.EqualValues(t, 0x123, table.Entry(2))
	assert.EqualValues(t, 0x456, table.Entry(3))
	assert.EqualValues(t, fat12.ClusterEOF, table.Entry(4))
}

func TestReservedEntriesAlwaysEOF(t *testing.T) {
	table := newTestTable(t, 20)
	assert.Equal(t, fat12.ClusterEOF, table.Entry(0))
	assert.Equal(t, fat12.ClusterEOF, table.Entry(1))
}

func TestFirstFreeSkipsAllocated(t *testing.T) {
	table := newTestTable(t, 10)
	table.SetEntry(2, fat12.ClusterEOF)
	table.SetEntry(3, fat12.ClusterEOF)

	free, err := table.FirstFree()
	require.NoError(t, err)
	assert.EqualValues(t, 4, free)
}

func TestFirstFreeReturnsErrorWhenFull(t *testing.T) {
	table := newTestTable(t, 2)
	table.SetEntry(2, fat12.ClusterEOF)
	table.SetEntry(3, fat12.ClusterEOF)

	_, err := table.FirstFree()
	assert.Error(t, err)
}

func TestClustersForSizeFloorsAtOne(t *testing.T) {
	assert.EqualValues(t, 1, fat12.ClustersForSize(0, 512))
	assert.EqualValues(t, 1, fat12.ClustersForSize(1, 512))
	assert.EqualValues(t, 2, fat12.ClustersForSize(513, 512))
}

func TestReallocateChainGrows(t *testing.T) {
	table := newTestTable(t, 10)

	head, err := table.ReallocateChain(fat12.ClusterEOF, 3)
	require.NoError(t, err)

	count := 0
	for c := head; fat12.IsValidCluster(c); c = table.NextCluster(c) {
		count++
		require.Less(t, count, 10, "chain must terminate")
	}
	assert.Equal(t, 3, count)
}

func TestReallocateChainShrinksAndFrees(t *testing.T) {
	table := newTestTable(t, 10)

	head, err := table.ReallocateChain(fat12.ClusterEOF, 4)
	require.NoError(t, err)

	newHead, err := table.ReallocateChain(head, 1)
	require.NoError(t, err)
	assert.Equal(t, head, newHead)
	assert.Equal(t, fat12.ClusterEOF, table.NextCluster(newHead))

	free, err := table.FirstFree()
	require.NoError(t, err)
	assert.True(t, fat12.IsValidCluster(free))
}

func TestReallocateChainToZeroFreesEverything(t *testing.T) {
	table := newTestTable(t, 10)

	head, err := table.ReallocateChain(fat12.ClusterEOF, 3)
	require.NoError(t, err)

	newHead, err := table.ReallocateChain(head, 0)
	require.NoError(t, err)
	assert.Equal(t, fat12.ClusterEOF, newHead)

	for c := fat12.Cluster(2); c < 12; c++ {
		assert.Equal(t, fat12.ClusterFree, table.Entry(c))
	}
}
