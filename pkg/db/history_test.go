package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStop = errors.New("stop")

func TestSnapshotsAscendingAndRestartable(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	// Insert out of order; reads come back ascending.
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 300, 70))
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 100, 100))
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 200, 90))

	snaps, err := c.Snapshots(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, []Snapshot{{100, 100}, {200, 90}, {300, 70}}, snaps)

	// A bounded range restarts cleanly from its lower edge.
	snaps, err = c.SnapshotRange(ctx, "c1", 200, 300)
	require.NoError(t, err)
	assert.Equal(t, []Snapshot{{200, 90}, {300, 70}}, snaps)
}

func TestAppendSnapshotUpserts(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	require.NoError(t, c.AppendSnapshot(ctx, "c1", 100, 10))
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 100, 20))

	snaps, err := c.Snapshots(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, uint64(20), snaps[0].Cycles)
}

func TestSnapshotsIsolatedPerCanister(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	// "c1" must not pick up keys from the lexically adjacent "c10".
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 100, 1))
	require.NoError(t, c.AppendSnapshot(ctx, "c10", 100, 2))

	snaps, err := c.Snapshots(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, uint64(1), snaps[0].Cycles)
}

func TestLatestBalance(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	_, found, err := c.LatestBalance(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.AppendSnapshot(ctx, "c1", 100, 10))
	require.NoError(t, c.AppendSnapshot(ctx, "c1", 300, 30))
	require.NoError(t, c.AppendSnapshot(ctx, "c2", 400, 99))

	cycles, found, err := c.LatestBalance(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(30), cycles)
}

func TestPruneSnapshots(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	for _, id := range []string{"c1", "c2"} {
		require.NoError(t, c.AppendSnapshot(ctx, id, 100, 1))
		require.NoError(t, c.AppendSnapshot(ctx, id, 200, 2))
		require.NoError(t, c.AppendSnapshot(ctx, id, 300, 3))
	}

	// Strictly older than the cutoff goes; the rest stays.
	pruned, err := c.PruneSnapshots(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	for _, id := range []string{"c1", "c2"} {
		snaps, err := c.Snapshots(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []Snapshot{{200, 2}, {300, 3}}, snaps)
	}

	// Idempotent: same cutoff removes nothing the second time.
	pruned, err = c.PruneSnapshots(ctx, 200)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestEachSnapshotLazyStop(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)

	for ts := int64(1); ts <= 10; ts++ {
		require.NoError(t, c.AppendSnapshot(ctx, "c1", ts*100, uint64(ts)))
	}

	seen := 0
	err := c.EachSnapshot(ctx, "c1", 0, 1000, func(s Snapshot) error {
		seen++
		if seen == 3 {
			return errStop
		}
		return nil
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 3, seen)
}
