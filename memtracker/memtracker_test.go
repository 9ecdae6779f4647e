package memtracker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestTracker_ConsumeRelease(t *testing.T) {
	t.Parallel()

	tr := New("test")
	require.Equal(t, "test", tr.ID())
	require.Zero(t, tr.Consumption())

	tr.Consume(100)
	tr.Consume(50)
	require.EqualValues(t, 150, tr.Consumption())
	require.EqualValues(t, 150, tr.Peak())

	tr.Release(120)
	require.EqualValues(t, 30, tr.Consumption())
	// Peak is a high-water mark; release never lowers it.
	require.EqualValues(t, 150, tr.Peak())

	tr.Consume(50)
	require.EqualValues(t, 80, tr.Consumption())
	require.EqualValues(t, 150, tr.Peak())
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	tr := New("concurrent")
	const workers = 16
	const rounds = 10_000

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				tr.Consume(3)
				tr.Release(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.EqualValues(t, workers*rounds*2, tr.Consumption())
	require.GreaterOrEqual(t, tr.Peak(), tr.Consumption())
}
