package future

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnounceFinalize(t *testing.T) {
	q := New(0)
	ts := time.Unix(100, 0)

	require.NoError(t, q.Announce(ts))

	e, ok := q.Get(ts)
	require.True(t, ok)
	assert.False(t, e.Done)

	require.NoError(t, q.Finalize(ts, "result"))

	e, ok = q.Get(ts)
	require.True(t, ok)
	assert.True(t, e.Done)
	assert.Equal(t, "result", e.Value)
}

func TestFinalize_WithoutAnnounce(t *testing.T) {
	q := New(0)
	err := q.Finalize(time.Unix(1, 0), "x")
	assert.ErrorIs(t, err, ErrNotAnnounced)
}

func TestFinalize_Twice(t *testing.T) {
	q := New(0)
	ts := time.Unix(1, 0)
	require.NoError(t, q.Announce(ts))
	require.NoError(t, q.Finalize(ts, 1))

	err := q.Finalize(ts, 2)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestAnnounce_DuplicateRejected(t *testing.T) {
	q := New(0)
	ts := time.Unix(1, 0)
	require.NoError(t, q.Announce(ts))
	assert.Error(t, q.Announce(ts))
}

func TestPending_OldestFirst(t *testing.T) {
	q := New(0)
	t1 := time.Unix(3, 0)
	t2 := time.Unix(1, 0)
	t3 := time.Unix(2, 0)
	require.NoError(t, q.Announce(t1))
	require.NoError(t, q.Announce(t2))
	require.NoError(t, q.Announce(t3))
	require.NoError(t, q.Finalize(t3, nil))

	pending := q.Pending()
	require.Len(t, pending, 2)
	assert.True(t, pending[0].Equal(t2))
	assert.True(t, pending[1].Equal(t1))
}

func TestDrain_ReturnsFinalizedUpToNowInOrder(t *testing.T) {
	q := New(0)
	t1 := time.Unix(3, 0)
	t2 := time.Unix(1, 0)
	t3 := time.Unix(2, 0)
	require.NoError(t, q.Announce(t1))
	require.NoError(t, q.Announce(t2))
	require.NoError(t, q.Announce(t3))
	require.NoError(t, q.Finalize(t1, "late"))
	require.NoError(t, q.Finalize(t2, "early"))
	require.NoError(t, q.Finalize(t3, "middle"))

	drained := q.Drain(time.Unix(2, 0))
	require.Len(t, drained, 2, "t1 is finalized but after the drain horizon")
	assert.Equal(t, "early", drained[0].Value)
	assert.Equal(t, "middle", drained[1].Value)

	remaining := q.Pending()
	assert.Empty(t, remaining, "t1 is finalized, not pending")
	assert.Equal(t, 1, q.Len(), "only the undrained t1 entry remains")
}

func TestDrain_LeavesUnfinalizedAnnounceDeferred(t *testing.T) {
	q := New(0)
	ts := time.Unix(5, 0)
	require.NoError(t, q.Announce(ts))

	drained := q.Drain(time.Unix(10, 0))
	assert.Empty(t, drained, "an announce without a finalize is never drained")

	require.NoError(t, q.Finalize(ts, "value"))
	drained = q.Drain(time.Unix(10, 0))
	require.Len(t, drained, 1)
	assert.Equal(t, "value", drained[0].Value)
}

func TestBoundedEviction(t *testing.T) {
	q := New(2)
	t1 := time.Unix(1, 0)
	t2 := time.Unix(2, 0)
	t3 := time.Unix(3, 0)

	require.NoError(t, q.Announce(t1))
	require.NoError(t, q.Announce(t2))
	require.NoError(t, q.Announce(t3))

	assert.Equal(t, 2, q.Len())
	_, ok := q.Get(t1)
	assert.False(t, ok, "oldest entry should have been evicted")
}
