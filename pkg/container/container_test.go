package container

import (
	"sync"
	"testing"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fiveGB = 5 << 30

func newContainer(t *testing.T, id int64) *Container {
	t.Helper()
	c, err := New(Config{ID: id, PipelineID: "p1", MaxSizeBytes: fiveGB}, storage.NewMemBlockStore())
	require.NoError(t, err)
	return c
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to types.ContainerState
		want     bool
	}{
		{types.ContainerStateOpen, types.ContainerStateClosing, true},
		{types.ContainerStateOpen, types.ContainerStateUnhealthy, true},
		{types.ContainerStateOpen, types.ContainerStateClosed, false},
		{types.ContainerStateClosing, types.ContainerStateClosed, true},
		{types.ContainerStateClosing, types.ContainerStateQuasiClosed, true},
		{types.ContainerStateClosing, types.ContainerStateUnhealthy, true},
		{types.ContainerStateClosing, types.ContainerStateOpen, false},
		{types.ContainerStateQuasiClosed, types.ContainerStateClosed, true},
		{types.ContainerStateQuasiClosed, types.ContainerStateUnhealthy, false},
		{types.ContainerStateClosed, types.ContainerStateOpen, false},
		{types.ContainerStateUnhealthy, types.ContainerStateOpen, false},
		{types.ContainerStateClosed, types.ContainerStateInvalid, true},
		{types.ContainerStateUnhealthy, types.ContainerStateInvalid, true},
		{types.ContainerStateInvalid, types.ContainerStateInvalid, false},
		{types.ContainerStateInvalid, types.ContainerStateOpen, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestNewValidation(t *testing.T) {
	store := storage.NewMemBlockStore()

	_, err := New(Config{ID: 0, MaxSizeBytes: 1}, store)
	assert.True(t, errdefs.IsInvalidArgument(err))

	_, err = New(Config{ID: 1, MaxSizeBytes: 0}, store)
	assert.True(t, errdefs.IsInvalidArgument(err))

	_, err = New(Config{ID: 1, MaxSizeBytes: 1, State: "BROKEN"}, store)
	assert.True(t, errdefs.IsInvalidArgument(err))

	c, err := New(Config{ID: 1, MaxSizeBytes: 1, State: types.ContainerStateClosed}, store)
	require.NoError(t, err)
	assert.Equal(t, types.ContainerStateClosed, c.State())
}

func TestNewLoadsCounters(t *testing.T) {
	store := storage.NewMemBlockStore()
	block := types.NewBlockData(types.BlockID{ContainerID: 3, LocalID: 1})
	require.NoError(t, store.PutBlock(block, storage.Counters{BlockCount: 4, BlockCommitSequenceID: 9, BytesUsed: 2048}))

	c, err := New(Config{ID: 3, MaxSizeBytes: fiveGB}, store)
	require.NoError(t, err)

	info := c.Info()
	assert.Equal(t, int64(4), info.BlockCount)
	assert.Equal(t, int64(9), info.BlockCommitSequenceID)
	assert.Equal(t, int64(2048), info.UsedBytes)
	assert.Equal(t, types.ContainerStateOpen, info.State)
}

func TestCloseRequiresAgreedSequenceID(t *testing.T) {
	c := newContainer(t, 1)
	bm := NewBlockManager(0)

	block := types.NewBlockData(types.BlockID{ContainerID: 1, LocalID: 1})
	block.BlockCommitSequenceID = 5
	_, err := bm.PutBlock(c, block)
	require.NoError(t, err)

	// Mismatch: the container is left CLOSING
	err = c.Close(6)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, types.ContainerStateClosing, c.State())

	require.NoError(t, c.Close(5))
	assert.Equal(t, types.ContainerStateClosed, c.State())

	// Idempotent with the same target
	require.NoError(t, c.Close(5))
	assert.True(t, errdefs.IsInvalidArgument(c.Close(4)))
}

func TestQuasiCloseThenClose(t *testing.T) {
	c := newContainer(t, 1)

	require.NoError(t, c.QuasiClose("replicas disagree"))
	assert.Equal(t, types.ContainerStateQuasiClosed, c.State())
	require.NoError(t, c.QuasiClose("again"))

	require.NoError(t, c.Close(0))
	assert.Equal(t, types.ContainerStateClosed, c.State())

	assert.True(t, errdefs.IsInvalidArgument(c.QuasiClose("too late")))
}

func TestMarkClosingIdempotent(t *testing.T) {
	c := newContainer(t, 1)

	require.NoError(t, c.MarkClosing())
	require.NoError(t, c.MarkClosing())
	assert.Equal(t, types.ContainerStateClosing, c.State())
}

func TestUnhealthyAndInvalid(t *testing.T) {
	c := newContainer(t, 1)

	require.NoError(t, c.MarkUnhealthy("disk failure"))
	assert.True(t, errdefs.IsInvalidArgument(c.MarkClosing()))
	assert.True(t, errdefs.IsInvalidArgument(c.Close(0)))

	require.NoError(t, c.MarkInvalid("checksum mismatch"))
	assert.Equal(t, types.ContainerStateInvalid, c.State())
	assert.True(t, errdefs.IsInvalidArgument(c.MarkInvalid("twice")))
}

func TestOnStateChange(t *testing.T) {
	var (
		mu     sync.Mutex
		states []types.ContainerState
	)
	c, err := New(Config{
		ID:           1,
		MaxSizeBytes: fiveGB,
		OnStateChange: func(info types.ContainerInfo) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, info.State)
		},
	}, storage.NewMemBlockStore())
	require.NoError(t, err)

	require.NoError(t, c.Close(0))
	require.NoError(t, c.MarkInvalid("scan"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.ContainerState{types.ContainerStateClosed, types.ContainerStateInvalid}, states)
}

func TestSet(t *testing.T) {
	set := NewSet()

	for _, id := range []int64{9, 2, 5} {
		require.NoError(t, set.Add(newContainer(t, id)))
	}
	assert.True(t, errdefs.IsInvalidArgument(set.Add(newContainer(t, 2))))
	assert.Equal(t, 3, set.Len())

	c, err := set.Get(5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.ID())

	_, err = set.Get(42)
	assert.True(t, errdefs.IsNotFound(err))

	var ids []int64
	for _, info := range set.Report() {
		ids = append(ids, info.ContainerID)
	}
	assert.Equal(t, []int64{2, 5, 9}, ids)

	removed, err := set.Remove(9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), removed.ID())
	_, err = set.Remove(9)
	assert.True(t, errdefs.IsNotFound(err))
}
