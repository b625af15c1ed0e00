package reconciler

import (
	"testing"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuorumCommitSequenceID(t *testing.T) {
	tests := []struct {
		name     string
		values   []int64
		quorum   int
		expected int64
		ok       bool
	}{
		{"all agree", []int64{7, 7, 7}, 2, 7, true},
		{"one ahead", []int64{7, 9, 7}, 2, 7, true},
		{"one behind", []int64{9, 9, 4}, 2, 9, true},
		{"all differ", []int64{3, 9, 5}, 2, 5, true},
		{"single replica", []int64{12}, 1, 12, true},
		{"not enough reports", []int64{12}, 2, 0, false},
		{"no reports", nil, 1, 0, false},
		{"zero quorum", []int64{1}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := QuorumCommitSequenceID(tt.values, tt.quorum)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuorumDoesNotReorderInput(t *testing.T) {
	values := []int64{1, 3, 2}
	_, _ = QuorumCommitSequenceID(values, 2)
	assert.Equal(t, []int64{1, 3, 2}, values)
}

func record(state types.ContainerState) *types.ContainerInfo {
	return &types.ContainerInfo{
		ContainerID: 5,
		PipelineID:  "p-1",
		State:       state,
		Replication: types.RatisReplication(3),
	}
}

func TestDecideOpen(t *testing.T) {
	t.Run("all open", func(t *testing.T) {
		d := Decide(record(types.ContainerStateOpen), []Replica{
			{NodeID: "dn-1", State: types.ContainerStateOpen},
			{NodeID: "dn-2", State: types.ContainerStateOpen},
		})
		assert.False(t, d.Changed())
		assert.Empty(t, d.Commands)
	})

	for _, state := range []types.ContainerState{types.ContainerStateClosing, types.ContainerStateUnhealthy} {
		t.Run("replica "+string(state), func(t *testing.T) {
			d := Decide(record(types.ContainerStateOpen), []Replica{
				{NodeID: "dn-1", State: types.ContainerStateOpen},
				{NodeID: "dn-2", State: state},
			})
			assert.Equal(t, types.ContainerStateClosing, d.State)
		})
	}
}

func TestDecideClosing(t *testing.T) {
	t.Run("every member at the target", func(t *testing.T) {
		d := Decide(record(types.ContainerStateClosing), []Replica{
			{NodeID: "dn-1", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
			{NodeID: "dn-2", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
			{NodeID: "dn-3", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
		})
		assert.False(t, d.Changed())
		assert.Equal(t, int64(7), d.BlockCommitSequenceID)
		require.Len(t, d.Commands, 3)
		for _, cmd := range d.Commands {
			assert.Equal(t, types.CommandCloseContainer, cmd.Type)
			assert.Equal(t, int64(5), cmd.ContainerID)
			assert.Equal(t, int64(7), cmd.BlockCommitSequenceID)
			assert.Equal(t, "p-1", cmd.PipelineID)
		}
	})

	t.Run("laggard left closing", func(t *testing.T) {
		d := Decide(record(types.ContainerStateClosing), []Replica{
			{NodeID: "dn-1", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
			{NodeID: "dn-2", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
			{NodeID: "dn-3", State: types.ContainerStateClosing, BlockCommitSequenceID: 4},
		})
		require.Len(t, d.Commands, 2)
		assert.Equal(t, "dn-1", d.Commands[0].NodeID)
		assert.Equal(t, "dn-2", d.Commands[1].NodeID)
	})

	t.Run("replica ahead of quorum is quasi closed", func(t *testing.T) {
		d := Decide(record(types.ContainerStateClosing), []Replica{
			{NodeID: "dn-1", State: types.ContainerStateClosing, BlockCommitSequenceID: 9},
			{NodeID: "dn-2", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
			{NodeID: "dn-3", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
		})
		require.Len(t, d.Commands, 3)
		assert.Equal(t, types.CommandQuasiCloseContainer, d.Commands[0].Type)
		assert.Equal(t, "dn-1", d.Commands[0].NodeID)
		assert.Equal(t, types.CommandCloseContainer, d.Commands[1].Type)
		assert.Equal(t, types.CommandCloseContainer, d.Commands[2].Type)
	})

	t.Run("waits for a quorum of reports", func(t *testing.T) {
		d := Decide(record(types.ContainerStateClosing), []Replica{
			{NodeID: "dn-1", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
			{NodeID: "dn-2", State: types.ContainerStateUnhealthy, BlockCommitSequenceID: 7},
		})
		assert.False(t, d.Changed())
		assert.Empty(t, d.Commands)
	})

	t.Run("closed replicas get no command", func(t *testing.T) {
		d := Decide(record(types.ContainerStateClosing), []Replica{
			{NodeID: "dn-1", State: types.ContainerStateClosed, BlockCommitSequenceID: 7},
			{NodeID: "dn-2", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
			{NodeID: "dn-3", State: types.ContainerStateClosing, BlockCommitSequenceID: 3},
		})
		require.Len(t, d.Commands, 1)
		assert.Equal(t, "dn-2", d.Commands[0].NodeID)
		assert.False(t, d.Changed())
	})

	t.Run("all healthy replicas closed", func(t *testing.T) {
		d := Decide(record(types.ContainerStateClosing), []Replica{
			{NodeID: "dn-1", State: types.ContainerStateClosed, BlockCommitSequenceID: 7},
			{NodeID: "dn-2", State: types.ContainerStateClosed, BlockCommitSequenceID: 7},
			{NodeID: "dn-3", State: types.ContainerStateUnhealthy, BlockCommitSequenceID: 2},
		})
		assert.Equal(t, types.ContainerStateClosed, d.State)
		assert.Equal(t, int64(7), d.BlockCommitSequenceID)
		assert.Empty(t, d.Commands)
	})
}

// settle applies commands the way a datanode would
func settle(replicas []Replica, cmds []types.DatanodeCommand) {
	for _, cmd := range cmds {
		for i := range replicas {
			if replicas[i].NodeID != cmd.NodeID {
				continue
			}
			switch cmd.Type {
			case types.CommandCloseContainer:
				replicas[i].State = types.ContainerStateClosed
			case types.CommandQuasiCloseContainer:
				replicas[i].State = types.ContainerStateQuasiClosed
			}
		}
	}
}

func TestDecideClosingConvergesWithReplicaAhead(t *testing.T) {
	rec := record(types.ContainerStateClosing)
	replicas := []Replica{
		{NodeID: "dn-1", State: types.ContainerStateClosing, BlockCommitSequenceID: 5},
		{NodeID: "dn-2", State: types.ContainerStateClosing, BlockCommitSequenceID: 5},
		{NodeID: "dn-3", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
	}

	d := Decide(rec, replicas)
	require.Len(t, d.Commands, 3)
	assert.False(t, d.Changed())
	settle(replicas, d.Commands)

	assert.Equal(t, types.ContainerStateQuasiClosed, replicas[2].State)

	d = Decide(rec, replicas)
	assert.Equal(t, types.ContainerStateClosed, d.State)
	assert.Equal(t, int64(5), d.BlockCommitSequenceID)
	assert.Empty(t, d.Commands)

	rec.State = d.State
	rec.BlockCommitSequenceID = d.BlockCommitSequenceID
	for round := 0; round < 3; round++ {
		d = Decide(rec, replicas)
		assert.False(t, d.Changed())
		assert.Empty(t, d.Commands)
	}
}

func TestDecideClosingNeedsClosedQuorum(t *testing.T) {
	d := Decide(record(types.ContainerStateClosing), []Replica{
		{NodeID: "dn-1", State: types.ContainerStateClosed, BlockCommitSequenceID: 5},
		{NodeID: "dn-2", State: types.ContainerStateQuasiClosed, BlockCommitSequenceID: 7},
		{NodeID: "dn-3", State: types.ContainerStateQuasiClosed, BlockCommitSequenceID: 8},
	})
	assert.False(t, d.Changed())
	assert.Empty(t, d.Commands)
}

func TestDecideClosed(t *testing.T) {
	rec := record(types.ContainerStateClosed)
	rec.BlockCommitSequenceID = 7

	d := Decide(rec, []Replica{
		{NodeID: "dn-1", State: types.ContainerStateClosed, BlockCommitSequenceID: 7},
		{NodeID: "dn-2", State: types.ContainerStateClosing, BlockCommitSequenceID: 7},
		{NodeID: "dn-3", State: types.ContainerStateClosing, BlockCommitSequenceID: 5},
	})
	assert.False(t, d.Changed())
	require.Len(t, d.Commands, 1)
	assert.Equal(t, "dn-2", d.Commands[0].NodeID)
	assert.Equal(t, int64(7), d.Commands[0].BlockCommitSequenceID)
}

func TestDecideIgnoresOtherStates(t *testing.T) {
	for _, state := range []types.ContainerState{types.ContainerStateQuasiClosed, types.ContainerStateUnhealthy} {
		d := Decide(record(state), []Replica{{NodeID: "dn-1", State: types.ContainerStateClosing}})
		assert.False(t, d.Changed())
		assert.Empty(t, d.Commands)
	}
}
