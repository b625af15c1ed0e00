package reconciler

import (
	"sort"

	"github.com/cuemby/burrow/pkg/types"
)

// Replica is the last reported state of one container replica
type Replica struct {
	NodeID                string
	State                 types.ContainerState
	BlockCommitSequenceID int64
}

// Decision is the outcome of reconciling one container record
type Decision struct {
	// Commands to queue for datanodes
	Commands []types.DatanodeCommand
	// State is the new recorded state, empty when unchanged
	State types.ContainerState
	// BlockCommitSequenceID is the agreed sequence id, 0 while undecided
	BlockCommitSequenceID int64
}

// Changed reports whether the record must be updated
func (d Decision) Changed() bool {
	return d.State != ""
}

// QuorumCommitSequenceID returns the highest sequence id that at least
// quorum of the values have reached. ok is false when fewer than quorum
// values are given.
func QuorumCommitSequenceID(values []int64, quorum int) (int64, bool) {
	if quorum < 1 || len(values) < quorum {
		return 0, false
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	return sorted[quorum-1], true
}

// Decide compares a container record with its replica reports.
//
// An OPEN record moves to CLOSING as soon as one replica reports CLOSING or
// UNHEALTHY. For a CLOSING record the target sequence id is the highest one
// a quorum of healthy replicas holds: replicas at the target get a close
// command, replicas ahead of it are quasi-closed, laggards are left alone
// until they catch up. Once every healthy replica reports CLOSED or
// QUASI_CLOSED, and at least a quorum is CLOSED, the record is CLOSED. A CLOSED record re-sends close
// to healthy replicas that reached its sequence id but are not closed yet.
func Decide(record *types.ContainerInfo, replicas []Replica) Decision {
	switch record.State {
	case types.ContainerStateOpen:
		return decideOpen(record, replicas)
	case types.ContainerStateClosing:
		return decideClosing(record, replicas)
	case types.ContainerStateClosed:
		return decideClosed(record, replicas)
	}
	return Decision{}
}

func decideOpen(record *types.ContainerInfo, replicas []Replica) Decision {
	for _, r := range replicas {
		switch r.State {
		case types.ContainerStateClosing, types.ContainerStateUnhealthy:
			return Decision{State: types.ContainerStateClosing}
		}
	}
	return Decision{}
}

func decideClosing(record *types.ContainerInfo, replicas []Replica) Decision {
	healthy := healthyReplicas(replicas)
	quorum := record.Replication.Quorum()

	values := make([]int64, 0, len(healthy))
	closed, settled := 0, 0
	for _, r := range healthy {
		values = append(values, r.BlockCommitSequenceID)
		switch r.State {
		case types.ContainerStateClosed:
			closed++
			settled++
		case types.ContainerStateQuasiClosed:
			settled++
		}
	}

	target, ok := QuorumCommitSequenceID(values, quorum)
	if !ok {
		return Decision{}
	}

	// Quasi-closed replicas never receive another command, so they count as
	// settled once a quorum is closed at the target.
	if settled == len(healthy) && closed >= quorum {
		return Decision{State: types.ContainerStateClosed, BlockCommitSequenceID: target}
	}

	d := Decision{BlockCommitSequenceID: target}
	for _, r := range healthy {
		if r.State == types.ContainerStateClosed || r.State == types.ContainerStateQuasiClosed {
			continue
		}
		switch {
		case r.BlockCommitSequenceID == target:
			d.Commands = append(d.Commands, command(types.CommandCloseContainer, record, r.NodeID, target, ""))
		case r.BlockCommitSequenceID > target:
			d.Commands = append(d.Commands, command(types.CommandQuasiCloseContainer, record, r.NodeID, target,
				"replica is ahead of the quorum sequence id"))
		}
	}
	return d
}

func decideClosed(record *types.ContainerInfo, replicas []Replica) Decision {
	var d Decision
	for _, r := range healthyReplicas(replicas) {
		if r.State == types.ContainerStateClosed || r.State == types.ContainerStateQuasiClosed {
			continue
		}
		if r.BlockCommitSequenceID == record.BlockCommitSequenceID {
			d.Commands = append(d.Commands, command(types.CommandCloseContainer, record, r.NodeID,
				record.BlockCommitSequenceID, ""))
		}
	}
	return d
}

// healthyReplicas drops UNHEALTHY and INVALID reports
func healthyReplicas(replicas []Replica) []Replica {
	out := make([]Replica, 0, len(replicas))
	for _, r := range replicas {
		if r.State == types.ContainerStateUnhealthy || r.State == types.ContainerStateInvalid {
			continue
		}
		out = append(out, r)
	}
	return out
}

func command(t types.CommandType, record *types.ContainerInfo, nodeID string, bcsid int64, reason string) types.DatanodeCommand {
	return types.DatanodeCommand{
		Type:                  t,
		NodeID:                nodeID,
		ContainerID:           record.ContainerID,
		PipelineID:            record.PipelineID,
		BlockCommitSequenceID: bcsid,
		Replication:           record.Replication,
		Reason:                reason,
	}
}
