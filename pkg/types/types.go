package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
)

// BlockID identifies a block within a container
type BlockID struct {
	ContainerID int64 `json:"containerID"`
	LocalID     int64 `json:"localID"`
}

// Compare orders block ids by container and then by local id
func (b BlockID) Compare(o BlockID) int {
	switch {
	case b.ContainerID < o.ContainerID:
		return -1
	case b.ContainerID > o.ContainerID:
		return 1
	case b.LocalID < o.LocalID:
		return -1
	case b.LocalID > o.LocalID:
		return 1
	}
	return 0
}

func (b BlockID) String() string {
	return fmt.Sprintf("conID: %d locID: %d", b.ContainerID, b.LocalID)
}

// ChunkInfo is a named byte range of a block's physical storage
type ChunkInfo struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	Length int64  `json:"length"`
}

// BlockData describes a block: its chunk layout, metadata and the commit
// sequence id it was committed under (0 = uncommitted)
type BlockData struct {
	BlockID               BlockID           `json:"blockID"`
	Chunks                []ChunkInfo       `json:"chunks"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	BlockCommitSequenceID int64             `json:"blockCommitSequenceId"`
}

// NewBlockData creates an empty, uncommitted block
func NewBlockData(id BlockID) *BlockData {
	return &BlockData{
		BlockID:  id,
		Metadata: make(map[string]string),
	}
}

// AddMetadata adds a metadata entry; keys are unique
func (b *BlockData) AddMetadata(key, value string) error {
	if b.Metadata == nil {
		b.Metadata = make(map[string]string)
	}
	if _, exists := b.Metadata[key]; exists {
		return errdefs.InvalidArgument("metadata key %q already exists", key)
	}
	b.Metadata[key] = value
	return nil
}

// Size returns the total length of the block's chunks
func (b *BlockData) Size() int64 {
	var size int64
	for _, c := range b.Chunks {
		size += c.Length
	}
	return size
}

// Clone returns a deep copy
func (b *BlockData) Clone() *BlockData {
	if b == nil {
		return nil
	}
	out := &BlockData{
		BlockID:               b.BlockID,
		BlockCommitSequenceID: b.BlockCommitSequenceID,
	}
	if b.Chunks != nil {
		out.Chunks = make([]ChunkInfo, len(b.Chunks))
		copy(out.Chunks, b.Chunks)
	}
	if b.Metadata != nil {
		out.Metadata = make(map[string]string, len(b.Metadata))
		for k, v := range b.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// MetadataKeys returns the metadata keys in sorted order
func (b *BlockData) MetadataKeys() []string {
	keys := make([]string, 0, len(b.Metadata))
	for k := range b.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContainerState is the local lifecycle state of a container replica
type ContainerState string

const (
	ContainerStateOpen        ContainerState = "OPEN"
	ContainerStateClosing     ContainerState = "CLOSING"
	ContainerStateQuasiClosed ContainerState = "QUASI_CLOSED"
	ContainerStateClosed      ContainerState = "CLOSED"
	ContainerStateUnhealthy   ContainerState = "UNHEALTHY"
	ContainerStateInvalid     ContainerState = "INVALID"
)

// ContainerInfo is the physical state of a container as seen by placement
// and administrative tooling
type ContainerInfo struct {
	ContainerID           int64             `json:"containerID"`
	PipelineID            string            `json:"pipelineID"`
	State                 ContainerState    `json:"state"`
	BlockCount            int64             `json:"blockCount"`
	BlockCommitSequenceID int64             `json:"blockCommitSequenceId"`
	MaxSizeBytes          int64             `json:"maxSizeBytes"`
	UsedBytes             int64             `json:"usedBytes"`
	Owner                 string            `json:"owner,omitempty"`
	Replication           ReplicationConfig `json:"replication"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// ReplicationType selects how a pipeline replicates writes
type ReplicationType string

const (
	ReplicationStandalone ReplicationType = "STANDALONE"
	ReplicationRatis      ReplicationType = "RATIS"
)

// ReplicationConfig determines how many pipeline members hold a replica
type ReplicationConfig struct {
	Type   ReplicationType `json:"type" yaml:"type"`
	Factor int             `json:"factor" yaml:"factor"`
}

// StandaloneReplication is a single unreplicated copy
func StandaloneReplication() ReplicationConfig {
	return ReplicationConfig{Type: ReplicationStandalone, Factor: 1}
}

// RatisReplication is a quorum-replicated config with the given factor
func RatisReplication(factor int) ReplicationConfig {
	return ReplicationConfig{Type: ReplicationRatis, Factor: factor}
}

// RequiredNodes returns the pipeline cardinality implied by the config
func (r ReplicationConfig) RequiredNodes() int {
	if r.Type == ReplicationStandalone {
		return 1
	}
	return r.Factor
}

// Quorum returns how many members must acknowledge a write
func (r ReplicationConfig) Quorum() int {
	return r.RequiredNodes()/2 + 1
}

func (r ReplicationConfig) String() string {
	if r.Type == ReplicationStandalone {
		return "STANDALONE/ONE"
	}
	return fmt.Sprintf("%s/%d", r.Type, r.Factor)
}

// PipelineState is the lifecycle state of a pipeline
type PipelineState string

const (
	PipelineStateAllocated PipelineState = "ALLOCATED"
	PipelineStateOpen      PipelineState = "OPEN"
	PipelineStateDormant   PipelineState = "DORMANT"
	PipelineStateClosed    PipelineState = "CLOSED"
)

// Node is a storage node known to the control plane
type Node struct {
	ID            string     `json:"id"`
	Address       string     `json:"address"`
	Hostname      string     `json:"hostname,omitempty"`
	Status        NodeStatus `json:"status"`
	CapacityBytes int64      `json:"capacityBytes"`
	UsedBytes     int64      `json:"usedBytes"`
	LastHeartbeat time.Time  `json:"lastHeartbeat"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// NodeStatus is the health of a storage node
type NodeStatus string

const (
	NodeStatusHealthy NodeStatus = "HEALTHY"
	NodeStatusStale   NodeStatus = "STALE"
	NodeStatusDead    NodeStatus = "DEAD"
)

// BootstrapState is the startup state of a control-plane node
type BootstrapState string

const (
	BootstrapUnstarted     BootstrapState = "UNSTARTED"
	BootstrapInitializing  BootstrapState = "INITIALIZING"
	BootstrapInitialized   BootstrapState = "INITIALIZED"
	BootstrapBootstrapping BootstrapState = "BOOTSTRAPPING"
	BootstrapBootstrapped  BootstrapState = "BOOTSTRAPPED"
	BootstrapStarted       BootstrapState = "STARTED"
	BootstrapFailed        BootstrapState = "FAILED"
)

// CommandType names an instruction the control plane sends a datanode
type CommandType string

const (
	CommandCreateContainer     CommandType = "CREATE_CONTAINER"
	CommandCloseContainer      CommandType = "CLOSE_CONTAINER"
	CommandQuasiCloseContainer CommandType = "QUASI_CLOSE_CONTAINER"
)

// DatanodeCommand is queued by the control plane and delivered to NodeID in
// its next heartbeat response
type DatanodeCommand struct {
	Type                  CommandType       `json:"type"`
	NodeID                string            `json:"nodeID"`
	ContainerID           int64             `json:"containerID"`
	PipelineID            string            `json:"pipelineID,omitempty"`
	BlockCommitSequenceID int64             `json:"blockCommitSequenceId,omitempty"`
	Replication           ReplicationConfig `json:"replication"`
	MaxSizeBytes          int64             `json:"maxSizeBytes,omitempty"`
	Owner                 string            `json:"owner,omitempty"`
	Reason                string            `json:"reason,omitempty"`
}
