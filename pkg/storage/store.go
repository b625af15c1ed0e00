package storage

import (
	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/types"
)

// listPrealloc caps the slice capacity reserved for a ListBlocks result
const listPrealloc = 1024

// Counters is the aggregate physical state of one container, persisted
// together with every block write
type Counters struct {
	BlockCount            int64
	BlockCommitSequenceID int64
	BytesUsed             int64
}

// BlockStore is the chunk/block table of a single container, keyed by the
// block's local id
type BlockStore interface {
	// PutBlock upserts the block and stores counters in the same atomic step.
	// An existing block under the same local id is replaced wholesale.
	PutBlock(block *types.BlockData, counters Counters) error

	// GetBlock returns a NotFound error when the block is absent
	GetBlock(localID int64) (*types.BlockData, error)

	// ListBlocks returns at most count blocks with a local id strictly
	// greater than startLocalID, in ascending order
	ListBlocks(startLocalID int64, count int) ([]*types.BlockData, error)

	// Counters returns the last persisted counters (zero for a new table)
	Counters() (Counters, error)

	Close() error
}

// StateStore holds the control plane's view of the cluster
type StateStore interface {
	// Nodes
	CreateNode(node *types.Node) error
	GetNode(id string) (*types.Node, error)
	ListNodes() ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	DeleteNode(id string) error

	// Pipelines
	CreatePipeline(p *pipeline.Pipeline) error
	GetPipeline(id pipeline.ID) (*pipeline.Pipeline, error)
	ListPipelines() ([]*pipeline.Pipeline, error)
	UpdatePipeline(p *pipeline.Pipeline) error
	DeletePipeline(id pipeline.ID) error

	// Containers
	CreateContainer(info *types.ContainerInfo) error
	GetContainer(id int64) (*types.ContainerInfo, error)
	ListContainers() ([]*types.ContainerInfo, error)
	ListContainersByPipeline(pipelineID pipeline.ID) ([]*types.ContainerInfo, error)
	UpdateContainer(info *types.ContainerInfo) error
	DeleteContainer(id int64) error

	// Utility
	Close() error
}
