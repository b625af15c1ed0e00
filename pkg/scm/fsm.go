package scm

import (
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/hashicorp/raft"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Raft log operations
const (
	opCreateNode      = "create_node"
	opUpdateNode      = "update_node"
	opCreatePipeline  = "create_pipeline"
	opUpdatePipeline  = "update_pipeline"
	opCreateContainer = "create_container"
	opUpdateContainer = "update_container"
)

// FSM applies committed raft entries to the SCM state store
type FSM struct {
	mu    sync.RWMutex
	store storage.StateStore
}

// NewFSM creates a new FSM instance
func NewFSM(store storage.StateStore) *FSM {
	return &FSM{
		store: store,
	}
}

// logCommand represents a state change operation in the Raft log
type logCommand struct {
	Op   string              `json:"op"`
	Data jsoniter.RawMessage `json:"data"`
}

// Apply applies a Raft log entry to the FSM
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd logCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opCreateNode, opUpdateNode:
		var node types.Node
		if err := json.Unmarshal(cmd.Data, &node); err != nil {
			return err
		}
		if cmd.Op == opCreateNode {
			return f.store.CreateNode(&node)
		}
		return f.store.UpdateNode(&node)

	case opCreatePipeline, opUpdatePipeline:
		p := &pipeline.Pipeline{}
		if err := json.Unmarshal(cmd.Data, p); err != nil {
			return err
		}
		if cmd.Op == opCreatePipeline {
			return f.store.CreatePipeline(p)
		}
		return f.store.UpdatePipeline(p)

	case opCreateContainer, opUpdateContainer:
		var info types.ContainerInfo
		if err := json.Unmarshal(cmd.Data, &info); err != nil {
			return err
		}
		if cmd.Op == opCreateContainer {
			return f.store.CreateContainer(&info)
		}
		return f.store.UpdateContainer(&info)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot captures nodes, pipelines and containers
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	nodes, err := f.store.ListNodes()
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %v", err)
	}

	pipelines, err := f.store.ListPipelines()
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %v", err)
	}

	containers, err := f.store.ListContainers()
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %v", err)
	}

	return &Snapshot{
		Nodes:      nodes,
		Pipelines:  pipelines,
		Containers: containers,
	}, nil
}

// Restore replaces state from a snapshot when a node restarts or catches up
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, node := range snapshot.Nodes {
		if err := f.store.CreateNode(node); err != nil {
			return fmt.Errorf("failed to restore node: %v", err)
		}
	}

	for _, p := range snapshot.Pipelines {
		if err := f.store.CreatePipeline(p); err != nil {
			return fmt.Errorf("failed to restore pipeline: %v", err)
		}
	}

	for _, c := range snapshot.Containers {
		if err := f.store.CreateContainer(c); err != nil {
			return fmt.Errorf("failed to restore container: %v", err)
		}
	}

	return nil
}

// Snapshot is a point-in-time copy of SCM state
type Snapshot struct {
	Nodes      []*types.Node
	Pipelines  []*pipeline.Pipeline
	Containers []*types.ContainerInfo
}

// Persist writes the snapshot to the given SnapshotSink
func (s *Snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
	}

	return err
}

// Release is a no-op; the snapshot holds no resources
func (s *Snapshot) Release() {}
