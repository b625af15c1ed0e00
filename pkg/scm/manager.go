package scm

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/reconciler"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

var (
	_ reconciler.Cluster = (*Manager)(nil)
	_ metrics.Source     = (*Manager)(nil)
)

// Manager holds the raft-replicated SCM state: datanodes, pipelines and
// container records. Replica reports and queued datanode commands are soft
// state kept only on the node that received them.
type Manager struct {
	nodeID   string
	raftAddr string
	dataDir  string
	inMemory bool

	raft      *raft.Raft
	transport raft.Transport
	fsm       *FSM
	store     storage.StateStore
	scheduler *scheduler.Scheduler
	events    *events.Broker

	containerSize         int64
	containersPerPipeline int

	// allocMu serializes container allocation so ids stay unique
	allocMu sync.Mutex

	mu       sync.Mutex
	replicas map[int64]map[string]reconciler.Replica
	commands map[string][]types.DatanodeCommand

	logger zerolog.Logger
}

// Config holds configuration for creating a Manager
type Config struct {
	NodeID   string
	RaftAddr string
	DataDir  string
	// InMemory keeps the raft log, snapshots and transport in memory
	InMemory bool

	ContainerSize         int64
	ContainersPerPipeline int
	PipelineLimit         int
	Events                *events.Broker
}

// NewManager creates a new Manager instance
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	store, err := storage.NewBoltStateStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %v", err)
	}

	perPipeline := cfg.ContainersPerPipeline
	if perPipeline < 1 {
		perPipeline = 1
	}

	return &Manager{
		nodeID:                cfg.NodeID,
		raftAddr:              cfg.RaftAddr,
		dataDir:               cfg.DataDir,
		inMemory:              cfg.InMemory,
		fsm:                   NewFSM(store),
		store:                 store,
		scheduler:             scheduler.NewScheduler(cfg.PipelineLimit),
		events:                cfg.Events,
		containerSize:         cfg.ContainerSize,
		containersPerPipeline: perPipeline,
		replicas:              make(map[int64]map[string]reconciler.Replica),
		commands:              make(map[string][]types.DatanodeCommand),
		logger:                log.WithNodeID(cfg.NodeID).With().Str("component", "scm").Logger(),
	}, nil
}

// openRaft creates the raft instance and reports whether it found state
// from an earlier run
func (m *Manager) openRaft() (bool, error) {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(m.nodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	config.LogOutput = m.logger
	config.LogLevel = "WARN"

	var (
		logStore    raft.LogStore
		stableStore raft.StableStore
		snapshots   raft.SnapshotStore
	)

	if m.inMemory {
		store := raft.NewInmemStore()
		logStore, stableStore = store, store
		snapshots = raft.NewInmemSnapshotStore()
		_, m.transport = raft.NewInmemTransport(raft.ServerAddress(m.raftAddr))
	} else {
		addr, err := net.ResolveTCPAddr("tcp", m.raftAddr)
		if err != nil {
			return false, fmt.Errorf("failed to resolve raft address: %v", err)
		}

		transport, err := raft.NewTCPTransport(m.raftAddr, addr, 3, 10*time.Second, m.logger)
		if err != nil {
			return false, fmt.Errorf("failed to create transport: %v", err)
		}
		m.transport = transport

		snapshots, err = raft.NewFileSnapshotStore(filepath.Join(m.dataDir, "raft"), 2, m.logger)
		if err != nil {
			return false, fmt.Errorf("failed to create snapshot store: %v", err)
		}

		logs, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-log.db"))
		if err != nil {
			return false, fmt.Errorf("failed to create log store: %v", err)
		}
		stable, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-stable.db"))
		if err != nil {
			return false, fmt.Errorf("failed to create stable store: %v", err)
		}
		logStore, stableStore = logs, stable
	}

	existing, err := raft.HasExistingState(logStore, stableStore, snapshots)
	if err != nil {
		return false, fmt.Errorf("failed to inspect raft state: %v", err)
	}

	r, err := raft.NewRaft(config, m.fsm, logStore, stableStore, snapshots, m.transport)
	if err != nil {
		return false, fmt.Errorf("failed to create raft: %v", err)
	}
	m.raft = r

	return existing, nil
}

// Bootstrap starts raft as the only voter of a new cluster. A node that
// already has raft state resumes it instead.
func (m *Manager) Bootstrap() error {
	existing, err := m.openRaft()
	if err != nil {
		return err
	}
	if existing {
		m.logger.Info().Msg("Resuming existing raft state")
		return nil
	}

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{
				ID:      raft.ServerID(m.nodeID),
				Address: m.transport.LocalAddr(),
			},
		},
	}

	future := m.raft.BootstrapCluster(configuration)
	if err := future.Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
		return fmt.Errorf("failed to bootstrap cluster: %v", err)
	}

	m.logger.Info().Str("raft_addr", m.raftAddr).Msg("Bootstrapped raft cluster")
	return nil
}

// Join starts raft without a configuration; the leader adds this node with
// AddVoter
func (m *Manager) Join() error {
	if _, err := m.openRaft(); err != nil {
		return err
	}
	m.logger.Info().Str("raft_addr", m.raftAddr).Msg("Waiting to be added to the raft cluster")
	return nil
}

// AddVoter adds an SCM to the raft cluster
func (m *Manager) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}

	m.logger.Info().Str("peer_id", nodeID).Str("peer_addr", address).Msg("Adding voter")

	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to add voter: %v", err)
	}
	return nil
}

// RemoveServer removes a server from the Raft cluster
func (m *Manager) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	if !m.IsLeader() {
		return fmt.Errorf("not the leader")
	}

	future := m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to remove server: %v", err)
	}
	return nil
}

// GetClusterServers returns the raft configuration
func (m *Manager) GetClusterServers() ([]raft.Server, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}

	future := m.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to get configuration: %v", err)
	}

	return future.Configuration().Servers, nil
}

// IsLeader returns true if this manager is the Raft leader
func (m *Manager) IsLeader() bool {
	if m.raft == nil {
		return false
	}
	return m.raft.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	addr, _ := m.raft.LeaderWithID()
	return string(addr)
}

// GetRaftStats returns Raft statistics
func (m *Manager) GetRaftStats() map[string]interface{} {
	if m.raft == nil {
		return nil
	}

	stats := make(map[string]interface{})
	stats["state"] = m.raft.State().String()
	stats["last_log_index"] = m.raft.LastIndex()
	stats["applied_index"] = m.raft.AppliedIndex()
	stats["leader"] = m.LeaderAddr()
	if servers, err := m.GetClusterServers(); err == nil {
		stats["peers"] = len(servers)
	}

	return stats
}

// Apply submits a command to the Raft cluster
func (m *Manager) Apply(cmd logCommand) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %v", err)
	}

	future := m.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to apply command: %v", err)
	}

	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) apply(op string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.Apply(logCommand{Op: op, Data: data})
}

// CreateNode adds a datanode record
func (m *Manager) CreateNode(node *types.Node) error {
	return m.apply(opCreateNode, node)
}

// UpdateNode replaces a datanode record
func (m *Manager) UpdateNode(node *types.Node) error {
	return m.apply(opUpdateNode, node)
}

func (m *Manager) CreatePipeline(p *pipeline.Pipeline) error {
	return m.apply(opCreatePipeline, p)
}

func (m *Manager) UpdatePipeline(p *pipeline.Pipeline) error {
	return m.apply(opUpdatePipeline, p)
}

func (m *Manager) CreateContainer(info *types.ContainerInfo) error {
	return m.apply(opCreateContainer, info)
}

// UpdateContainer replaces a container record. A container recorded CLOSED
// leaves its pipeline.
func (m *Manager) UpdateContainer(info *types.ContainerInfo) error {
	if err := m.apply(opUpdateContainer, info); err != nil {
		return err
	}
	if info.State != types.ContainerStateClosed {
		return nil
	}

	m.events.Publish(events.NewEvent(events.EventContainerClosed,
		fmt.Sprintf("container %d closed at sequence id %d", info.ContainerID, info.BlockCommitSequenceID),
		map[string]string{"container_id": fmt.Sprint(info.ContainerID), "pipeline_id": info.PipelineID}))

	if info.PipelineID == "" {
		return nil
	}
	p, err := m.store.GetPipeline(pipeline.ID(info.PipelineID))
	if err != nil {
		return err
	}
	p.RemoveContainer(info.ContainerID)
	return m.UpdatePipeline(p)
}

// GetNode reads a datanode from the local store
func (m *Manager) GetNode(id string) (*types.Node, error) {
	return m.store.GetNode(id)
}

// ListNodes returns all datanodes (read from local store)
func (m *Manager) ListNodes() ([]*types.Node, error) {
	return m.store.ListNodes()
}

func (m *Manager) GetPipeline(id pipeline.ID) (*pipeline.Pipeline, error) {
	return m.store.GetPipeline(id)
}

func (m *Manager) ListPipelines() ([]*pipeline.Pipeline, error) {
	return m.store.ListPipelines()
}

func (m *Manager) GetContainer(id int64) (*types.ContainerInfo, error) {
	return m.store.GetContainer(id)
}

func (m *Manager) ListContainers() ([]*types.ContainerInfo, error) {
	return m.store.ListContainers()
}

// Shutdown stops raft and closes the state store
func (m *Manager) Shutdown() error {
	if m.raft != nil {
		future := m.raft.Shutdown()
		if err := future.Error(); err != nil {
			return fmt.Errorf("failed to shutdown raft: %v", err)
		}
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %v", err)
		}
	}

	return nil
}
