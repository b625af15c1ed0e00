package scm

import (
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/reconciler"
	"github.com/cuemby/burrow/pkg/scheduler"
	"github.com/cuemby/burrow/pkg/types"
)

// RegisterDatanode records a datanode as HEALTHY. Registering again updates
// its address and capacity.
func (m *Manager) RegisterDatanode(node *types.Node) (*types.Node, error) {
	if node.ID == "" {
		return nil, errdefs.InvalidArgument("datanode id is required")
	}
	if node.Address == "" {
		return nil, errdefs.InvalidArgument("datanode %s has no address", node.ID)
	}

	now := time.Now()
	existing, err := m.store.GetNode(node.ID)
	switch {
	case err == nil:
		existing.Address = node.Address
		existing.Hostname = node.Hostname
		existing.CapacityBytes = node.CapacityBytes
		existing.UsedBytes = node.UsedBytes
		existing.Status = types.NodeStatusHealthy
		existing.LastHeartbeat = now
		if err := m.UpdateNode(existing); err != nil {
			return nil, err
		}
		node = existing
	case errdefs.IsNotFound(err):
		registered := *node
		registered.Status = types.NodeStatusHealthy
		registered.LastHeartbeat = now
		registered.CreatedAt = now
		if err := m.CreateNode(&registered); err != nil {
			return nil, err
		}
		node = &registered
	default:
		return nil, err
	}

	m.logger.Info().Str("datanode", node.ID).Str("address", node.Address).Msg("Datanode registered")
	m.events.Publish(events.NewEvent(events.EventNodeRegistered,
		fmt.Sprintf("datanode %s registered", node.ID),
		map[string]string{"node_id": node.ID, "address": node.Address}))
	return node, nil
}

// ProcessHeartbeat refreshes a datanode, records its replica reports and
// returns the commands queued for it
func (m *Manager) ProcessHeartbeat(nodeID string, usedBytes int64, reports []types.ContainerInfo) ([]types.DatanodeCommand, error) {
	node, err := m.store.GetNode(nodeID)
	if err != nil {
		return nil, err
	}

	node.UsedBytes = usedBytes
	node.LastHeartbeat = time.Now()
	node.Status = types.NodeStatusHealthy
	if err := m.UpdateNode(node); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range reports {
		byNode, ok := m.replicas[r.ContainerID]
		if !ok {
			byNode = make(map[string]reconciler.Replica)
			m.replicas[r.ContainerID] = byNode
		}
		byNode[nodeID] = reconciler.Replica{
			NodeID:                nodeID,
			State:                 r.State,
			BlockCommitSequenceID: r.BlockCommitSequenceID,
		}
	}

	cmds := m.commands[nodeID]
	delete(m.commands, nodeID)
	return cmds, nil
}

// Replicas returns the last report of every live replica of a container,
// ordered by node id
func (m *Manager) Replicas(containerID int64) []reconciler.Replica {
	dead := make(map[string]bool)
	if nodes, err := m.store.ListNodes(); err == nil {
		for _, n := range nodes {
			dead[n.ID] = n.Status == types.NodeStatusDead
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []reconciler.Replica
	for nodeID, r := range m.replicas[containerID] {
		if dead[nodeID] {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// QueueCommand holds cmd until the target datanode's next heartbeat. A
// command of the same type for the same container replaces the queued one.
func (m *Manager) QueueCommand(cmd types.DatanodeCommand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.commands[cmd.NodeID]
	for i, queued := range queue {
		if queued.Type == cmd.Type && queued.ContainerID == cmd.ContainerID {
			queue[i] = cmd
			return
		}
	}
	m.commands[cmd.NodeID] = append(queue, cmd)
}

// PendingCommands returns how many commands wait for nodeID
func (m *Manager) PendingCommands(nodeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands[nodeID])
}

// AllocateContainer records a new OPEN container. It reuses an open pipeline
// with room, or places a new one on the least loaded ready datanodes.
func (m *Manager) AllocateContainer(replication types.ReplicationConfig, owner string) (*types.ContainerInfo, *pipeline.Pipeline, error) {
	m.allocMu.Lock()
	defer m.allocMu.Unlock()

	pipelines, err := m.store.ListPipelines()
	if err != nil {
		return nil, nil, err
	}

	p := m.scheduler.SelectPipeline(pipelines, replication, m.containersPerPipeline)
	if p == nil {
		if p, err = m.allocatePipeline(pipelines, replication); err != nil {
			return nil, nil, err
		}
	}

	containers, err := m.store.ListContainers()
	if err != nil {
		return nil, nil, err
	}
	var next int64 = 1
	for _, c := range containers {
		if c.ContainerID >= next {
			next = c.ContainerID + 1
		}
	}

	info := &types.ContainerInfo{
		ContainerID:  next,
		PipelineID:   string(p.ID()),
		State:        types.ContainerStateOpen,
		MaxSizeBytes: m.containerSize,
		Owner:        owner,
		Replication:  replication,
		UpdatedAt:    time.Now(),
	}
	if err := p.AddContainer(info.ContainerID); err != nil {
		return nil, nil, err
	}
	if err := m.CreateContainer(info); err != nil {
		return nil, nil, err
	}
	if err := m.UpdatePipeline(p); err != nil {
		return nil, nil, err
	}

	for _, nodeID := range p.Nodes() {
		m.QueueCommand(types.DatanodeCommand{
			Type:         types.CommandCreateContainer,
			NodeID:       nodeID,
			ContainerID:  info.ContainerID,
			PipelineID:   info.PipelineID,
			Replication:  replication,
			MaxSizeBytes: info.MaxSizeBytes,
			Owner:        owner,
		})
	}

	m.logger.Info().
		Int64("container_id", info.ContainerID).
		Str("pipeline_id", info.PipelineID).
		Str("replication", replication.String()).
		Msg("Allocated container")
	m.events.Publish(events.NewEvent(events.EventContainerCreated,
		fmt.Sprintf("container %d allocated on pipeline %s", info.ContainerID, info.PipelineID),
		map[string]string{"container_id": fmt.Sprint(info.ContainerID), "pipeline_id": info.PipelineID}))

	return info, p, nil
}

func (m *Manager) allocatePipeline(pipelines []*pipeline.Pipeline, replication types.ReplicationConfig) (*pipeline.Pipeline, error) {
	nodes, err := m.store.ListNodes()
	if err != nil {
		return nil, err
	}

	members, err := m.scheduler.SelectNodes(nodes, pipelines, scheduler.Request{
		Replication: replication,
		Size:        m.containerSize,
	})
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(pipeline.NewID(), members, replication)
	if err != nil {
		return nil, err
	}
	if err := p.Open(); err != nil {
		return nil, err
	}
	if err := m.CreatePipeline(p); err != nil {
		return nil, err
	}

	metrics.PipelinesAllocated.Inc()
	m.events.Publish(events.NewEvent(events.EventPipelineOpened,
		fmt.Sprintf("pipeline %s opened on %v", p.ID(), members),
		map[string]string{"pipeline_id": string(p.ID())}))
	return p, nil
}

// CloseContainer moves an OPEN container record to CLOSING; the reconciler
// finishes the close. Containers already closing or closed are left alone.
func (m *Manager) CloseContainer(id int64) error {
	info, err := m.store.GetContainer(id)
	if err != nil {
		return err
	}
	if info.State != types.ContainerStateOpen {
		return nil
	}
	return m.markClosing(info)
}

func (m *Manager) markClosing(info *types.ContainerInfo) error {
	info.State = types.ContainerStateClosing
	info.UpdatedAt = time.Now()
	if err := m.UpdateContainer(info); err != nil {
		return err
	}

	m.events.Publish(events.NewEvent(events.EventContainerClosing,
		fmt.Sprintf("container %d is closing", info.ContainerID),
		map[string]string{"container_id": fmt.Sprint(info.ContainerID)}))
	return nil
}

// ClosePipeline closes a pipeline and starts closing its open containers
func (m *Manager) ClosePipeline(id pipeline.ID) error {
	p, err := m.store.GetPipeline(id)
	if err != nil {
		return err
	}
	if p.State() == types.PipelineStateClosed {
		return nil
	}
	if err := p.Close(); err != nil {
		return err
	}
	if err := m.UpdatePipeline(p); err != nil {
		return err
	}

	containers, err := m.store.ListContainersByPipeline(id)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if c.State != types.ContainerStateOpen {
			continue
		}
		if err := m.markClosing(c); err != nil {
			return err
		}
	}

	m.logger.Info().Str("pipeline_id", string(id)).Msg("Pipeline closed")
	m.events.Publish(events.NewEvent(events.EventPipelineClosed,
		fmt.Sprintf("pipeline %s closed", id),
		map[string]string{"pipeline_id": string(id)}))
	return nil
}
