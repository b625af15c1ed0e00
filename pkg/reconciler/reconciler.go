package reconciler

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Cluster is the control-plane state the reconciler reads and corrects; the
// SCM manager implements it
type Cluster interface {
	IsLeader() bool
	ListNodes() ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	ListPipelines() ([]*pipeline.Pipeline, error)
	ClosePipeline(id pipeline.ID) error
	ListContainers() ([]*types.ContainerInfo, error)
	UpdateContainer(info *types.ContainerInfo) error
	Replicas(containerID int64) []Replica
	QueueCommand(cmd types.DatanodeCommand)
}

// Config tunes the reconciler
type Config struct {
	Interval          time.Duration
	StaleNodeInterval time.Duration
	DeadNodeInterval  time.Duration
	Events            *events.Broker
}

// Reconciler drives recorded cluster state toward what datanodes report
type Reconciler struct {
	cluster Cluster
	cfg     Config
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	now     func() time.Time
	logger  zerolog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(cluster Cluster, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.StaleNodeInterval <= 0 {
		cfg.StaleNodeInterval = 90 * time.Second
	}
	if cfg.DeadNodeInterval < cfg.StaleNodeInterval {
		cfg.DeadNodeInterval = cfg.StaleNodeInterval
	}
	return &Reconciler{
		cluster: cluster,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		now:     time.Now,
		logger:  log.WithComponent("reconciler"),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the loop and waits for the running cycle to finish
func (r *Reconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reconciler) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.cluster.IsLeader() {
				continue
			}
			if err := r.Reconcile(); err != nil {
				r.logger.Error().Err(err).Msg("Reconciliation cycle failed")
			}
		case <-r.stopCh:
			return
		}
	}
}

// Reconcile runs one cycle: node liveness first, then containers
func (r *Reconciler) Reconcile() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.reconcileNodes(); err != nil {
		return err
	}
	return r.reconcileContainers()
}

// reconcileNodes ages nodes by heartbeat: HEALTHY -> STALE -> DEAD. A
// heartbeat brings a node back to HEALTHY; that happens in the manager. A
// node turning DEAD closes every pipeline it belongs to.
func (r *Reconciler) reconcileNodes() error {
	nodes, err := r.cluster.ListNodes()
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	now := r.now()
	var dead []string
	for _, node := range nodes {
		silent := now.Sub(node.LastHeartbeat)

		next := node.Status
		switch {
		case silent > r.cfg.DeadNodeInterval:
			next = types.NodeStatusDead
		case silent > r.cfg.StaleNodeInterval:
			if node.Status == types.NodeStatusHealthy {
				next = types.NodeStatusStale
			}
		}
		if next == node.Status {
			continue
		}

		r.logger.Warn().
			Str("node_id", node.ID).
			Str("from", string(node.Status)).
			Str("to", string(next)).
			Dur("silent", silent).
			Msg("Node missed heartbeats")

		node.Status = next
		if err := r.cluster.UpdateNode(node); err != nil {
			r.logger.Error().Err(err).Str("node_id", node.ID).Msg("Failed to update node status")
			continue
		}

		eventType := events.EventNodeStale
		if next == types.NodeStatusDead {
			eventType = events.EventNodeDead
			dead = append(dead, node.ID)
		}
		r.cfg.Events.Publish(events.NewEvent(eventType,
			fmt.Sprintf("node %s is %s", node.ID, next),
			map[string]string{"node_id": node.ID}))
	}

	if len(dead) > 0 {
		return r.closePipelinesOn(dead)
	}
	return nil
}

func (r *Reconciler) closePipelinesOn(nodeIDs []string) error {
	pipelines, err := r.cluster.ListPipelines()
	if err != nil {
		return fmt.Errorf("failed to list pipelines: %w", err)
	}

	for _, p := range pipelines {
		if p.State() == types.PipelineStateClosed {
			continue
		}
		for _, id := range nodeIDs {
			if !p.IsMember(id) {
				continue
			}
			r.logger.Info().
				Str("pipeline_id", string(p.ID())).
				Str("node_id", id).
				Msg("Closing pipeline with dead member")
			if err := r.cluster.ClosePipeline(p.ID()); err != nil {
				r.logger.Error().Err(err).Str("pipeline_id", string(p.ID())).Msg("Failed to close pipeline")
			}
			break
		}
	}
	return nil
}

func (r *Reconciler) reconcileContainers() error {
	containers, err := r.cluster.ListContainers()
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	for _, info := range containers {
		d := Decide(info, r.cluster.Replicas(info.ContainerID))

		for _, cmd := range d.Commands {
			r.cluster.QueueCommand(cmd)
			metrics.ReconciliationCommandsTotal.WithLabelValues(string(cmd.Type)).Inc()
		}

		if !d.Changed() {
			continue
		}

		r.logger.Info().
			Int64("container_id", info.ContainerID).
			Str("from", string(info.State)).
			Str("to", string(d.State)).
			Int64("bcsid", d.BlockCommitSequenceID).
			Msg("Container state reconciled")

		updated := *info
		updated.State = d.State
		if d.BlockCommitSequenceID > 0 {
			updated.BlockCommitSequenceID = d.BlockCommitSequenceID
		}
		updated.UpdatedAt = r.now()
		if err := r.cluster.UpdateContainer(&updated); err != nil {
			r.logger.Error().Err(err).Int64("container_id", info.ContainerID).Msg("Failed to update container")
		}
	}
	return nil
}
