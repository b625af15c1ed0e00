package scheduler

import (
	"sort"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Request describes the pipeline a caller needs placed
type Request struct {
	Replication types.ReplicationConfig
	// Size is the free space every member must still have
	Size int64
	// Exclude lists nodes that must not be picked
	Exclude []string
}

// Scheduler places pipelines on datanodes
type Scheduler struct {
	// pipelineLimit caps the live pipelines per node; 0 means no limit
	pipelineLimit int
	logger        zerolog.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(pipelineLimit int) *Scheduler {
	return &Scheduler{
		pipelineLimit: pipelineLimit,
		logger:        log.WithComponent("scheduler"),
	}
}

// SelectNodes picks RequiredNodes() distinct healthy nodes, least loaded
// first. The returned order is the pipeline member order.
func (s *Scheduler) SelectNodes(nodes []*types.Node, pipelines []*pipeline.Pipeline, req Request) ([]string, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PlacementLatency)

	required := req.Replication.RequiredNodes()
	if required < 1 {
		return nil, errdefs.InvalidConfiguration("replication %s needs no nodes", req.Replication)
	}

	load := livePipelineCounts(pipelines)
	candidates := s.filterReadyNodes(nodes, load, req)
	if len(candidates) < required {
		s.logger.Warn().
			Str("replication", req.Replication.String()).
			Int("ready", len(candidates)).
			Int("required", required).
			Msg("Not enough ready nodes for pipeline")
		return nil, errdefs.InvalidConfiguration(
			"replication %s requires %d ready nodes, found %d",
			req.Replication, required, len(candidates))
	}

	selected := make([]string, 0, required)
	for len(selected) < required {
		node := selectNode(candidates, load)
		selected = append(selected, node.ID)
		candidates = removeNode(candidates, node.ID)
	}

	s.logger.Debug().
		Strs("nodes", selected).
		Str("replication", req.Replication.String()).
		Msg("Placed pipeline")
	return selected, nil
}

// SelectPipeline returns the OPEN pipeline with the given replication that
// holds the fewest containers, as long as it holds fewer than
// maxContainers. It returns nil when a new pipeline is needed.
func (s *Scheduler) SelectPipeline(pipelines []*pipeline.Pipeline, replication types.ReplicationConfig, maxContainers int) *pipeline.Pipeline {
	var best *pipeline.Pipeline
	bestCount := 0
	for _, p := range pipelines {
		if p.State() != types.PipelineStateOpen || p.Replication() != replication {
			continue
		}
		count := p.ContainerCount()
		if maxContainers > 0 && count >= maxContainers {
			continue
		}
		if best == nil || count < bestCount {
			best = p
			bestCount = count
		}
	}
	return best
}

// filterReadyNodes keeps healthy nodes with room for the request, sorted by
// id so placement is deterministic
func (s *Scheduler) filterReadyNodes(nodes []*types.Node, load map[string]int, req Request) []*types.Node {
	excluded := make(map[string]struct{}, len(req.Exclude))
	for _, id := range req.Exclude {
		excluded[id] = struct{}{}
	}

	var ready []*types.Node
	for _, node := range nodes {
		if node.Status != types.NodeStatusHealthy {
			continue
		}
		if _, skip := excluded[node.ID]; skip {
			continue
		}
		if req.Size > 0 && node.CapacityBytes-node.UsedBytes < req.Size {
			continue
		}
		if s.pipelineLimit > 0 && load[node.ID] >= s.pipelineLimit {
			continue
		}
		ready = append(ready, node)
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	return ready
}

// livePipelineCounts counts the pipelines each node serves, CLOSED excluded
func livePipelineCounts(pipelines []*pipeline.Pipeline) map[string]int {
	counts := make(map[string]int)
	for _, p := range pipelines {
		if p.State() == types.PipelineStateClosed {
			continue
		}
		for _, n := range p.Nodes() {
			counts[n]++
		}
	}
	return counts
}

// selectNode chooses the node serving the fewest pipelines
func selectNode(nodes []*types.Node, load map[string]int) *types.Node {
	if len(nodes) == 0 {
		return nil
	}

	var selected *types.Node
	minCount := int(^uint(0) >> 1)
	for _, node := range nodes {
		if count := load[node.ID]; count < minCount {
			minCount = count
			selected = node
		}
	}
	return selected
}

func removeNode(nodes []*types.Node, id string) []*types.Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
