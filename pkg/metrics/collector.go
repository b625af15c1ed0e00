package metrics

import (
	"time"

	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/types"
)

// Source is the cluster view the collector samples; the SCM manager
// implements it
type Source interface {
	ListNodes() ([]*types.Node, error)
	ListPipelines() ([]*pipeline.Pipeline, error)
	ListContainers() ([]*types.ContainerInfo, error)
	IsLeader() bool
	GetRaftStats() map[string]interface{}
}

// Collector periodically exports gauges from a Source
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		defer close(c.doneCh)

		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector and waits for the loop to exit
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// Collect samples the source once
func (c *Collector) Collect() {
	c.collectNodeMetrics()
	c.collectPipelineMetrics()
	c.collectContainerMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectNodeMetrics() {
	nodes, err := c.source.ListNodes()
	if err != nil {
		return
	}

	counts := map[types.NodeStatus]int{
		types.NodeStatusHealthy: 0,
		types.NodeStatusStale:   0,
		types.NodeStatusDead:    0,
	}
	for _, node := range nodes {
		counts[node.Status]++
	}

	for status, count := range counts {
		NodesTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectPipelineMetrics() {
	pipelines, err := c.source.ListPipelines()
	if err != nil {
		return
	}

	counts := map[types.PipelineState]int{
		types.PipelineStateAllocated: 0,
		types.PipelineStateOpen:      0,
		types.PipelineStateDormant:   0,
		types.PipelineStateClosed:    0,
	}
	for _, p := range pipelines {
		counts[p.State()]++
	}

	for state, count := range counts {
		PipelinesTotal.WithLabelValues(string(state)).Set(float64(count))
	}
}

func (c *Collector) collectContainerMetrics() {
	containers, err := c.source.ListContainers()
	if err != nil {
		return
	}

	counts := map[types.ContainerState]int{
		types.ContainerStateOpen:        0,
		types.ContainerStateClosing:     0,
		types.ContainerStateQuasiClosed: 0,
		types.ContainerStateClosed:      0,
		types.ContainerStateUnhealthy:   0,
		types.ContainerStateInvalid:     0,
	}
	for _, info := range containers {
		counts[info.State]++
	}

	for state, count := range counts {
		ContainersTotal.WithLabelValues(string(state)).Set(float64(count))
	}
}

func (c *Collector) collectRaftMetrics() {
	if c.source.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	stats := c.source.GetRaftStats()
	if stats == nil {
		return
	}
	if lastIndex, ok := stats["last_log_index"].(uint64); ok {
		RaftLogIndex.Set(float64(lastIndex))
	}
	if appliedIndex, ok := stats["applied_index"].(uint64); ok {
		RaftAppliedIndex.Set(float64(appliedIndex))
	}
	if peers, ok := stats["peers"].(int); ok {
		RaftPeers.Set(float64(peers))
	}
}
