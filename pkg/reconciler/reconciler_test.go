package reconciler

import (
	"sync"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeCluster struct {
	mu         sync.Mutex
	leader     bool
	nodes      map[string]*types.Node
	pipelines  []*pipeline.Pipeline
	containers map[int64]*types.ContainerInfo
	replicas   map[int64][]Replica
	commands   []types.DatanodeCommand
	cycles     int
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		leader:     true,
		nodes:      make(map[string]*types.Node),
		containers: make(map[int64]*types.ContainerInfo),
		replicas:   make(map[int64][]Replica),
	}
}

func (f *fakeCluster) IsLeader() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leader
}

func (f *fakeCluster) ListNodes() ([]*types.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles++
	var out []*types.Node
	for _, n := range f.nodes {
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeCluster) UpdateNode(node *types.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *node
	f.nodes[node.ID] = &cp
	return nil
}

func (f *fakeCluster) ListPipelines() ([]*pipeline.Pipeline, error) {
	return f.pipelines, nil
}

func (f *fakeCluster) ClosePipeline(id pipeline.ID) error {
	for _, p := range f.pipelines {
		if p.ID() == id {
			return p.Close()
		}
	}
	return errdefs.NotFound("pipeline %s not found", id)
}

func (f *fakeCluster) ListContainers() ([]*types.ContainerInfo, error) {
	var out []*types.ContainerInfo
	for _, c := range f.containers {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeCluster) UpdateContainer(info *types.ContainerInfo) error {
	cp := *info
	f.containers[info.ContainerID] = &cp
	return nil
}

func (f *fakeCluster) Replicas(containerID int64) []Replica {
	return f.replicas[containerID]
}

func (f *fakeCluster) QueueCommand(cmd types.DatanodeCommand) {
	f.commands = append(f.commands, cmd)
}

func TestReconcileNodeLiveness(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	cluster := newFakeCluster()
	cluster.nodes["fresh"] = &types.Node{ID: "fresh", Status: types.NodeStatusHealthy, LastHeartbeat: now.Add(-5 * time.Second)}
	cluster.nodes["quiet"] = &types.Node{ID: "quiet", Status: types.NodeStatusHealthy, LastHeartbeat: now.Add(-2 * time.Minute)}
	cluster.nodes["gone"] = &types.Node{ID: "gone", Status: types.NodeStatusStale, LastHeartbeat: now.Add(-time.Hour)}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	r := NewReconciler(cluster, Config{
		StaleNodeInterval: 90 * time.Second,
		DeadNodeInterval:  10 * time.Minute,
		Events:            broker,
	})
	r.now = func() time.Time { return now }

	require.NoError(t, r.Reconcile())

	assert.Equal(t, types.NodeStatusHealthy, cluster.nodes["fresh"].Status)
	assert.Equal(t, types.NodeStatusStale, cluster.nodes["quiet"].Status)
	assert.Equal(t, types.NodeStatusDead, cluster.nodes["gone"].Status)

	seen := map[events.EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub:
			seen[ev.Type] = true
		case <-time.After(time.Second):
			t.Fatal("expected node events")
		}
	}
	assert.True(t, seen[events.EventNodeStale])
	assert.True(t, seen[events.EventNodeDead])
}

func TestReconcileClosesPipelinesOfDeadNodes(t *testing.T) {
	now := time.Now()
	cluster := newFakeCluster()
	cluster.nodes["dn-1"] = &types.Node{ID: "dn-1", Status: types.NodeStatusHealthy, LastHeartbeat: now}
	cluster.nodes["dn-2"] = &types.Node{ID: "dn-2", Status: types.NodeStatusHealthy, LastHeartbeat: now.Add(-time.Hour)}

	withDead, err := pipeline.New(pipeline.NewID(), []string{"dn-2"}, types.StandaloneReplication())
	require.NoError(t, err)
	require.NoError(t, withDead.Open())
	healthy, err := pipeline.New(pipeline.NewID(), []string{"dn-1"}, types.StandaloneReplication())
	require.NoError(t, err)
	require.NoError(t, healthy.Open())
	cluster.pipelines = []*pipeline.Pipeline{withDead, healthy}

	r := NewReconciler(cluster, Config{})
	require.NoError(t, r.Reconcile())

	assert.Equal(t, types.PipelineStateClosed, withDead.State())
	assert.Equal(t, types.PipelineStateOpen, healthy.State())
}

func TestReconcileContainers(t *testing.T) {
	cluster := newFakeCluster()
	cluster.containers[1] = &types.ContainerInfo{
		ContainerID: 1,
		State:       types.ContainerStateClosing,
		Replication: types.RatisReplication(3),
	}
	cluster.replicas[1] = []Replica{
		{NodeID: "dn-1", State: types.ContainerStateClosing, BlockCommitSequenceID: 4},
		{NodeID: "dn-2", State: types.ContainerStateClosing, BlockCommitSequenceID: 4},
		{NodeID: "dn-3", State: types.ContainerStateClosing, BlockCommitSequenceID: 1},
	}
	cluster.containers[2] = &types.ContainerInfo{
		ContainerID: 2,
		State:       types.ContainerStateClosing,
		Replication: types.StandaloneReplication(),
	}
	cluster.replicas[2] = []Replica{
		{NodeID: "dn-1", State: types.ContainerStateClosed, BlockCommitSequenceID: 11},
	}

	r := NewReconciler(cluster, Config{})
	require.NoError(t, r.Reconcile())

	require.Len(t, cluster.commands, 2)
	for _, cmd := range cluster.commands {
		assert.Equal(t, int64(1), cmd.ContainerID)
		assert.Equal(t, int64(4), cmd.BlockCommitSequenceID)
	}

	assert.Equal(t, types.ContainerStateClosing, cluster.containers[1].State)
	assert.Equal(t, types.ContainerStateClosed, cluster.containers[2].State)
	assert.Equal(t, int64(11), cluster.containers[2].BlockCommitSequenceID)
}

func TestReconcilerLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cluster := newFakeCluster()
	r := NewReconciler(cluster, Config{Interval: 10 * time.Millisecond})
	r.Start()

	assert.Eventually(t, func() bool {
		cluster.mu.Lock()
		defer cluster.mu.Unlock()
		return cluster.cycles >= 2
	}, time.Second, 5*time.Millisecond)

	r.Stop()
}

func TestReconcilerSkipsFollowers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cluster := newFakeCluster()
	cluster.leader = false
	r := NewReconciler(cluster, Config{Interval: 5 * time.Millisecond})
	r.Start()
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.Zero(t, cluster.cycles)
}
