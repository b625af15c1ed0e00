package client

import (
	"context"
	"net"
	"sort"
	"sync"
	"testing"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// fakeDatanode keeps blocks and chunks of a single open container in memory
type fakeDatanode struct {
	mu     sync.Mutex
	closed bool
	blocks map[int64]*types.BlockData
	chunks map[string][]byte
}

func newFakeDatanode() *fakeDatanode {
	return &fakeDatanode{
		blocks: make(map[int64]*types.BlockData),
		chunks: make(map[string][]byte),
	}
}

func (f *fakeDatanode) info() types.ContainerInfo {
	state := types.ContainerStateOpen
	if f.closed {
		state = types.ContainerStateClosed
	}
	return types.ContainerInfo{ContainerID: 1, State: state, BlockCount: int64(len(f.blocks))}
}

func (f *fakeDatanode) CreateContainer(_ context.Context, req *api.CreateContainerRequest) (*api.ContainerResponse, error) {
	if req.ContainerID != 1 {
		return nil, errdefs.InvalidArgument("container %d already exists", req.ContainerID)
	}
	return &api.ContainerResponse{Container: f.info()}, nil
}

func (f *fakeDatanode) CloseContainer(_ context.Context, req *api.CloseContainerRequest) (*api.ContainerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	info := f.info()
	if req.Quasi {
		info.State = types.ContainerStateQuasiClosed
	}
	return &api.ContainerResponse{Container: info}, nil
}

func (f *fakeDatanode) GetContainer(_ context.Context, req *api.ContainerRequest) (*api.ContainerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ContainerID != 1 {
		return nil, errdefs.NotFound("container %d not found", req.ContainerID)
	}
	return &api.ContainerResponse{Container: f.info()}, nil
}

func (f *fakeDatanode) ListContainers(context.Context, *api.Empty) (*api.ListContainersResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &api.ListContainersResponse{Containers: []types.ContainerInfo{f.info()}}, nil
}

func (f *fakeDatanode) PutBlock(_ context.Context, req *api.PutBlockRequest) (*api.BlockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errdefs.ContainerNotOpen("container 1 is CLOSED")
	}
	b, err := wire.UnmarshalBlockData(req.Block)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidArgument, err, "bad block")
	}
	f.blocks[b.BlockID.LocalID] = b
	return &api.BlockResponse{Block: wire.MarshalBlockData(b)}, nil
}

func (f *fakeDatanode) GetBlock(_ context.Context, req *api.GetBlockRequest) (*api.BlockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[req.BlockID.LocalID]
	if !ok {
		return nil, errdefs.NotFound("unable to find the block %s", req.BlockID)
	}
	return &api.BlockResponse{Block: wire.MarshalBlockData(b)}, nil
}

func (f *fakeDatanode) ListBlock(_ context.Context, req *api.ListBlockRequest) (*api.ListBlockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.blocks))
	for id := range f.blocks {
		if id > req.StartLocalID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	resp := &api.ListBlockResponse{}
	for _, id := range ids {
		if len(resp.Blocks) == req.Count {
			break
		}
		resp.Blocks = append(resp.Blocks, wire.MarshalBlockData(f.blocks[id]))
	}
	return resp, nil
}

func (f *fakeDatanode) WriteChunk(_ context.Context, req *api.WriteChunkRequest) (*api.Empty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[req.Chunk.Name] = append([]byte(nil), req.Data...)
	return &api.Empty{}, nil
}

func (f *fakeDatanode) ReadChunk(_ context.Context, req *api.ReadChunkRequest) (*api.ReadChunkResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.chunks[req.Chunk.Name]
	if !ok {
		return nil, errdefs.NotFound("chunk %s not found", req.Chunk.Name)
	}
	return &api.ReadChunkResponse{Data: data}, nil
}

// fakeSCM hands out container 7 on a fixed pipeline
type fakeSCM struct {
	mu     sync.Mutex
	closed []int64
}

func (s *fakeSCM) GetClusterInfo(context.Context, *api.Empty) (*api.ClusterInfo, error) {
	return &api.ClusterInfo{ClusterID: "CID-client", SCMID: "scm-1", Peers: []api.Peer{{ID: "scm-1", RaftAddr: "127.0.0.1:9894"}}}, nil
}

func (s *fakeSCM) AddPeer(_ context.Context, req *api.AddPeerRequest) (*api.Empty, error) {
	if req.Peer.ID == "" {
		return nil, errdefs.InvalidArgument("peer id is required")
	}
	return &api.Empty{}, nil
}

func (s *fakeSCM) RegisterDatanode(_ context.Context, req *api.RegisterDatanodeRequest) (*api.RegisterDatanodeResponse, error) {
	node := req.Node
	node.Status = types.NodeStatusHealthy
	return &api.RegisterDatanodeResponse{ClusterID: "CID-client", Node: node}, nil
}

func (s *fakeSCM) Heartbeat(_ context.Context, req *api.HeartbeatRequest) (*api.HeartbeatResponse, error) {
	var cmds []types.DatanodeCommand
	for _, c := range req.Containers {
		if c.State == types.ContainerStateClosing {
			cmds = append(cmds, types.DatanodeCommand{
				Type:                  types.CommandCloseContainer,
				NodeID:                req.NodeID,
				ContainerID:           c.ContainerID,
				BlockCommitSequenceID: c.BlockCommitSequenceID,
			})
		}
	}
	return &api.HeartbeatResponse{Commands: cmds}, nil
}

func (s *fakeSCM) AllocateContainer(_ context.Context, req *api.AllocateContainerRequest) (*api.AllocateContainerResponse, error) {
	return &api.AllocateContainerResponse{
		Container: types.ContainerInfo{ContainerID: 7, PipelineID: "p-1", State: types.ContainerStateOpen, Replication: req.Replication, Owner: req.Owner},
		Members:   []api.Member{{ID: "dn-1", Address: "10.0.0.1:9858"}},
	}, nil
}

func (s *fakeSCM) CloseContainer(_ context.Context, req *api.ContainerRequest) (*api.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, req.ContainerID)
	return &api.Empty{}, nil
}

func serve(t *testing.T, register func(*api.Server)) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := api.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()

	cc, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		cc.Close()
		srv.Stop()
	})
	return cc
}

func TestDatanodeClientBlocks(t *testing.T) {
	dn := NewDatanodeClientFromConn(serve(t, func(s *api.Server) { s.RegisterDatanode(newFakeDatanode()) }))
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		b := types.NewBlockData(types.BlockID{ContainerID: 1, LocalID: i})
		b.Chunks = []types.ChunkInfo{{Name: "c", Offset: 0, Length: 16 * i}}
		require.NoError(t, b.AddMetadata("owner", "alice"))
		b.BlockCommitSequenceID = i
		_, err := dn.PutBlock(ctx, b)
		require.NoError(t, err)
	}

	got, err := dn.GetBlock(ctx, types.BlockID{ContainerID: 1, LocalID: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.BlockCommitSequenceID)
	assert.Equal(t, int64(48), got.Size())
	assert.Equal(t, "alice", got.Metadata["owner"])

	list, err := dn.ListBlock(ctx, 1, 1, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].BlockID.LocalID)
	assert.Equal(t, int64(3), list[1].BlockID.LocalID)

	_, err = dn.GetBlock(ctx, types.BlockID{ContainerID: 1, LocalID: 99})
	assert.True(t, errdefs.IsNotFound(err))
}

func TestDatanodeClientContainers(t *testing.T) {
	dn := NewDatanodeClientFromConn(serve(t, func(s *api.Server) { s.RegisterDatanode(newFakeDatanode()) }))
	ctx := context.Background()

	info, err := dn.CreateContainer(ctx, &api.CreateContainerRequest{ContainerID: 1, Replication: types.StandaloneReplication()})
	require.NoError(t, err)
	assert.Equal(t, types.ContainerStateOpen, info.State)

	_, err = dn.CreateContainer(ctx, &api.CreateContainerRequest{ContainerID: 2})
	assert.True(t, errdefs.IsInvalidArgument(err))

	_, err = dn.GetContainer(ctx, 5)
	assert.True(t, errdefs.IsNotFound(err))

	info, err = dn.QuasiCloseContainer(ctx, 1, "replica is ahead of the quorum sequence id")
	require.NoError(t, err)
	assert.Equal(t, types.ContainerStateQuasiClosed, info.State)

	info, err = dn.CloseContainer(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, types.ContainerStateClosed, info.State)

	all, err := dn.ListContainers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Writes to a closed container keep their kind across the wire
	_, err = dn.PutBlock(ctx, types.NewBlockData(types.BlockID{ContainerID: 1, LocalID: 1}))
	assert.True(t, errdefs.IsContainerNotOpen(err))
}

func TestDatanodeClientChunks(t *testing.T) {
	dn := NewDatanodeClientFromConn(serve(t, func(s *api.Server) { s.RegisterDatanode(newFakeDatanode()) }))
	ctx := context.Background()
	id := types.BlockID{ContainerID: 1, LocalID: 1}
	chunk := types.ChunkInfo{Name: "1_chunk_0", Offset: 0, Length: 5}

	require.NoError(t, dn.WriteChunk(ctx, id, chunk, []byte("hello")))
	data, err := dn.ReadChunk(ctx, id, chunk)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = dn.ReadChunk(ctx, id, types.ChunkInfo{Name: "missing", Length: 1})
	assert.True(t, errdefs.IsNotFound(err))
}

func TestSCMClient(t *testing.T) {
	fake := &fakeSCM{}
	scm := NewSCMClientFromConn(serve(t, func(s *api.Server) { s.RegisterSCM(fake) }))
	ctx := context.Background()

	info, err := scm.GetClusterInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CID-client", info.ClusterID)
	require.Len(t, info.Peers, 1)

	assert.True(t, errdefs.IsInvalidArgument(scm.AddPeer(ctx, "", "127.0.0.1:1")))
	assert.NoError(t, scm.AddPeer(ctx, "scm-2", "127.0.0.1:9895"))

	reg, err := scm.RegisterDatanode(ctx, &types.Node{ID: "dn-1", Address: "10.0.0.1:9858"})
	require.NoError(t, err)
	assert.Equal(t, types.NodeStatusHealthy, reg.Node.Status)

	cmds, err := scm.Heartbeat(ctx, "dn-1", 1024, []types.ContainerInfo{
		{ContainerID: 1, State: types.ContainerStateOpen},
		{ContainerID: 2, State: types.ContainerStateClosing, BlockCommitSequenceID: 9},
	})
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, types.CommandCloseContainer, cmds[0].Type)
	assert.Equal(t, int64(9), cmds[0].BlockCommitSequenceID)

	alloc, err := scm.AllocateContainer(ctx, types.RatisReplication(3), "analytics")
	require.NoError(t, err)
	assert.Equal(t, int64(7), alloc.Container.ContainerID)
	assert.Equal(t, types.RatisReplication(3), alloc.Container.Replication)
	require.Len(t, alloc.Members, 1)

	require.NoError(t, scm.CloseContainer(ctx, 7))
	fake.mu.Lock()
	assert.Equal(t, []int64{7}, fake.closed)
	fake.mu.Unlock()
}
