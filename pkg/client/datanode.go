package client

import (
	"context"
	"fmt"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/wire"
	"google.golang.org/grpc"
)

// DatanodeClient talks to one storage node
type DatanodeClient struct {
	conn
}

// NewDatanodeClient connects to the datanode at addr
func NewDatanodeClient(addr string, opts ...grpc.DialOption) (*DatanodeClient, error) {
	cc, err := Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return NewDatanodeClientFromConn(cc), nil
}

// NewDatanodeClientFromConn wraps an existing connection
func NewDatanodeClientFromConn(cc *grpc.ClientConn) *DatanodeClient {
	return &DatanodeClient{conn{cc: cc, service: api.DatanodeServiceName}}
}

func (c *DatanodeClient) CreateContainer(ctx context.Context, req *api.CreateContainerRequest) (*types.ContainerInfo, error) {
	var resp api.ContainerResponse
	if err := c.invoke(ctx, "CreateContainer", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Container, nil
}

// CloseContainer closes the replica at the agreed sequence id
func (c *DatanodeClient) CloseContainer(ctx context.Context, containerID, bcsid int64) (*types.ContainerInfo, error) {
	return c.closeContainer(ctx, &api.CloseContainerRequest{ContainerID: containerID, BlockCommitSequenceID: bcsid})
}

// QuasiCloseContainer moves the replica to QUASI_CLOSED
func (c *DatanodeClient) QuasiCloseContainer(ctx context.Context, containerID int64, reason string) (*types.ContainerInfo, error) {
	return c.closeContainer(ctx, &api.CloseContainerRequest{ContainerID: containerID, Quasi: true, Reason: reason})
}

func (c *DatanodeClient) closeContainer(ctx context.Context, req *api.CloseContainerRequest) (*types.ContainerInfo, error) {
	var resp api.ContainerResponse
	if err := c.invoke(ctx, "CloseContainer", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Container, nil
}

func (c *DatanodeClient) GetContainer(ctx context.Context, containerID int64) (*types.ContainerInfo, error) {
	var resp api.ContainerResponse
	if err := c.invoke(ctx, "GetContainer", &api.ContainerRequest{ContainerID: containerID}, &resp); err != nil {
		return nil, err
	}
	return &resp.Container, nil
}

func (c *DatanodeClient) ListContainers(ctx context.Context) ([]types.ContainerInfo, error) {
	var resp api.ListContainersResponse
	if err := c.invoke(ctx, "ListContainers", &api.Empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.Containers, nil
}

// PutBlock stores block metadata and returns the block as committed
func (c *DatanodeClient) PutBlock(ctx context.Context, block *types.BlockData) (*types.BlockData, error) {
	var resp api.BlockResponse
	if err := c.invoke(ctx, "PutBlock", &api.PutBlockRequest{Block: wire.MarshalBlockData(block)}, &resp); err != nil {
		return nil, err
	}
	return decodeBlock(resp.Block)
}

func (c *DatanodeClient) GetBlock(ctx context.Context, id types.BlockID) (*types.BlockData, error) {
	var resp api.BlockResponse
	if err := c.invoke(ctx, "GetBlock", &api.GetBlockRequest{BlockID: id}, &resp); err != nil {
		return nil, err
	}
	return decodeBlock(resp.Block)
}

// ListBlock lists up to count blocks after startLocalID
func (c *DatanodeClient) ListBlock(ctx context.Context, containerID, startLocalID int64, count int) ([]*types.BlockData, error) {
	req := &api.ListBlockRequest{ContainerID: containerID, StartLocalID: startLocalID, Count: count}
	var resp api.ListBlockResponse
	if err := c.invoke(ctx, "ListBlock", req, &resp); err != nil {
		return nil, err
	}

	blocks := make([]*types.BlockData, 0, len(resp.Blocks))
	for _, raw := range resp.Blocks {
		b, err := decodeBlock(raw)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (c *DatanodeClient) WriteChunk(ctx context.Context, id types.BlockID, chunk types.ChunkInfo, data []byte) error {
	return c.invoke(ctx, "WriteChunk", &api.WriteChunkRequest{BlockID: id, Chunk: chunk, Data: data}, &api.Empty{})
}

func (c *DatanodeClient) ReadChunk(ctx context.Context, id types.BlockID, chunk types.ChunkInfo) ([]byte, error) {
	var resp api.ReadChunkResponse
	if err := c.invoke(ctx, "ReadChunk", &api.ReadChunkRequest{BlockID: id, Chunk: chunk}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func decodeBlock(raw []byte) (*types.BlockData, error) {
	b, err := wire.UnmarshalBlockData(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode block: %w", err)
	}
	return b, nil
}
