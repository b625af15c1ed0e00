package client

import (
	"context"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/types"
	"google.golang.org/grpc"
)

// SCMClient talks to a storage container manager
type SCMClient struct {
	conn
}

// NewSCMClient connects to the SCM at addr
func NewSCMClient(addr string, opts ...grpc.DialOption) (*SCMClient, error) {
	cc, err := Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return NewSCMClientFromConn(cc), nil
}

// NewSCMClientFromConn wraps an existing connection
func NewSCMClientFromConn(cc *grpc.ClientConn) *SCMClient {
	return &SCMClient{conn{cc: cc, service: api.SCMServiceName}}
}

// GetClusterInfo returns the cluster identity and raft peers
func (c *SCMClient) GetClusterInfo(ctx context.Context) (*api.ClusterInfo, error) {
	var resp api.ClusterInfo
	if err := c.invoke(ctx, "GetClusterInfo", &api.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddPeer asks the leader to add an SCM to the raft group
func (c *SCMClient) AddPeer(ctx context.Context, id, raftAddr string) error {
	return c.invoke(ctx, "AddPeer", &api.AddPeerRequest{Peer: api.Peer{ID: id, RaftAddr: raftAddr}}, &api.Empty{})
}

// RegisterDatanode registers a storage node and returns the cluster id
func (c *SCMClient) RegisterDatanode(ctx context.Context, node *types.Node) (*api.RegisterDatanodeResponse, error) {
	var resp api.RegisterDatanodeResponse
	if err := c.invoke(ctx, "RegisterDatanode", &api.RegisterDatanodeRequest{Node: *node}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat reports container state and returns queued commands
func (c *SCMClient) Heartbeat(ctx context.Context, nodeID string, usedBytes int64, reports []types.ContainerInfo) ([]types.DatanodeCommand, error) {
	req := &api.HeartbeatRequest{
		NodeID:     nodeID,
		UsedBytes:  usedBytes,
		Containers: reports,
	}
	var resp api.HeartbeatResponse
	if err := c.invoke(ctx, "Heartbeat", req, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// AllocateContainer asks for a new open container
func (c *SCMClient) AllocateContainer(ctx context.Context, replication types.ReplicationConfig, owner string) (*api.AllocateContainerResponse, error) {
	req := &api.AllocateContainerRequest{Replication: replication, Owner: owner}
	var resp api.AllocateContainerResponse
	if err := c.invoke(ctx, "AllocateContainer", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloseContainer asks the SCM to start closing a container
func (c *SCMClient) CloseContainer(ctx context.Context, containerID int64) error {
	return c.invoke(ctx, "CloseContainer", &api.ContainerRequest{ContainerID: containerID}, &api.Empty{})
}
