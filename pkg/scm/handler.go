package scm

import (
	"context"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/errdefs"
)

// handler serves the SCM grpc service from a Manager
type handler struct {
	manager *Manager
	info    *StorageInfo
}

var _ api.SCMServer = (*handler)(nil)

func (h *handler) GetClusterInfo(context.Context, *api.Empty) (*api.ClusterInfo, error) {
	resp := &api.ClusterInfo{
		ClusterID:  h.info.ClusterID,
		SCMID:      h.info.SCMID,
		LeaderAddr: h.manager.LeaderAddr(),
	}
	if servers, err := h.manager.GetClusterServers(); err == nil {
		for _, s := range servers {
			resp.Peers = append(resp.Peers, api.Peer{ID: string(s.ID), RaftAddr: string(s.Address)})
		}
	}
	return resp, nil
}

func (h *handler) AddPeer(_ context.Context, req *api.AddPeerRequest) (*api.Empty, error) {
	if req.Peer.ID == "" || req.Peer.RaftAddr == "" {
		return nil, errdefs.InvalidArgument("peer id and raft address are required")
	}
	if err := h.manager.AddVoter(req.Peer.ID, req.Peer.RaftAddr); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (h *handler) RegisterDatanode(_ context.Context, req *api.RegisterDatanodeRequest) (*api.RegisterDatanodeResponse, error) {
	node, err := h.manager.RegisterDatanode(&req.Node)
	if err != nil {
		return nil, err
	}
	return &api.RegisterDatanodeResponse{ClusterID: h.info.ClusterID, Node: *node}, nil
}

func (h *handler) Heartbeat(_ context.Context, req *api.HeartbeatRequest) (*api.HeartbeatResponse, error) {
	cmds, err := h.manager.ProcessHeartbeat(req.NodeID, req.UsedBytes, req.Containers)
	if err != nil {
		return nil, err
	}
	return &api.HeartbeatResponse{Commands: cmds}, nil
}

func (h *handler) AllocateContainer(_ context.Context, req *api.AllocateContainerRequest) (*api.AllocateContainerResponse, error) {
	info, p, err := h.manager.AllocateContainer(req.Replication, req.Owner)
	if err != nil {
		return nil, err
	}

	resp := &api.AllocateContainerResponse{Container: *info}
	for _, id := range p.Nodes() {
		member := api.Member{ID: id}
		if node, err := h.manager.GetNode(id); err == nil {
			member.Address = node.Address
		}
		resp.Members = append(resp.Members, member)
	}
	return resp, nil
}

func (h *handler) CloseContainer(_ context.Context, req *api.ContainerRequest) (*api.Empty, error) {
	if err := h.manager.CloseContainer(req.ContainerID); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}
