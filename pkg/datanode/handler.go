package datanode

import (
	"context"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/wire"
)

var _ api.DatanodeServer = (*handler)(nil)

// handler serves the datanode grpc API over a Datanode
type handler struct {
	dn *Datanode
}

// NewHandler returns the grpc service implementation of dn
func NewHandler(dn *Datanode) api.DatanodeServer {
	return &handler{dn: dn}
}

func (h *handler) CreateContainer(_ context.Context, req *api.CreateContainerRequest) (*api.ContainerResponse, error) {
	info, err := h.dn.CreateContainer(CreateContainerRequest{
		ContainerID:  req.ContainerID,
		PipelineID:   req.PipelineID,
		Replication:  req.Replication,
		MaxSizeBytes: req.MaxSizeBytes,
		Owner:        req.Owner,
	})
	if err != nil {
		return nil, err
	}
	return &api.ContainerResponse{Container: info}, nil
}

func (h *handler) CloseContainer(_ context.Context, req *api.CloseContainerRequest) (*api.ContainerResponse, error) {
	var err error
	var resp api.ContainerResponse
	if req.Quasi {
		resp.Container, err = h.dn.QuasiCloseContainer(req.ContainerID, req.Reason)
	} else {
		resp.Container, err = h.dn.CloseContainer(req.ContainerID, req.BlockCommitSequenceID)
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (h *handler) GetContainer(_ context.Context, req *api.ContainerRequest) (*api.ContainerResponse, error) {
	info, err := h.dn.GetContainer(req.ContainerID)
	if err != nil {
		return nil, err
	}
	return &api.ContainerResponse{Container: info}, nil
}

func (h *handler) ListContainers(context.Context, *api.Empty) (*api.ListContainersResponse, error) {
	return &api.ListContainersResponse{Containers: h.dn.Report()}, nil
}

func (h *handler) PutBlock(_ context.Context, req *api.PutBlockRequest) (*api.BlockResponse, error) {
	block, err := wire.UnmarshalBlockData(req.Block)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidArgument, err, "malformed block")
	}
	committed, err := h.dn.PutBlock(block)
	if err != nil {
		return nil, err
	}
	return &api.BlockResponse{Block: wire.MarshalBlockData(committed)}, nil
}

func (h *handler) GetBlock(_ context.Context, req *api.GetBlockRequest) (*api.BlockResponse, error) {
	block, err := h.dn.GetBlock(req.BlockID)
	if err != nil {
		return nil, err
	}
	return &api.BlockResponse{Block: wire.MarshalBlockData(block)}, nil
}

func (h *handler) ListBlock(_ context.Context, req *api.ListBlockRequest) (*api.ListBlockResponse, error) {
	blocks, err := h.dn.ListBlock(req.ContainerID, req.StartLocalID, req.Count)
	if err != nil {
		return nil, err
	}
	resp := &api.ListBlockResponse{Blocks: make([][]byte, 0, len(blocks))}
	for _, b := range blocks {
		resp.Blocks = append(resp.Blocks, wire.MarshalBlockData(b))
	}
	return resp, nil
}

func (h *handler) WriteChunk(_ context.Context, req *api.WriteChunkRequest) (*api.Empty, error) {
	if err := h.dn.WriteChunk(req.BlockID, req.Chunk, req.Data); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (h *handler) ReadChunk(_ context.Context, req *api.ReadChunkRequest) (*api.ReadChunkResponse, error) {
	data, err := h.dn.ReadChunk(req.BlockID, req.Chunk)
	if err != nil {
		return nil, err
	}
	return &api.ReadChunkResponse{Data: data}, nil
}
