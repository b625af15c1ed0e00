package om

import (
	"context"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/types"
)

var _ api.NamespaceServer = (*rpcHandler)(nil)

// rpcHandler serves the namespace grpc API over a Namespace
type rpcHandler struct {
	ns *Namespace
}

// NewRPCHandler returns the grpc service implementation of ns
func NewRPCHandler(ns *Namespace) api.NamespaceServer {
	return &rpcHandler{ns: ns}
}

func (h *rpcHandler) CreateBucket(_ context.Context, req *api.CreateBucketRequest) (*api.BucketResponse, error) {
	b, err := h.ns.Buckets().Create(req.Bucket)
	if err != nil {
		return nil, err
	}
	return &api.BucketResponse{Bucket: *b}, nil
}

func (h *rpcHandler) GetBucket(_ context.Context, req *api.BucketRequest) (*api.BucketResponse, error) {
	b, err := h.ns.Buckets().Get(req.Volume, req.Bucket)
	if err != nil {
		return nil, err
	}
	return &api.BucketResponse{Bucket: *b}, nil
}

func (h *rpcHandler) ListBuckets(_ context.Context, req *api.ListBucketsRequest) (*api.ListBucketsResponse, error) {
	list := h.ns.Buckets().List(req.Volume)
	resp := &api.ListBucketsResponse{Buckets: make([]types.BucketInfo, 0, len(list))}
	for _, b := range list {
		resp.Buckets = append(resp.Buckets, *b)
	}
	return resp, nil
}

func (h *rpcHandler) UpdateBucket(_ context.Context, req *api.UpdateBucketRequest) (*api.BucketResponse, error) {
	b, err := h.ns.Buckets().Update(req.Volume, req.Bucket, BucketUpdate{
		Replication: req.Replication,
		QuotaBytes:  req.QuotaBytes,
	})
	if err != nil {
		return nil, err
	}
	return &api.BucketResponse{Bucket: *b}, nil
}

func (h *rpcHandler) DeleteBucket(_ context.Context, req *api.BucketRequest) (*api.Empty, error) {
	if err := h.ns.DeleteBucket(req.Volume, req.Bucket); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (h *rpcHandler) OpenKey(_ context.Context, req *api.KeyRequest) (*api.OpenKeyResponse, error) {
	b, planned, err := h.ns.OpenKey(req.Volume, req.Bucket, req.Key)
	if err != nil {
		return nil, err
	}
	return &api.OpenKeyResponse{
		BucketID:    *planned.AssociatedBucketID,
		Layout:      b.Layout,
		Replication: b.Replication,
	}, nil
}

func (h *rpcHandler) CommitKey(_ context.Context, req *api.CommitKeyRequest) (*api.KeyResponse, error) {
	r := &Request{
		Volume:             req.Volume,
		Bucket:             req.Bucket,
		Key:                req.Key,
		AssociatedBucketID: req.BucketID,
	}
	key, err := h.ns.CommitKey(r, req.Layout, CommitArgs{
		DataSize:  req.DataSize,
		Locations: req.Locations,
		Metadata:  req.Metadata,
		ACLs:      req.ACLs,
	})
	if err != nil {
		return nil, err
	}
	return &api.KeyResponse{Key: *key}, nil
}

func (h *rpcHandler) GetKey(_ context.Context, req *api.KeyRequest) (*api.KeyResponse, error) {
	key, err := h.ns.GetKey(req.Volume, req.Bucket, req.Key)
	if err != nil {
		return nil, err
	}
	return &api.KeyResponse{Key: *key}, nil
}

func (h *rpcHandler) ListKeys(_ context.Context, req *api.ListKeysRequest) (*api.ListKeysResponse, error) {
	list, err := h.ns.ListKeys(req.Volume, req.Bucket, req.Prefix)
	if err != nil {
		return nil, err
	}
	resp := &api.ListKeysResponse{Keys: make([]types.KeyInfo, 0, len(list))}
	for _, k := range list {
		resp.Keys = append(resp.Keys, *k)
	}
	return resp, nil
}

func (h *rpcHandler) DeleteKey(_ context.Context, req *api.DeleteKeyRequest) (*api.Empty, error) {
	r := &Request{
		Volume:             req.Volume,
		Bucket:             req.Bucket,
		Key:                req.Key,
		AssociatedBucketID: req.BucketID,
	}
	if err := h.ns.DeleteKey(r, req.Layout); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}
