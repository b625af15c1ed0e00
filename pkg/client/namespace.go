package client

import (
	"context"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/types"
	"google.golang.org/grpc"
)

// NamespaceClient talks to a namespace manager
type NamespaceClient struct {
	conn
}

// NewNamespaceClient connects to the namespace manager at addr
func NewNamespaceClient(addr string, opts ...grpc.DialOption) (*NamespaceClient, error) {
	cc, err := Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return NewNamespaceClientFromConn(cc), nil
}

// NewNamespaceClientFromConn wraps an existing connection
func NewNamespaceClientFromConn(cc *grpc.ClientConn) *NamespaceClient {
	return &NamespaceClient{conn{cc: cc, service: api.NamespaceServiceName}}
}

// CreateBucket creates a bucket and returns it with its assigned id
func (c *NamespaceClient) CreateBucket(ctx context.Context, bucket types.BucketInfo) (*types.BucketInfo, error) {
	var resp api.BucketResponse
	if err := c.invoke(ctx, "CreateBucket", &api.CreateBucketRequest{Bucket: bucket}, &resp); err != nil {
		return nil, err
	}
	return &resp.Bucket, nil
}

// GetBucket returns a bucket record
func (c *NamespaceClient) GetBucket(ctx context.Context, volume, bucket string) (*types.BucketInfo, error) {
	var resp api.BucketResponse
	if err := c.invoke(ctx, "GetBucket", &api.BucketRequest{Volume: volume, Bucket: bucket}, &resp); err != nil {
		return nil, err
	}
	return &resp.Bucket, nil
}

// ListBuckets returns the buckets of a volume ordered by name
func (c *NamespaceClient) ListBuckets(ctx context.Context, volume string) ([]types.BucketInfo, error) {
	var resp api.ListBucketsResponse
	if err := c.invoke(ctx, "ListBuckets", &api.ListBucketsRequest{Volume: volume}, &resp); err != nil {
		return nil, err
	}
	return resp.Buckets, nil
}

// UpdateBucket changes the non-nil properties in req
func (c *NamespaceClient) UpdateBucket(ctx context.Context, req *api.UpdateBucketRequest) (*types.BucketInfo, error) {
	var resp api.BucketResponse
	if err := c.invoke(ctx, "UpdateBucket", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Bucket, nil
}

// DeleteBucket removes an empty bucket
func (c *NamespaceClient) DeleteBucket(ctx context.Context, volume, bucket string) error {
	return c.invoke(ctx, "DeleteBucket", &api.BucketRequest{Volume: volume, Bucket: bucket}, &api.Empty{})
}

// OpenKey plans a write and returns the bucket id and layout to commit with
func (c *NamespaceClient) OpenKey(ctx context.Context, volume, bucket, key string) (*api.OpenKeyResponse, error) {
	var resp api.OpenKeyResponse
	if err := c.invoke(ctx, "OpenKey", &api.KeyRequest{Volume: volume, Bucket: bucket, Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CommitKey commits a key planned by OpenKey
func (c *NamespaceClient) CommitKey(ctx context.Context, req *api.CommitKeyRequest) (*types.KeyInfo, error) {
	var resp api.KeyResponse
	if err := c.invoke(ctx, "CommitKey", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Key, nil
}

// GetKey returns a key record
func (c *NamespaceClient) GetKey(ctx context.Context, volume, bucket, key string) (*types.KeyInfo, error) {
	var resp api.KeyResponse
	if err := c.invoke(ctx, "GetKey", &api.KeyRequest{Volume: volume, Bucket: bucket, Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp.Key, nil
}

// ListKeys returns the keys of a bucket starting with prefix
func (c *NamespaceClient) ListKeys(ctx context.Context, volume, bucket, prefix string) ([]types.KeyInfo, error) {
	var resp api.ListKeysResponse
	req := &api.ListKeysRequest{Volume: volume, Bucket: bucket, Prefix: prefix}
	if err := c.invoke(ctx, "ListKeys", req, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// DeleteKey removes a key
func (c *NamespaceClient) DeleteKey(ctx context.Context, req *api.DeleteKeyRequest) error {
	return c.invoke(ctx, "DeleteKey", req, &api.Empty{})
}
