package om

import (
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/types"
)

// Namespace owns the bucket and key tables and the handler of each layout
// family
type Namespace struct {
	buckets     *BucketTable
	keys        *KeyTable
	objectStore *KeyHandler
	fileSystem  *KeyHandler
}

// NewNamespace creates an empty namespace; broker may be nil
func NewNamespace(broker *events.Broker) *Namespace {
	buckets := NewBucketTable(broker)
	keys := NewKeyTable()
	return &Namespace{
		buckets:     buckets,
		keys:        keys,
		objectStore: NewObjectStoreHandler(buckets, keys),
		fileSystem:  NewFileSystemHandler(buckets, keys),
	}
}

// Buckets returns the bucket table
func (n *Namespace) Buckets() *BucketTable {
	return n.buckets
}

// Keys returns the key table
func (n *Namespace) Keys() *KeyTable {
	return n.keys
}

// HandlerFor returns the handler registered for layout
func (n *Namespace) HandlerFor(layout types.BucketLayout) *KeyHandler {
	if layout.IsFileSystemOptimized() {
		return n.fileSystem
	}
	return n.objectStore
}

// Route picks the handler for a key request. A writer that planned against
// a layout is routed by that layout, so a bucket recreated with another
// layout in between fails the layout check at commit. Without one the
// bucket's current layout decides.
func (n *Namespace) Route(volume, bucket string, planned types.BucketLayout) (*KeyHandler, error) {
	if planned != "" {
		return n.HandlerFor(planned), nil
	}
	b, err := n.buckets.Get(volume, bucket)
	if err != nil {
		return nil, err
	}
	return n.HandlerFor(b.Layout), nil
}

// OpenKey plans a write: it resolves the bucket and returns the request
// stamped with the bucket id
func (n *Namespace) OpenKey(volume, bucket, key string) (*types.BucketInfo, *Request, error) {
	h, err := n.Route(volume, bucket, "")
	if err != nil {
		return nil, nil, err
	}
	req := &Request{Volume: volume, Bucket: bucket, Key: key}
	b, err := h.Plan(req)
	if err != nil {
		return nil, nil, err
	}
	return b, req, nil
}

// CommitKey commits a planned write through the handler of planned
func (n *Namespace) CommitKey(req *Request, planned types.BucketLayout, args CommitArgs) (*types.KeyInfo, error) {
	h, err := n.Route(req.Volume, req.Bucket, planned)
	if err != nil {
		return nil, err
	}
	return h.CommitKey(req, args)
}

// DeleteKey removes a key through the handler of planned
func (n *Namespace) DeleteKey(req *Request, planned types.BucketLayout) error {
	h, err := n.Route(req.Volume, req.Bucket, planned)
	if err != nil {
		return err
	}
	return h.DeleteKey(req)
}

// GetKey returns a key record
func (n *Namespace) GetKey(volume, bucket, key string) (*types.KeyInfo, error) {
	h, err := n.Route(volume, bucket, "")
	if err != nil {
		return nil, err
	}
	return h.GetKey(volume, bucket, key)
}

// ListKeys returns the keys of an existing bucket starting with prefix
func (n *Namespace) ListKeys(volume, bucket, prefix string) ([]*types.KeyInfo, error) {
	if _, err := n.buckets.Get(volume, bucket); err != nil {
		return nil, err
	}
	return n.keys.List(volume, bucket, prefix), nil
}

// DeleteBucket removes an empty bucket
func (n *Namespace) DeleteBucket(volume, bucket string) error {
	return n.objectStore.DeleteBucket(volume, bucket)
}
