package om

import (
	"path"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// CommitArgs carries the data of a key commit
type CommitArgs struct {
	DataSize  int64
	Locations []types.KeyLocation
	Metadata  map[string]string
	ACLs      []types.ACL
}

// KeyHandler applies key mutations for one bucket layout family. Every
// mutation re-runs the layout and identity checks under the bucket lock
// immediately before it is applied, so a failed check leaves no trace.
type KeyHandler struct {
	layout  types.BucketLayout
	buckets *BucketTable
	keys    *KeyTable
	logger  zerolog.Logger
}

// NewObjectStoreHandler serves LEGACY and OBJECT_STORE buckets. Key names
// are opaque.
func NewObjectStoreHandler(buckets *BucketTable, keys *KeyTable) *KeyHandler {
	return &KeyHandler{
		layout:  types.BucketLayoutObjectStore,
		buckets: buckets,
		keys:    keys,
		logger:  log.WithComponent("om-objectstore"),
	}
}

// NewFileSystemHandler serves FILE_SYSTEM_OPTIMIZED buckets. Key names are
// paths and are normalized before use.
func NewFileSystemHandler(buckets *BucketTable, keys *KeyTable) *KeyHandler {
	return &KeyHandler{
		layout:  types.BucketLayoutFileSystemOptimized,
		buckets: buckets,
		keys:    keys,
		logger:  log.WithComponent("om-fso"),
	}
}

// Layout returns the layout the handler was registered for
func (h *KeyHandler) Layout() types.BucketLayout {
	return h.layout
}

// Plan resolves the request's bucket and stamps the request with the
// bucket's current id
func (h *KeyHandler) Plan(req *Request) (*types.BucketInfo, error) {
	b, err := h.buckets.Get(req.Volume, req.Bucket)
	if err != nil {
		return nil, err
	}
	req.WithBucketID(b.ObjectID)
	return b, nil
}

// CommitKey creates the key, or adds a new version to an existing key
func (h *KeyHandler) CommitKey(req *Request, args CommitArgs) (*types.KeyInfo, error) {
	name, err := h.keyName(req.Key)
	if err != nil {
		return nil, err
	}

	var committed *types.KeyInfo
	err = h.buckets.WithBucketLocked(req.Volume, req.Bucket, func(b *types.BucketInfo) error {
		if err := h.check(b, req); err != nil {
			return err
		}

		now := time.Now()
		key, err := h.keys.Get(req.Volume, req.Bucket, name)
		switch {
		case errdefs.IsNotFound(err):
			key = &types.KeyInfo{
				Volume:      req.Volume,
				Bucket:      req.Bucket,
				Name:        name,
				Replication: b.Replication,
				CreatedAt:   now,
			}
		case err != nil:
			return err
		}

		version := int64(0)
		if latest := key.LatestVersion(); latest != nil {
			version = latest.Version + 1
		}
		key.Versions = append(key.Versions, types.KeyLocationGroup{
			Version:   version,
			Locations: append([]types.KeyLocation(nil), args.Locations...),
		})
		key.DataSize = args.DataSize
		key.ModifiedAt = now
		if args.Metadata != nil {
			key.Metadata = args.Metadata
		}
		if args.ACLs != nil {
			key.ACLs = args.ACLs
		}

		h.keys.Put(key)
		committed = key.Copy()
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug().
		Str("key", keyPath(req.Volume, req.Bucket, name)).
		Int64("version", committed.LatestVersion().Version).
		Msg("Key committed")
	return committed, nil
}

// GetKey returns a key record, normalizing the name for the layout
func (h *KeyHandler) GetKey(volume, bucket, key string) (*types.KeyInfo, error) {
	name, err := h.keyName(key)
	if err != nil {
		return nil, err
	}
	return h.keys.Get(volume, bucket, name)
}

// DeleteKey removes a key
func (h *KeyHandler) DeleteKey(req *Request) error {
	name, err := h.keyName(req.Key)
	if err != nil {
		return err
	}

	return h.buckets.WithBucketLocked(req.Volume, req.Bucket, func(b *types.BucketInfo) error {
		if err := h.check(b, req); err != nil {
			return err
		}
		return h.keys.Delete(req.Volume, req.Bucket, name)
	})
}

// DeleteBucket removes an empty bucket
func (h *KeyHandler) DeleteBucket(volume, bucket string) error {
	return h.buckets.Delete(volume, bucket, func() bool {
		return h.keys.Count(volume, bucket) == 0
	})
}

func (h *KeyHandler) check(b *types.BucketInfo, req *Request) error {
	if err := CheckLayout(b.Layout, h.layout); err != nil {
		return err
	}
	return ValidateAssociatedBucketID(b.ObjectID, req)
}

func (h *KeyHandler) keyName(name string) (string, error) {
	if name == "" {
		return "", errdefs.InvalidArgument("key name is required")
	}
	if !h.layout.IsFileSystemOptimized() {
		return name, nil
	}

	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", errdefs.InvalidArgument("invalid key path %q", name)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+name), "/")
	if cleaned == "" || strings.HasSuffix(name, "/") {
		return "", errdefs.InvalidArgument("invalid key path %q", name)
	}
	return cleaned, nil
}
