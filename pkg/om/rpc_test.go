package om

import (
	"context"
	"net"
	"testing"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/client"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func serveNamespace(t *testing.T) (*client.NamespaceClient, *Namespace) {
	t.Helper()

	ns := NewNamespace(nil)
	lis := bufconn.Listen(1 << 20)
	srv := api.NewServer()
	srv.RegisterNamespace(NewRPCHandler(ns))
	go func() { _ = srv.Serve(lis) }()

	cc, err := client.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		cc.Close()
		srv.Stop()
	})
	return client.NewNamespaceClientFromConn(cc), ns
}

func TestNamespaceBucketLifecycle(t *testing.T) {
	c, _ := serveNamespace(t)
	ctx := context.Background()

	created, err := c.CreateBucket(ctx, types.BucketInfo{Volume: "vol1", Name: "b1", Replication: types.RatisReplication(3)})
	require.NoError(t, err)
	assert.Equal(t, types.BucketLayoutLegacy, created.Layout)
	assert.Positive(t, created.ObjectID)

	_, err = c.CreateBucket(ctx, types.BucketInfo{Volume: "vol1", Name: "b0", Layout: types.BucketLayoutFileSystemOptimized})
	require.NoError(t, err)

	_, err = c.CreateBucket(ctx, types.BucketInfo{Volume: "vol1", Name: "b1"})
	assert.True(t, errdefs.IsInvalidArgument(err))

	got, err := c.GetBucket(ctx, "vol1", "b1")
	require.NoError(t, err)
	assert.Equal(t, created.ObjectID, got.ObjectID)

	list, err := c.ListBuckets(ctx, "vol1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b0", list[0].Name)
	assert.Equal(t, "b1", list[1].Name)

	quota := int64(1 << 20)
	updated, err := c.UpdateBucket(ctx, &api.UpdateBucketRequest{Volume: "vol1", Bucket: "b1", QuotaBytes: &quota})
	require.NoError(t, err)
	assert.Equal(t, quota, updated.QuotaBytes)
	assert.Equal(t, created.ObjectID, updated.ObjectID)

	repl := types.StandaloneReplication()
	updated, err = c.UpdateBucket(ctx, &api.UpdateBucketRequest{Volume: "vol1", Bucket: "b1", Replication: &repl})
	require.NoError(t, err)
	assert.Greater(t, updated.ObjectID, created.ObjectID)

	require.NoError(t, c.DeleteBucket(ctx, "vol1", "b1"))
	_, err = c.GetBucket(ctx, "vol1", "b1")
	assert.True(t, errdefs.IsNotFound(err))
	assert.True(t, errdefs.IsNotFound(c.DeleteBucket(ctx, "vol1", "b1")))
}

func TestNamespaceKeyCommit(t *testing.T) {
	c, ns := serveNamespace(t)
	ctx := context.Background()

	_, err := c.CreateBucket(ctx, types.BucketInfo{Volume: "vol1", Name: "b1", Replication: types.RatisReplication(3)})
	require.NoError(t, err)

	open, err := c.OpenKey(ctx, "vol1", "b1", "key1")
	require.NoError(t, err)
	assert.Equal(t, types.RatisReplication(3), open.Replication)

	key, err := c.CommitKey(ctx, &api.CommitKeyRequest{
		Volume:    "vol1",
		Bucket:    "b1",
		Key:       "key1",
		BucketID:  &open.BucketID,
		Layout:    open.Layout,
		DataSize:  10,
		Locations: location(1),
		Metadata:  map[string]string{"owner": "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), key.DataSize)
	assert.Equal(t, int64(0), key.LatestVersion().Version)

	got, err := c.GetKey(ctx, "vol1", "b1", "key1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Metadata["owner"])

	assert.True(t, errdefs.IsInvalidArgument(c.DeleteBucket(ctx, "vol1", "b1")))

	// A replication change between open and commit reissues the bucket id
	stale, err := c.OpenKey(ctx, "vol1", "b1", "key2")
	require.NoError(t, err)
	repl := types.StandaloneReplication()
	_, err = c.UpdateBucket(ctx, &api.UpdateBucketRequest{Volume: "vol1", Bucket: "b1", Replication: &repl})
	require.NoError(t, err)

	_, err = c.CommitKey(ctx, &api.CommitKeyRequest{
		Volume:    "vol1",
		Bucket:    "b1",
		Key:       "key2",
		BucketID:  &stale.BucketID,
		Layout:    stale.Layout,
		Locations: location(2),
	})
	require.Error(t, err)
	assert.True(t, errdefs.IsBucketIDMismatch(err))
	assert.Equal(t, 1, ns.Keys().Count("vol1", "b1"))

	err = c.DeleteKey(ctx, &api.DeleteKeyRequest{Volume: "vol1", Bucket: "b1", Key: "key1", BucketID: &stale.BucketID})
	assert.True(t, errdefs.IsBucketIDMismatch(err))

	require.NoError(t, c.DeleteKey(ctx, &api.DeleteKeyRequest{Volume: "vol1", Bucket: "b1", Key: "key1"}))
	keys, err := c.ListKeys(ctx, "vol1", "b1", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
	require.NoError(t, c.DeleteBucket(ctx, "vol1", "b1"))
}

func TestNamespaceRoutesByPlannedLayout(t *testing.T) {
	c, ns := serveNamespace(t)
	ctx := context.Background()

	_, err := c.CreateBucket(ctx, types.BucketInfo{Volume: "vol1", Name: "b1", Layout: types.BucketLayoutFileSystemOptimized})
	require.NoError(t, err)
	open, err := c.OpenKey(ctx, "vol1", "b1", "dir/key")
	require.NoError(t, err)
	assert.Equal(t, types.BucketLayoutFileSystemOptimized, open.Layout)

	// The bucket is recreated with the other layout family before commit
	require.NoError(t, c.DeleteBucket(ctx, "vol1", "b1"))
	_, err = c.CreateBucket(ctx, types.BucketInfo{Volume: "vol1", Name: "b1", Layout: types.BucketLayoutObjectStore})
	require.NoError(t, err)

	_, err = c.CommitKey(ctx, &api.CommitKeyRequest{
		Volume:    "vol1",
		Bucket:    "b1",
		Key:       "dir/key",
		Layout:    open.Layout,
		Locations: location(1),
	})
	require.Error(t, err)
	assert.True(t, errdefs.IsInternal(err))
	assert.Equal(t, 0, ns.Keys().Count("vol1", "b1"))

	// Without a planned layout the current bucket decides
	_, err = c.CommitKey(ctx, &api.CommitKeyRequest{Volume: "vol1", Bucket: "b1", Key: "dir/key", Locations: location(1)})
	require.NoError(t, err)
}

func TestNamespaceFileSystemKeys(t *testing.T) {
	c, _ := serveNamespace(t)
	ctx := context.Background()

	_, err := c.CreateBucket(ctx, types.BucketInfo{Volume: "vol1", Name: "fs", Layout: types.BucketLayoutFileSystemOptimized})
	require.NoError(t, err)

	_, err = c.CommitKey(ctx, &api.CommitKeyRequest{Volume: "vol1", Bucket: "fs", Key: "/a//b/c", Locations: location(1)})
	require.NoError(t, err)

	got, err := c.GetKey(ctx, "vol1", "fs", "a/b/./c")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", got.Name)

	keys, err := c.ListKeys(ctx, "vol1", "fs", "a/")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	_, err = c.ListKeys(ctx, "vol1", "missing", "")
	assert.True(t, errdefs.IsNotFound(err))
	_, err = c.GetKey(ctx, "vol1", "fs", "a/../c")
	assert.True(t, errdefs.IsInvalidArgument(err))
}
