package main

import (
	"net"
	"testing"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/om"
	"github.com/cuemby/burrow/pkg/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startNamespace(t *testing.T) (string, *om.Namespace) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ns := om.NewNamespace(nil)
	srv := api.NewServer()
	srv.RegisterNamespace(om.NewRPCHandler(ns))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String(), ns
}

func decodeBucket(t *testing.T, out string) types.BucketInfo {
	t.Helper()
	var b types.BucketInfo
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &b))
	return b
}

func TestBucketCommands(t *testing.T) {
	addr, ns := startNamespace(t)
	m := &mockStarter{}

	code, out, errOut := run(t, m, "bucket", "create", "--om", addr, "/vol1/data",
		"--layout", "file_system_optimized", "--replication", "RATIS/3", "--quota", "10GB")
	require.Equal(t, 0, code, errOut)
	created := decodeBucket(t, out)
	assert.Equal(t, types.BucketLayoutFileSystemOptimized, created.Layout)
	assert.Equal(t, types.RatisReplication(3), created.Replication)
	assert.Equal(t, int64(10<<30), created.QuotaBytes)

	code, _, errOut = run(t, m, "bucket", "create", "--om", addr, "vol1/logs")
	require.Equal(t, 0, code, errOut)

	code, out, errOut = run(t, m, "bucket", "info", "--om", addr, "vol1/data")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, created.ObjectID, decodeBucket(t, out).ObjectID)

	code, out, errOut = run(t, m, "bucket", "list", "--om", addr, "vol1")
	require.Equal(t, 0, code, errOut)
	var list []types.BucketInfo
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "data", list[0].Name)
	assert.Equal(t, "logs", list[1].Name)

	code, out, errOut = run(t, m, "bucket", "set-quota", "--om", addr, "vol1/data", "--quota", "1GB")
	require.Equal(t, 0, code, errOut)
	updated := decodeBucket(t, out)
	assert.Equal(t, int64(1<<30), updated.QuotaBytes)
	assert.Equal(t, created.ObjectID, updated.ObjectID)

	code, out, errOut = run(t, m, "bucket", "update", "--om", addr, "vol1/data", "--replication", "standalone")
	require.Equal(t, 0, code, errOut)
	updated = decodeBucket(t, out)
	assert.Equal(t, types.StandaloneReplication(), updated.Replication)
	assert.Greater(t, updated.ObjectID, created.ObjectID)

	code, out, errOut = run(t, m, "bucket", "delete", "--om", addr, "vol1/logs")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Bucket /vol1/logs deleted")
	assert.Len(t, ns.Buckets().List("vol1"), 1)

	code, _, errOut = run(t, m, "bucket", "info", "--om", addr, "vol1/logs")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bucket not found")

	assert.False(t, m.anyCalled())
}

func TestBucketDeleteNotEmpty(t *testing.T) {
	addr, ns := startNamespace(t)
	_, err := ns.Buckets().Create(types.BucketInfo{Volume: "vol1", Name: "b1"})
	require.NoError(t, err)
	_, err = ns.CommitKey(&om.Request{Volume: "vol1", Bucket: "b1", Key: "k"}, "", om.CommitArgs{DataSize: 1})
	require.NoError(t, err)

	code, _, errOut := run(t, &mockStarter{}, "bucket", "delete", "--om", addr, "vol1/b1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bucket is not empty")
}

func TestBucketArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"path without bucket", []string{"bucket", "info", "vol1"}, "Invalid bucket path: 'vol1'"},
		{"path too deep", []string{"bucket", "create", "vol1/b/c"}, "Invalid bucket path: 'vol1/b/c'"},
		{"bad replication", []string{"bucket", "create", "vol1/b", "--replication", "EC/6"}, "unknown replication type"},
		{"bad factor", []string{"bucket", "update", "vol1/b", "--replication", "RATIS/x"}, "invalid replication factor"},
		{"bad quota", []string{"bucket", "set-quota", "vol1/b", "--quota", "lots"}, "invalid quota"},
		{"empty update", []string{"bucket", "update", "vol1/b"}, "Nothing to update"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockStarter{}
			code, _, errOut := run(t, m, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, tt.want)
			assert.Contains(t, errOut, "Usage:")
		})
	}
}

func TestParseReplication(t *testing.T) {
	tests := []struct {
		in   string
		want types.ReplicationConfig
	}{
		{"STANDALONE", types.StandaloneReplication()},
		{"standalone/one", types.StandaloneReplication()},
		{"RATIS", types.RatisReplication(3)},
		{"ratis/1", types.RatisReplication(1)},
	}
	for _, tt := range tests {
		got, err := parseReplication(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseReplication("STANDALONE/3")
	assert.Error(t, err)
	_, err = parseReplication("RATIS/0")
	assert.Error(t, err)
}

func TestOMRejectsArguments(t *testing.T) {
	code, _, errOut := run(t, &mockStarter{}, "om", "--invalid")
	assert.Equal(t, 1, code)
	assert.Regexp(t, unknownOptionPattern, errOut)
}
