package volume

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
)

func TestNewVolume(t *testing.T) {
	tmpDir := t.TempDir()

	v, err := NewVolume(tmpDir, "CID-1")
	if err != nil {
		t.Fatalf("NewVolume() error = %v", err)
	}

	current := filepath.Join(tmpDir, "CID-1", "current")
	if _, err := os.Stat(current); os.IsNotExist(err) {
		t.Error("current directory was not created")
	}
	if v.ClusterID() != "CID-1" {
		t.Errorf("ClusterID() = %v, want CID-1", v.ClusterID())
	}
}

func TestNewVolume_NoClusterID(t *testing.T) {
	if _, err := NewVolume(t.TempDir(), ""); !errdefs.IsInvalidArgument(err) {
		t.Errorf("NewVolume() error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestVolume_Paths(t *testing.T) {
	v, _ := NewVolume("/data", "CID-1")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"first group", v.Path(1), "/data/CID-1/current/containerDir0/1"},
		{"second group", v.Path(512), "/data/CID-1/current/containerDir1/512"},
		{"metadata", v.MetadataPath(7), "/data/CID-1/current/containerDir0/7/metadata"},
		{"chunks", v.ChunksPath(7), "/data/CID-1/current/containerDir0/7/chunks"},
		{"db", v.DBPath(7), "/data/CID-1/current/containerDir0/7/metadata/7-dn-container.db"},
		{"descriptor", v.DescriptorPath(7), "/data/CID-1/current/containerDir0/7/metadata/7.container"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestVolume_Create(t *testing.T) {
	v, _ := NewVolume(t.TempDir(), "CID-1")

	if err := v.Create(3); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, dir := range []string{v.MetadataPath(3), v.ChunksPath(3)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s was not created", dir)
		}
	}

	if err := v.Create(3); !errdefs.IsInvalidArgument(err) {
		t.Errorf("second Create() error = %v, want INVALID_ARGUMENT", err)
	}
	if err := v.Create(0); !errdefs.IsInvalidArgument(err) {
		t.Errorf("Create(0) error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestVolume_Delete(t *testing.T) {
	v, _ := NewVolume(t.TempDir(), "CID-1")
	if err := v.Create(3); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Create a file in the container
	testFile := filepath.Join(v.ChunksPath(3), "1.block")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := v.Delete(3); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(v.Path(3)); !os.IsNotExist(err) {
		t.Error("container directory still exists after Delete()")
	}

	// Deleting a missing container is not an error
	if err := v.Delete(3); err != nil {
		t.Errorf("Delete() of missing container error = %v", err)
	}
}

func TestVolume_Descriptor(t *testing.T) {
	v, _ := NewVolume(t.TempDir(), "CID-1")
	if err := v.Create(9); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	want := &Descriptor{
		ContainerID:  9,
		PipelineID:   "p-1",
		State:        types.ContainerStateOpen,
		MaxSizeBytes: 1 << 20,
		Owner:        "om",
		Replication:  types.RatisReplication(3),
		CreatedAt:    time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	if err := v.WriteDescriptor(want); err != nil {
		t.Fatalf("WriteDescriptor() error = %v", err)
	}

	got, err := v.ReadDescriptor(9)
	if err != nil {
		t.Fatalf("ReadDescriptor() error = %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	got.CreatedAt = want.CreatedAt
	if *got != *want {
		t.Errorf("ReadDescriptor() = %+v, want %+v", got, want)
	}

	if _, err := v.ReadDescriptor(10); !errdefs.IsNotFound(err) {
		t.Errorf("ReadDescriptor() of missing container error = %v, want NOT_FOUND", err)
	}
}

func TestVolume_List(t *testing.T) {
	v, _ := NewVolume(t.TempDir(), "CID-1")
	for _, id := range []int64{700, 2, 513} {
		if err := v.Create(id); err != nil {
			t.Fatalf("Create(%d) error = %v", id, err)
		}
	}

	ids, err := v.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []int64{2, 513, 700}
	if len(ids) != len(want) {
		t.Fatalf("List() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("List()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}
