package volume

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBasePath is the default volume root on a datanode
	DefaultBasePath = "/var/lib/burrow/hdds"

	// containerDirShift groups containers into containerDir<id >> shift>
	containerDirShift = 9

	currentDir    = "current"
	metadataDir   = "metadata"
	chunksDir     = "chunks"
	dirPrefix     = "containerDir"
	descriptorExt = ".container"
	dbSuffix      = "-dn-container.db"
)

// Descriptor is the on-disk description of a container, kept next to its
// block table so a datanode can reload containers after a restart
type Descriptor struct {
	ContainerID  int64                   `yaml:"containerID"`
	PipelineID   string                  `yaml:"pipelineID"`
	State        types.ContainerState    `yaml:"state"`
	MaxSizeBytes int64                   `yaml:"maxSizeBytes"`
	Owner        string                  `yaml:"owner,omitempty"`
	Replication  types.ReplicationConfig `yaml:"replication"`
	CreatedAt    time.Time               `yaml:"createdAt"`
}

// Volume lays out container directories under one data root:
//
//	<base>/<clusterID>/current/containerDir<N>/<containerID>/metadata
//	<base>/<clusterID>/current/containerDir<N>/<containerID>/chunks
type Volume struct {
	basePath  string
	clusterID string
}

// NewVolume prepares the volume root for a cluster
func NewVolume(basePath, clusterID string) (*Volume, error) {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if clusterID == "" {
		return nil, errdefs.InvalidArgument("volume needs a cluster id")
	}

	v := &Volume{basePath: basePath, clusterID: clusterID}
	if err := os.MkdirAll(v.currentPath(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create volume directory: %w", err)
	}
	return v, nil
}

func (v *Volume) BasePath() string {
	return v.basePath
}

func (v *Volume) ClusterID() string {
	return v.clusterID
}

func (v *Volume) currentPath() string {
	return filepath.Join(v.basePath, v.clusterID, currentDir)
}

// Path returns the directory of a container
func (v *Volume) Path(containerID int64) string {
	dir := fmt.Sprintf("%s%d", dirPrefix, containerID>>containerDirShift)
	return filepath.Join(v.currentPath(), dir, strconv.FormatInt(containerID, 10))
}

func (v *Volume) MetadataPath(containerID int64) string {
	return filepath.Join(v.Path(containerID), metadataDir)
}

func (v *Volume) ChunksPath(containerID int64) string {
	return filepath.Join(v.Path(containerID), chunksDir)
}

// DBPath returns the block table file of a container
func (v *Volume) DBPath(containerID int64) string {
	return filepath.Join(v.MetadataPath(containerID), strconv.FormatInt(containerID, 10)+dbSuffix)
}

func (v *Volume) DescriptorPath(containerID int64) string {
	return filepath.Join(v.MetadataPath(containerID), strconv.FormatInt(containerID, 10)+descriptorExt)
}

// Create makes the metadata and chunks directories of a new container
func (v *Volume) Create(containerID int64) error {
	if containerID <= 0 {
		return errdefs.InvalidArgument("container id must be positive, got %d", containerID)
	}
	if _, err := os.Stat(v.Path(containerID)); err == nil {
		return errdefs.InvalidArgument("container %d already exists on volume %s", containerID, v.basePath)
	}

	for _, dir := range []string{v.MetadataPath(containerID), v.ChunksPath(containerID)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create container directory: %w", err)
		}
	}
	return nil
}

// Delete removes a container directory and everything in it
func (v *Volume) Delete(containerID int64) error {
	path := v.Path(containerID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Already deleted
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete container directory: %w", err)
	}
	return nil
}

// WriteDescriptor stores d in the container's metadata directory
func (v *Volume) WriteDescriptor(d *Descriptor) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode container descriptor: %w", err)
	}

	path := v.DescriptorPath(d.ContainerID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write container descriptor: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write container descriptor: %w", err)
	}
	return nil
}

// ReadDescriptor loads a container's descriptor
func (v *Volume) ReadDescriptor(containerID int64) (*Descriptor, error) {
	data, err := os.ReadFile(v.DescriptorPath(containerID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errdefs.NotFound("container %d has no descriptor", containerID)
		}
		return nil, fmt.Errorf("failed to read container descriptor: %w", err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse container descriptor: %w", err)
	}
	if d.ContainerID != containerID {
		return nil, errdefs.Internal("descriptor of container %d names container %d", containerID, d.ContainerID)
	}
	return &d, nil
}

// List returns the ids of every container directory on the volume
func (v *Volume) List() ([]int64, error) {
	groups, err := os.ReadDir(v.currentPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read volume: %w", err)
	}

	var ids []int64
	for _, g := range groups {
		if !g.IsDir() || !strings.HasPrefix(g.Name(), dirPrefix) {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(v.currentPath(), g.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", g.Name(), err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			id, err := strconv.ParseInt(e.Name(), 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
