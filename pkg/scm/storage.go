package scm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// NodeTypeSCM marks a VERSION file written by an SCM
const NodeTypeSCM = "SCM"

// StorageInfo is the cluster identity persisted in the VERSION file
type StorageInfo struct {
	NodeType     string    `yaml:"nodeType"`
	ClusterID    string    `yaml:"clusterID"`
	SCMID        string    `yaml:"scmID"`
	CreationTime time.Time `yaml:"creationTime"`
	// Primary is true on the node that ran --init
	Primary bool `yaml:"primary"`
}

// Storage is the SCM metadata directory, <dataDir>/scm/current
type Storage struct {
	dir string
}

// NewStorage returns the storage rooted at dataDir
func NewStorage(dataDir string) *Storage {
	return &Storage{dir: filepath.Join(dataDir, "scm", "current")}
}

// Dir returns the metadata directory
func (s *Storage) Dir() string {
	return s.dir
}

// VersionPath returns the path of the VERSION file
func (s *Storage) VersionPath() string {
	return filepath.Join(s.dir, "VERSION")
}

// Load reads the VERSION file; NotFound when the node was never initialized
func (s *Storage) Load() (*StorageInfo, error) {
	data, err := os.ReadFile(s.VersionPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errdefs.NotFound("scm storage at %s is not initialized", s.dir)
		}
		return nil, fmt.Errorf("failed to read VERSION: %w", err)
	}

	var info StorageInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse VERSION: %w", err)
	}
	if info.ClusterID == "" {
		return nil, errdefs.Internal("VERSION at %s has no cluster id", s.dir)
	}
	return &info, nil
}

// Initialize records clusterID. It returns false, without error, when the
// storage already holds a different cluster id; the same id is a no-op.
func (s *Storage) Initialize(clusterID string, primary bool) (bool, error) {
	if clusterID == "" {
		return false, errdefs.InvalidArgument("cluster id is required")
	}

	existing, err := s.Load()
	switch {
	case err == nil:
		return existing.ClusterID == clusterID, nil
	case !errdefs.IsNotFound(err):
		return false, err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create scm storage: %w", err)
	}

	info := StorageInfo{
		NodeType:     NodeTypeSCM,
		ClusterID:    clusterID,
		SCMID:        uuid.New().String(),
		CreationTime: time.Now().UTC(),
		Primary:      primary,
	}
	data, err := yaml.Marshal(&info)
	if err != nil {
		return false, fmt.Errorf("failed to encode VERSION: %w", err)
	}

	tmp := s.VersionPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write VERSION: %w", err)
	}
	if err := os.Rename(tmp, s.VersionPath()); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("failed to write VERSION: %w", err)
	}
	return true, nil
}

// GenerateClusterID returns a fresh cluster id
func GenerateClusterID() string {
	return "CID-" + uuid.New().String()
}
