package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/pipeline"
	"github.com/cuemby/burrow/pkg/types"
	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Bucket names
	bucketNodes      = []byte("nodes")
	bucketPipelines  = []byte("pipelines")
	bucketContainers = []byte("containers")
)

// BoltStateStore implements StateStore using BoltDB
type BoltStateStore struct {
	db *bolt.DB
}

// NewBoltStateStore creates a new BoltDB-backed state store
func NewBoltStateStore(dataDir string) (*BoltStateStore, error) {
	dbPath := filepath.Join(dataDir, "scm.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketNodes, bucketPipelines, bucketContainers} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStateStore{db: db}, nil
}

// Close closes the database
func (s *BoltStateStore) Close() error {
	return s.db.Close()
}

func (s *BoltStateStore) put(bucket, key []byte, v interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put(key, data)
	})
}

func (s *BoltStateStore) get(bucket, key []byte, v interface{}, what string) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get(key)
		if data == nil {
			return errdefs.NotFound("%s not found: %s", what, key)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *BoltStateStore) delete(bucket, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// Node operations
func (s *BoltStateStore) CreateNode(node *types.Node) error {
	return s.put(bucketNodes, []byte(node.ID), node)
}

func (s *BoltStateStore) GetNode(id string) (*types.Node, error) {
	var node types.Node
	if err := s.get(bucketNodes, []byte(id), &node, "node"); err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *BoltStateStore) ListNodes() ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStateStore) UpdateNode(node *types.Node) error {
	return s.CreateNode(node) // Same as create (upsert)
}

func (s *BoltStateStore) DeleteNode(id string) error {
	return s.delete(bucketNodes, []byte(id))
}

// Pipeline operations
func (s *BoltStateStore) CreatePipeline(p *pipeline.Pipeline) error {
	return s.put(bucketPipelines, []byte(p.ID()), p)
}

func (s *BoltStateStore) GetPipeline(id pipeline.ID) (*pipeline.Pipeline, error) {
	var p pipeline.Pipeline
	if err := s.get(bucketPipelines, []byte(id), &p, "pipeline"); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStateStore) ListPipelines() ([]*pipeline.Pipeline, error) {
	var pipelines []*pipeline.Pipeline
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPipelines).ForEach(func(k, v []byte) error {
			var p pipeline.Pipeline
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			pipelines = append(pipelines, &p)
			return nil
		})
	})
	return pipelines, err
}

func (s *BoltStateStore) UpdatePipeline(p *pipeline.Pipeline) error {
	return s.CreatePipeline(p)
}

func (s *BoltStateStore) DeletePipeline(id pipeline.ID) error {
	return s.delete(bucketPipelines, []byte(id))
}

// Container operations
func (s *BoltStateStore) CreateContainer(info *types.ContainerInfo) error {
	return s.put(bucketContainers, containerKey(info.ContainerID), info)
}

func (s *BoltStateStore) GetContainer(id int64) (*types.ContainerInfo, error) {
	var info types.ContainerInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketContainers).Get(containerKey(id))
		if data == nil {
			return errdefs.NotFound("container not found: %d", id)
		}
		return json.Unmarshal(data, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListContainers returns containers in ascending id order
func (s *BoltStateStore) ListContainers() ([]*types.ContainerInfo, error) {
	var containers []*types.ContainerInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContainers).ForEach(func(k, v []byte) error {
			var info types.ContainerInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			containers = append(containers, &info)
			return nil
		})
	})
	return containers, err
}

func (s *BoltStateStore) ListContainersByPipeline(pipelineID pipeline.ID) ([]*types.ContainerInfo, error) {
	containers, err := s.ListContainers()
	if err != nil {
		return nil, err
	}

	var filtered []*types.ContainerInfo
	for _, c := range containers {
		if c.PipelineID == string(pipelineID) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *BoltStateStore) UpdateContainer(info *types.ContainerInfo) error {
	return s.CreateContainer(info)
}

func (s *BoltStateStore) DeleteContainer(id int64) error {
	return s.delete(bucketContainers, containerKey(id))
}

// containerKey keeps container ids (non-negative) in numeric order
func containerKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
