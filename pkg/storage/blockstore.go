package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/wire"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlockData = []byte("block_data")
	bucketMetadata  = []byte("metadata")

	keyBlockCount = []byte("#BLOCKCOUNT")
	keyBCSID      = []byte("#BCSID")
	keyBytesUsed  = []byte("#BYTESUSED")
)

// BoltBlockStore implements BlockStore with one BoltDB file per container
type BoltBlockStore struct {
	db   *bolt.DB
	path string
}

// OpenBoltBlockStore opens (creating if needed) the block table at path
func OpenBoltBlockStore(path string) (*BoltBlockStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open block table %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketBlockData, bucketMetadata} {
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

	return &BoltBlockStore{db: db, path: path}, nil
}

// OpenBoltBlockStoreReadOnly opens an existing block table without taking
// the write lock, for offline inspection
func OpenBoltBlockStoreReadOnly(path string) (*BoltBlockStore, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.NotFound("block table not found: %s", path)
		}
		return nil, err
	}

	db, err := bolt.Open(path, 0400, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open block table %s: %w", path, err)
	}

	return &BoltBlockStore{db: db, path: path}, nil
}

// Path returns the database file path
func (s *BoltBlockStore) Path() string {
	return s.path
}

// Close closes the database
func (s *BoltBlockStore) Close() error {
	return s.db.Close()
}

func (s *BoltBlockStore) PutBlock(block *types.BlockData, counters Counters) error {
	data := wire.MarshalBlockData(block)

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlockData).Put(blockKey(block.BlockID.LocalID), data); err != nil {
			return fmt.Errorf("failed to put block %s: %w", block.BlockID, err)
		}

		meta := tx.Bucket(bucketMetadata)
		for _, kv := range []struct {
			key   []byte
			value int64
		}{
			{keyBlockCount, counters.BlockCount},
			{keyBCSID, counters.BlockCommitSequenceID},
			{keyBytesUsed, counters.BytesUsed},
		} {
			if err := meta.Put(kv.key, encodeInt64(kv.value)); err != nil {
				return fmt.Errorf("failed to put %s: %w", kv.key, err)
			}
		}
		return nil
	})
}

func (s *BoltBlockStore) GetBlock(localID int64) (*types.BlockData, error) {
	var block *types.BlockData
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBlockData).Get(blockKey(localID))
		if data == nil {
			return errdefs.NotFound("block not found: locID: %d", localID)
		}

		var err error
		block, err = wire.UnmarshalBlockData(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (s *BoltBlockStore) ListBlocks(startLocalID int64, count int) ([]*types.BlockData, error) {
	if count <= 0 {
		return nil, errdefs.InvalidArgument("count must be > 0, got %d", count)
	}

	blocks := make([]*types.BlockData, 0, min(count, listPrealloc))
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBlockData).Cursor()

		start := blockKey(startLocalID)
		k, v := c.Seek(start)
		if k != nil && bytes.Equal(k, start) {
			k, v = c.Next()
		}

		for ; k != nil && len(blocks) < count; k, v = c.Next() {
			block, err := wire.UnmarshalBlockData(v)
			if err != nil {
				return err
			}
			blocks = append(blocks, block)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (s *BoltBlockStore) Counters() (Counters, error) {
	var counters Counters
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)
		if meta == nil {
			return nil
		}
		counters.BlockCount = decodeInt64(meta.Get(keyBlockCount))
		counters.BlockCommitSequenceID = decodeInt64(meta.Get(keyBCSID))
		counters.BytesUsed = decodeInt64(meta.Get(keyBytesUsed))
		return nil
	})
	return counters, err
}

// blockKey flips the sign bit so negative local ids sort before positive
// ones under bytewise comparison
func blockKey(localID int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(localID)^(1<<63))
	return key
}

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func decodeInt64(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
