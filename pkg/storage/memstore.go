package storage

import (
	"math"
	"sync"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// MemBlockStore is an in-memory BlockStore ordered by local id. Blocks are
// cloned on the way in and out.
type MemBlockStore struct {
	mu       sync.RWMutex
	blocks   *treemap.Map
	counters Counters
}

// NewMemBlockStore creates an empty in-memory block table
func NewMemBlockStore() *MemBlockStore {
	return &MemBlockStore{
		blocks: treemap.NewWith(utils.Int64Comparator),
	}
}

func (s *MemBlockStore) PutBlock(block *types.BlockData, counters Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks.Put(block.BlockID.LocalID, block.Clone())
	s.counters = counters
	return nil
}

func (s *MemBlockStore) GetBlock(localID int64) (*types.BlockData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, found := s.blocks.Get(localID)
	if !found {
		return nil, errdefs.NotFound("block not found: locID: %d", localID)
	}
	return v.(*types.BlockData).Clone(), nil
}

func (s *MemBlockStore) ListBlocks(startLocalID int64, count int) ([]*types.BlockData, error) {
	if count <= 0 {
		return nil, errdefs.InvalidArgument("count must be > 0, got %d", count)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := make([]*types.BlockData, 0, min(count, listPrealloc))
	after := startLocalID
	for len(blocks) < count && after < math.MaxInt64 {
		k, v := s.blocks.Ceiling(after + 1)
		if k == nil {
			break
		}
		blocks = append(blocks, v.(*types.BlockData).Clone())
		after = k.(int64)
	}
	return blocks, nil
}

func (s *MemBlockStore) Counters() (Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters, nil
}

// Len returns the number of stored blocks
func (s *MemBlockStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks.Size()
}

func (s *MemBlockStore) Close() error {
	return nil
}
