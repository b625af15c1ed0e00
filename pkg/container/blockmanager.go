package container

import (
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// BlockManager commits block metadata into containers, enforcing the
// commit sequence rules:
//
//   - a block with BlockCommitSequenceID == 0 is an uncommitted write: it is
//     stored as-is and the container's sequence id does not move
//   - a committed write must carry a sequence id strictly greater than the
//     container's; replays and out-of-order commits are InvalidArgument
//   - the block count grows only the first time a local id is stored
type BlockManager struct {
	closeThreshold float64
	logger         zerolog.Logger
}

// NewBlockManager creates a block manager. A container whose bytes used
// reach closeThreshold of its max size moves to CLOSING after the write that
// crossed it; a threshold <= 0 disables this.
func NewBlockManager(closeThreshold float64) *BlockManager {
	return &BlockManager{
		closeThreshold: closeThreshold,
		logger:         log.WithComponent("blockmanager"),
	}
}

// PutBlock stores block in c and returns the block as committed
func (m *BlockManager) PutBlock(c *Container, block *types.BlockData) (*types.BlockData, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BlockPutDuration)

	if err := validateBlock(c, block); err != nil {
		metrics.BlockPutsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	c.mu.Lock()
	committed, changed, err := m.putLocked(c, block)
	info := c.infoLocked()
	c.mu.Unlock()

	if changed {
		c.notify(info)
	}
	return committed, err
}

// putLocked also reports whether the container changed state
func (m *BlockManager) putLocked(c *Container, block *types.BlockData) (*types.BlockData, bool, error) {
	if c.state != types.ContainerStateOpen {
		metrics.BlockPutsTotal.WithLabelValues("not_open").Inc()
		return nil, false, errdefs.ContainerNotOpen("container %d is %s", c.id, c.state)
	}

	bcsID := block.BlockCommitSequenceID
	current := c.counters.BlockCommitSequenceID
	if bcsID > 0 && bcsID <= current {
		metrics.BlockPutsTotal.WithLabelValues("rejected").Inc()
		metrics.SequenceRejectionsTotal.Inc()
		m.logger.Debug().
			Int64("container_id", c.id).
			Str("block", block.BlockID.String()).
			Int64("bcs_id", bcsID).
			Int64("container_bcs_id", current).
			Msg("Rejected stale commit sequence id")
		return nil, false, errdefs.InvalidArgument(
			"commit sequence id %d of block %s is not greater than container commit sequence id %d",
			bcsID, block.BlockID, current)
	}

	next := c.counters
	var oldSize int64
	existing, err := c.store.GetBlock(block.BlockID.LocalID)
	switch {
	case err == nil:
		oldSize = existing.Size()
	case errdefs.IsNotFound(err):
		next.BlockCount++
	default:
		return nil, true, m.failLocked(c, block, err)
	}

	next.BytesUsed += block.Size() - oldSize
	if bcsID > 0 {
		next.BlockCommitSequenceID = bcsID
	}

	stored := block.Clone()
	if err := c.store.PutBlock(stored, next); err != nil {
		return nil, true, m.failLocked(c, block, err)
	}

	c.counters = next
	c.updatedAt = time.Now()
	metrics.BlockPutsTotal.WithLabelValues("ok").Inc()

	closing := false
	if m.closeThreshold > 0 && c.isFullLocked(m.closeThreshold) {
		if err := c.transitionLocked(types.ContainerStateClosing, "container full"); err == nil {
			closing = true
		}
	}
	return stored, closing, nil
}

// failLocked marks the container UNHEALTHY after a block table I/O error
func (m *BlockManager) failLocked(c *Container, block *types.BlockData, err error) error {
	metrics.BlockPutsTotal.WithLabelValues("error").Inc()
	m.logger.Error().
		Err(err).
		Int64("container_id", c.id).
		Str("block", block.BlockID.String()).
		Msg("Block table I/O failure")

	_ = c.transitionLocked(types.ContainerStateUnhealthy, err.Error())
	return errdefs.Wrap(errdefs.KindInternal, err, "failed to store block %s", block.BlockID)
}

// GetBlock returns the stored block, including its committed sequence id
func (m *BlockManager) GetBlock(c *Container, id types.BlockID) (*types.BlockData, error) {
	if id.ContainerID != c.id {
		return nil, errdefs.InvalidArgument("block %s does not belong to container %d", id, c.id)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state == types.ContainerStateInvalid {
		return nil, errdefs.ContainerNotOpen("container %d is %s", c.id, c.state)
	}
	return c.store.GetBlock(id.LocalID)
}

// ListBlock returns at most count blocks of c with a local id greater than
// startLocalID, in ascending local id order
func (m *BlockManager) ListBlock(c *Container, startLocalID int64, count int) ([]*types.BlockData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state == types.ContainerStateInvalid {
		return nil, errdefs.ContainerNotOpen("container %d is %s", c.id, c.state)
	}
	return c.store.ListBlocks(startLocalID, count)
}

func validateBlock(c *Container, block *types.BlockData) error {
	if block == nil {
		return errdefs.InvalidArgument("block is required")
	}
	if block.BlockID.ContainerID != c.id {
		return errdefs.InvalidArgument("block %s does not belong to container %d", block.BlockID, c.id)
	}
	if block.BlockCommitSequenceID < 0 {
		return errdefs.InvalidArgument("negative commit sequence id %d", block.BlockCommitSequenceID)
	}
	for i, chunk := range block.Chunks {
		if chunk.Name == "" {
			return errdefs.InvalidArgument("block %s: chunk %d has no name", block.BlockID, i)
		}
		if chunk.Offset < 0 || chunk.Length < 0 {
			return errdefs.InvalidArgument("block %s: chunk %s has a negative range", block.BlockID, chunk.Name)
		}
	}
	return nil
}
