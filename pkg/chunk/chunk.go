// Package chunk stores chunk bytes on a datanode volume. Each block owns one
// file under its container's chunks directory; a chunk is a byte range of
// that file.
package chunk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Manager reads and writes chunk data
type Manager struct {
	// sync forces an fsync after every write
	sync   bool
	logger zerolog.Logger
}

// NewManager creates a chunk manager
func NewManager(sync bool) *Manager {
	return &Manager{
		sync:   sync,
		logger: log.WithComponent("chunk"),
	}
}

// BlockPath returns the file holding a block's chunks
func BlockPath(dir string, id types.BlockID) string {
	return filepath.Join(dir, fmt.Sprintf("%d.block", id.LocalID))
}

func validate(id types.BlockID, info types.ChunkInfo) error {
	if info.Name == "" {
		return errdefs.InvalidArgument("chunk of block %s has no name", id)
	}
	if info.Offset < 0 || info.Length < 0 {
		return errdefs.InvalidArgument("chunk %s has a negative range (offset %d, length %d)",
			info.Name, info.Offset, info.Length)
	}
	return nil
}

// WriteChunk writes data at the chunk's offset in the block file
func (m *Manager) WriteChunk(dir string, id types.BlockID, info types.ChunkInfo, data []byte) error {
	if err := validate(id, info); err != nil {
		return err
	}
	if int64(len(data)) != info.Length {
		return errdefs.InvalidArgument("chunk %s declares %d bytes, got %d", info.Name, info.Length, len(data))
	}

	path := BlockPath(dir, id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open block file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, info.Offset); err != nil {
		m.logger.Error().Err(err).
			Str("block", id.String()).
			Str("chunk", info.Name).
			Msg("Failed to write chunk")
		return fmt.Errorf("failed to write chunk %s: %w", info.Name, err)
	}
	if m.sync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("failed to sync block file: %w", err)
		}
	}

	metrics.ChunkBytesTotal.WithLabelValues("write").Add(float64(len(data)))
	m.logger.Debug().
		Str("block", id.String()).
		Str("chunk", info.Name).
		Int64("offset", info.Offset).
		Int64("length", info.Length).
		Msg("Chunk written")
	return nil
}

// ReadChunk reads the chunk's byte range back
func (m *Manager) ReadChunk(dir string, id types.BlockID, info types.ChunkInfo) ([]byte, error) {
	if err := validate(id, info); err != nil {
		return nil, err
	}

	f, err := os.Open(BlockPath(dir, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errdefs.NotFound("block %s has no data", id)
		}
		return nil, fmt.Errorf("failed to open block file: %w", err)
	}
	defer f.Close()

	data := make([]byte, info.Length)
	n, err := f.ReadAt(data, info.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read chunk %s: %w", info.Name, err)
	}
	if int64(n) != info.Length {
		return nil, errdefs.NotFound("chunk %s of block %s is incomplete: want %d bytes, have %d",
			info.Name, id, info.Length, n)
	}

	metrics.ChunkBytesTotal.WithLabelValues("read").Add(float64(n))
	return data, nil
}

// DeleteBlock removes a block's data file; a missing file is not an error
func (m *Manager) DeleteBlock(dir string, id types.BlockID) error {
	if err := os.Remove(BlockPath(dir, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete block file: %w", err)
	}
	return nil
}
