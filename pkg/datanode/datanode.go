package datanode

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/chunk"
	"github.com/cuemby/burrow/pkg/container"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/volume"
	"github.com/rs/zerolog"
)

// Config holds datanode configuration
type Config struct {
	NodeID string
	// Address is advertised to the SCM and to clients
	Address string
	SCMAddr string
	DataDir string

	HeartbeatInterval time.Duration
	CapacityBytes     int64
	ContainerMaxSize  int64
	CloseThreshold    float64
	// InMemory keeps block tables in memory; chunk data still goes to disk
	InMemory bool
	// SyncChunks fsyncs every chunk write
	SyncChunks bool

	Events *events.Broker
}

// Datanode holds the container replicas of one storage node
type Datanode struct {
	cfg Config

	containers *container.Set
	blocks     *container.BlockManager
	chunks     *chunk.Manager

	// createMu serializes container creation and reload
	createMu sync.Mutex
	volMu    sync.RWMutex
	volume   *volume.Volume

	logger zerolog.Logger
}

// New creates a datanode. It serves no data until Open attaches the volume
// of a cluster.
func New(cfg Config) *Datanode {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &Datanode{
		cfg:        cfg,
		containers: container.NewSet(),
		blocks:     container.NewBlockManager(cfg.CloseThreshold),
		chunks:     chunk.NewManager(cfg.SyncChunks),
		logger:     log.WithNodeID(cfg.NodeID).With().Str("component", "datanode").Logger(),
	}
}

// NodeID returns the datanode id
func (d *Datanode) NodeID() string {
	return d.cfg.NodeID
}

// Open attaches the volume of clusterID and reloads the containers found on
// it. Opening the same cluster again is a no-op.
func (d *Datanode) Open(clusterID string) error {
	d.createMu.Lock()
	defer d.createMu.Unlock()

	d.volMu.Lock()
	if d.volume != nil {
		current := d.volume.ClusterID()
		d.volMu.Unlock()
		if current != clusterID {
			return errdefs.InvalidConfiguration("datanode belongs to cluster %s, not %s", current, clusterID)
		}
		return nil
	}

	vol, err := volume.NewVolume(d.cfg.DataDir, clusterID)
	if err != nil {
		d.volMu.Unlock()
		return err
	}
	d.volume = vol
	d.volMu.Unlock()

	if d.cfg.InMemory {
		return nil
	}
	return d.reload()
}

func (d *Datanode) reload() error {
	ids, err := d.volume.List()
	if err != nil {
		return err
	}

	for _, id := range ids {
		desc, err := d.volume.ReadDescriptor(id)
		if err != nil {
			d.logger.Warn().Err(err).Int64("container_id", id).Msg("Skipping container without a usable descriptor")
			continue
		}

		store, err := storage.OpenBoltBlockStore(d.volume.DBPath(id))
		if err != nil {
			return fmt.Errorf("failed to open container %d: %w", id, err)
		}
		c, err := container.New(d.containerConfig(desc), store)
		if err != nil {
			store.Close()
			return err
		}
		if err := d.containers.Add(c); err != nil {
			store.Close()
			return err
		}
	}

	d.logger.Info().Int("containers", d.containers.Len()).Str("volume", d.volume.BasePath()).Msg("Containers loaded")
	return nil
}

func (d *Datanode) containerConfig(desc *volume.Descriptor) container.Config {
	return container.Config{
		ID:            desc.ContainerID,
		PipelineID:    desc.PipelineID,
		MaxSizeBytes:  desc.MaxSizeBytes,
		Owner:         desc.Owner,
		Replication:   desc.Replication,
		State:         desc.State,
		Events:        d.cfg.Events,
		OnStateChange: d.persistState,
	}
}

func (d *Datanode) getVolume() (*volume.Volume, error) {
	d.volMu.RLock()
	defer d.volMu.RUnlock()
	if d.volume == nil {
		return nil, errdefs.Internal("datanode %s has not joined a cluster", d.cfg.NodeID)
	}
	return d.volume, nil
}

// lookup finds a replica. Before Open every lookup fails with Internal.
func (d *Datanode) lookup(containerID int64) (*container.Container, error) {
	if _, err := d.getVolume(); err != nil {
		return nil, err
	}
	return d.containers.Get(containerID)
}

// persistState keeps the descriptor state in step with the replica
func (d *Datanode) persistState(info types.ContainerInfo) {
	vol, err := d.getVolume()
	if err != nil {
		return
	}
	desc, err := vol.ReadDescriptor(info.ContainerID)
	if err != nil {
		d.logger.Error().Err(err).Int64("container_id", info.ContainerID).Msg("Failed to read container descriptor")
		return
	}
	desc.State = info.State
	if err := vol.WriteDescriptor(desc); err != nil {
		d.logger.Error().Err(err).Int64("container_id", info.ContainerID).Msg("Failed to persist container state")
	}
}

// CreateContainerRequest describes a new container replica
type CreateContainerRequest struct {
	ContainerID  int64
	PipelineID   string
	Replication  types.ReplicationConfig
	MaxSizeBytes int64
	Owner        string
}

// CreateContainer creates an OPEN container replica
func (d *Datanode) CreateContainer(req CreateContainerRequest) (types.ContainerInfo, error) {
	vol, err := d.getVolume()
	if err != nil {
		return types.ContainerInfo{}, err
	}

	d.createMu.Lock()
	defer d.createMu.Unlock()

	if _, err := d.containers.Get(req.ContainerID); err == nil {
		return types.ContainerInfo{}, errdefs.InvalidArgument("container %d already exists", req.ContainerID)
	}
	if req.MaxSizeBytes <= 0 {
		req.MaxSizeBytes = d.cfg.ContainerMaxSize
	}

	if err := vol.Create(req.ContainerID); err != nil {
		return types.ContainerInfo{}, err
	}

	desc := &volume.Descriptor{
		ContainerID:  req.ContainerID,
		PipelineID:   req.PipelineID,
		State:        types.ContainerStateOpen,
		MaxSizeBytes: req.MaxSizeBytes,
		Owner:        req.Owner,
		Replication:  req.Replication,
		CreatedAt:    time.Now().UTC(),
	}

	c, err := d.openContainer(vol, desc)
	if err != nil {
		vol.Delete(req.ContainerID)
		return types.ContainerInfo{}, err
	}

	d.logger.Info().Int64("container_id", req.ContainerID).Str("pipeline_id", req.PipelineID).Msg("Container created")
	d.cfg.Events.Publish(events.NewEvent(events.EventContainerCreated,
		fmt.Sprintf("container %d created on %s", req.ContainerID, d.cfg.NodeID),
		map[string]string{"container_id": fmt.Sprint(req.ContainerID), "node_id": d.cfg.NodeID}))
	return c.Info(), nil
}

func (d *Datanode) openContainer(vol *volume.Volume, desc *volume.Descriptor) (*container.Container, error) {
	var store storage.BlockStore
	if d.cfg.InMemory {
		store = storage.NewMemBlockStore()
	} else {
		s, err := storage.OpenBoltBlockStore(vol.DBPath(desc.ContainerID))
		if err != nil {
			return nil, err
		}
		store = s
	}

	c, err := container.New(d.containerConfig(desc), store)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := vol.WriteDescriptor(desc); err != nil {
		store.Close()
		return nil, err
	}
	if err := d.containers.Add(c); err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

// CloseContainer closes a replica at the agreed sequence id
func (d *Datanode) CloseContainer(containerID, bcsid int64) (types.ContainerInfo, error) {
	c, err := d.lookup(containerID)
	if err != nil {
		return types.ContainerInfo{}, err
	}
	if err := c.Close(bcsid); err != nil {
		return c.Info(), err
	}
	return c.Info(), nil
}

// QuasiCloseContainer moves a replica to QUASI_CLOSED
func (d *Datanode) QuasiCloseContainer(containerID int64, reason string) (types.ContainerInfo, error) {
	c, err := d.lookup(containerID)
	if err != nil {
		return types.ContainerInfo{}, err
	}
	if err := c.QuasiClose(reason); err != nil {
		return c.Info(), err
	}
	return c.Info(), nil
}

func (d *Datanode) GetContainer(containerID int64) (types.ContainerInfo, error) {
	c, err := d.lookup(containerID)
	if err != nil {
		return types.ContainerInfo{}, err
	}
	return c.Info(), nil
}

// Report returns every replica's physical state, ordered by id
func (d *Datanode) Report() []types.ContainerInfo {
	return d.containers.Report()
}

// PutBlock commits block metadata into its container
func (d *Datanode) PutBlock(block *types.BlockData) (*types.BlockData, error) {
	if block == nil {
		return nil, errdefs.InvalidArgument("block is required")
	}
	c, err := d.lookup(block.BlockID.ContainerID)
	if err != nil {
		return nil, err
	}
	return d.blocks.PutBlock(c, block)
}

func (d *Datanode) GetBlock(id types.BlockID) (*types.BlockData, error) {
	c, err := d.lookup(id.ContainerID)
	if err != nil {
		return nil, err
	}
	return d.blocks.GetBlock(c, id)
}

func (d *Datanode) ListBlock(containerID, startLocalID int64, count int) ([]*types.BlockData, error) {
	c, err := d.lookup(containerID)
	if err != nil {
		return nil, err
	}
	return d.blocks.ListBlock(c, startLocalID, count)
}

// WriteChunk stores chunk bytes; only OPEN containers take writes
func (d *Datanode) WriteChunk(id types.BlockID, info types.ChunkInfo, data []byte) error {
	c, err := d.lookup(id.ContainerID)
	if err != nil {
		return err
	}
	if state := c.State(); state != types.ContainerStateOpen {
		return errdefs.ContainerNotOpen("container %d is %s", id.ContainerID, state)
	}
	vol, err := d.getVolume()
	if err != nil {
		return err
	}
	return d.chunks.WriteChunk(vol.ChunksPath(id.ContainerID), id, info, data)
}

func (d *Datanode) ReadChunk(id types.BlockID, info types.ChunkInfo) ([]byte, error) {
	c, err := d.lookup(id.ContainerID)
	if err != nil {
		return nil, err
	}
	if c.State() == types.ContainerStateInvalid {
		return nil, errdefs.ContainerNotOpen("container %d is %s", id.ContainerID, types.ContainerStateInvalid)
	}
	vol, err := d.getVolume()
	if err != nil {
		return nil, err
	}
	return d.chunks.ReadChunk(vol.ChunksPath(id.ContainerID), id, info)
}

// Close releases every container's block table
func (d *Datanode) Close() error {
	var firstErr error
	for _, c := range d.containers.List() {
		if err := c.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
