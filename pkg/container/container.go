package container

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Config describes a container replica being created or reopened
type Config struct {
	ID           int64
	PipelineID   string
	MaxSizeBytes int64
	Owner        string
	Replication  types.ReplicationConfig

	// State restores a container reopened from disk; empty means OPEN
	State types.ContainerState

	// Events receives lifecycle notifications; may be nil
	Events *events.Broker

	// OnStateChange runs after every lifecycle transition, outside the
	// container lock
	OnStateChange func(info types.ContainerInfo)
}

// Container is one replica of a storage container on a datanode. All state
// and every block write is serialized by the container's own lock; different
// containers never share a lock.
type Container struct {
	mu sync.RWMutex

	id          int64
	pipelineID  string
	maxSize     int64
	owner       string
	replication types.ReplicationConfig

	state     types.ContainerState
	counters  storage.Counters
	updatedAt time.Time

	store         storage.BlockStore
	events        *events.Broker
	onStateChange func(types.ContainerInfo)
	logger        zerolog.Logger
}

// New opens a container over its block table. Counters are loaded from the
// table so a reopened container continues where it stopped.
func New(cfg Config, store storage.BlockStore) (*Container, error) {
	if cfg.ID <= 0 {
		return nil, errdefs.InvalidArgument("container id must be positive, got %d", cfg.ID)
	}
	if cfg.MaxSizeBytes <= 0 {
		return nil, errdefs.InvalidArgument("container %d: max size must be positive", cfg.ID)
	}

	state := cfg.State
	if state == "" {
		state = types.ContainerStateOpen
	}
	if !IsValidState(state) {
		return nil, errdefs.InvalidArgument("container %d: unknown state %q", cfg.ID, state)
	}

	counters, err := store.Counters()
	if err != nil {
		return nil, fmt.Errorf("failed to load counters of container %d: %w", cfg.ID, err)
	}

	return &Container{
		id:            cfg.ID,
		pipelineID:    cfg.PipelineID,
		maxSize:       cfg.MaxSizeBytes,
		owner:         cfg.Owner,
		replication:   cfg.Replication,
		state:         state,
		counters:      counters,
		updatedAt:     time.Now(),
		store:         store,
		events:        cfg.Events,
		onStateChange: cfg.OnStateChange,
		logger:        log.WithContainerID(cfg.ID),
	}, nil
}

// ID returns the container id
func (c *Container) ID() int64 {
	return c.id
}

// PipelineID returns the pipeline the container was allocated on
func (c *Container) PipelineID() string {
	return c.pipelineID
}

// State returns the local lifecycle state
func (c *Container) State() types.ContainerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Info returns the physical state of the container
func (c *Container) Info() types.ContainerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.infoLocked()
}

func (c *Container) infoLocked() types.ContainerInfo {
	return types.ContainerInfo{
		ContainerID:           c.id,
		PipelineID:            c.pipelineID,
		State:                 c.state,
		BlockCount:            c.counters.BlockCount,
		BlockCommitSequenceID: c.counters.BlockCommitSequenceID,
		MaxSizeBytes:          c.maxSize,
		UsedBytes:             c.counters.BytesUsed,
		Owner:                 c.owner,
		Replication:           c.replication,
		UpdatedAt:             c.updatedAt,
	}
}

// IsFull reports whether bytes used reached threshold * max size
func (c *Container) IsFull(threshold float64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isFullLocked(threshold)
}

func (c *Container) isFullLocked(threshold float64) bool {
	return float64(c.counters.BytesUsed) >= threshold*float64(c.maxSize)
}

// MarkClosing stops accepting block commits. Closing a container that is
// already CLOSING is a no-op.
func (c *Container) MarkClosing() error {
	c.mu.Lock()
	if c.state == types.ContainerStateClosing {
		c.mu.Unlock()
		return nil
	}
	err := c.transitionLocked(types.ContainerStateClosing, "close requested")
	info := c.infoLocked()
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.notify(info)
	return nil
}

// Close moves the container to CLOSED. The local commit sequence id must
// equal targetBCSID, the value the pipeline agreed on; an OPEN container is
// moved to CLOSING first. Closing a CLOSED container with the same target is
// a no-op.
func (c *Container) Close(targetBCSID int64) error {
	c.mu.Lock()
	changed, err := c.closeLocked(targetBCSID)
	info := c.infoLocked()
	c.mu.Unlock()

	if changed {
		c.notify(info)
	}
	return err
}

func (c *Container) closeLocked(targetBCSID int64) (bool, error) {
	local := c.counters.BlockCommitSequenceID

	if c.state == types.ContainerStateClosed {
		if local == targetBCSID {
			return false, nil
		}
		return false, errdefs.InvalidArgument("container %d is closed at commit sequence id %d, not %d",
			c.id, local, targetBCSID)
	}

	changed := false
	if c.state == types.ContainerStateOpen {
		if err := c.transitionLocked(types.ContainerStateClosing, "close requested"); err != nil {
			return false, err
		}
		changed = true
	}

	if c.state != types.ContainerStateClosing && c.state != types.ContainerStateQuasiClosed {
		return changed, validateTransition(c.state, types.ContainerStateClosed)
	}

	if local != targetBCSID {
		return changed, errdefs.InvalidArgument("container %d commit sequence id %d does not match close target %d",
			c.id, local, targetBCSID)
	}

	if err := c.transitionLocked(types.ContainerStateClosed, "replicas converged"); err != nil {
		return changed, err
	}
	return true, nil
}

// QuasiClose closes a container whose replicas could not be shown to agree
// on a commit sequence id. A QUASI_CLOSED container is closed later with
// Close once the agreed value is known.
func (c *Container) QuasiClose(reason string) error {
	c.mu.Lock()
	var err error
	changed := false
	if c.state == types.ContainerStateOpen {
		err = c.transitionLocked(types.ContainerStateClosing, reason)
		changed = err == nil
	}
	if err == nil && c.state != types.ContainerStateQuasiClosed {
		err = c.transitionLocked(types.ContainerStateQuasiClosed, reason)
		changed = changed || err == nil
	}
	info := c.infoLocked()
	c.mu.Unlock()

	if changed {
		c.notify(info)
	}
	return err
}

// MarkUnhealthy records an unrecoverable local failure
func (c *Container) MarkUnhealthy(reason string) error {
	return c.transition(types.ContainerStateUnhealthy, reason)
}

// MarkInvalid records detected corruption; reads are refused afterwards
func (c *Container) MarkInvalid(reason string) error {
	return c.transition(types.ContainerStateInvalid, reason)
}

// Release closes the container's block table
func (c *Container) Release() error {
	return c.store.Close()
}

func (c *Container) transition(to types.ContainerState, reason string) error {
	c.mu.Lock()
	err := c.transitionLocked(to, reason)
	info := c.infoLocked()
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.notify(info)
	return nil
}

func (c *Container) transitionLocked(to types.ContainerState, reason string) error {
	from := c.state
	if err := validateTransition(from, to); err != nil {
		return err
	}

	c.state = to
	c.updatedAt = time.Now()

	event := c.logger.Info()
	if to == types.ContainerStateUnhealthy || to == types.ContainerStateInvalid {
		event = c.logger.Error()
	}
	event.
		Str("from", string(from)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("Container state changed")
	return nil
}

func (c *Container) notify(info types.ContainerInfo) {
	var eventType events.EventType
	switch info.State {
	case types.ContainerStateClosing:
		eventType = events.EventContainerClosing
	case types.ContainerStateClosed, types.ContainerStateQuasiClosed:
		eventType = events.EventContainerClosed
	default:
		eventType = events.EventContainerUnhealthy
	}

	c.events.Publish(events.NewEvent(eventType,
		fmt.Sprintf("container %d is %s", info.ContainerID, info.State),
		map[string]string{
			"container_id": strconv.FormatInt(info.ContainerID, 10),
			"state":        string(info.State),
		}))

	if c.onStateChange != nil {
		c.onStateChange(info)
	}
}
