// Package pipeline models replica sets: an ordered, immutable group of
// storage nodes plus the replication config the group serves.
package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ID uniquely identifies a pipeline
type ID string

// NewID returns a random pipeline id
func NewID() ID {
	return ID(uuid.New().String())
}

// transitions lists the allowed state changes; CLOSED is terminal
var transitions = map[types.PipelineState][]types.PipelineState{
	types.PipelineStateAllocated: {types.PipelineStateOpen, types.PipelineStateClosed},
	types.PipelineStateOpen:      {types.PipelineStateDormant, types.PipelineStateClosed},
	types.PipelineStateDormant:   {types.PipelineStateOpen, types.PipelineStateClosed},
}

// IsValidState reports whether s is a known pipeline state
func IsValidState(s types.PipelineState) bool {
	switch s {
	case types.PipelineStateAllocated, types.PipelineStateOpen,
		types.PipelineStateDormant, types.PipelineStateClosed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is allowed
func CanTransition(from, to types.PipelineState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Pipeline is a replica set. Membership never changes after New; moving
// containers to other nodes means allocating a new pipeline.
type Pipeline struct {
	mu          sync.RWMutex
	id          ID
	nodes       []string
	replication types.ReplicationConfig
	state       types.PipelineState
	containers  map[int64]struct{}
	createdAt   time.Time
}

// New validates membership against the replication config and returns an
// ALLOCATED pipeline
func New(id ID, nodes []string, replication types.ReplicationConfig) (*Pipeline, error) {
	if id == "" {
		return nil, errdefs.InvalidConfiguration("pipeline id is required")
	}
	if err := validateReplication(replication); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, errdefs.InvalidConfiguration("pipeline %s has no members", id)
	}
	if len(nodes) != replication.RequiredNodes() {
		return nil, errdefs.InvalidConfiguration(
			"pipeline %s has %d members, replication %s requires %d",
			id, len(nodes), replication, replication.RequiredNodes())
	}

	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n == "" {
			return nil, errdefs.InvalidConfiguration("pipeline %s has an empty member id", id)
		}
		if _, dup := seen[n]; dup {
			return nil, errdefs.InvalidConfiguration("pipeline %s lists node %s twice", id, n)
		}
		seen[n] = struct{}{}
	}

	return &Pipeline{
		id:          id,
		nodes:       append([]string(nil), nodes...),
		replication: replication,
		state:       types.PipelineStateAllocated,
		containers:  make(map[int64]struct{}),
		createdAt:   time.Now(),
	}, nil
}

func validateReplication(r types.ReplicationConfig) error {
	switch r.Type {
	case types.ReplicationStandalone:
		return nil
	case types.ReplicationRatis:
		if r.Factor < 1 {
			return errdefs.InvalidConfiguration("replication factor must be positive, got %d", r.Factor)
		}
		return nil
	}
	return errdefs.InvalidConfiguration("unknown replication type %q", r.Type)
}

func (p *Pipeline) ID() ID {
	return p.id
}

// Nodes returns a copy of the ordered member list
func (p *Pipeline) Nodes() []string {
	return append([]string(nil), p.nodes...)
}

// Leader returns the first member, which takes writes first
func (p *Pipeline) Leader() string {
	return p.nodes[0]
}

// IsMember reports whether nodeID belongs to the pipeline
func (p *Pipeline) IsMember(nodeID string) bool {
	for _, n := range p.nodes {
		if n == nodeID {
			return true
		}
	}
	return false
}

func (p *Pipeline) Replication() types.ReplicationConfig {
	return p.replication
}

func (p *Pipeline) CreatedAt() time.Time {
	return p.createdAt
}

func (p *Pipeline) State() types.PipelineState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Open moves an ALLOCATED or DORMANT pipeline to OPEN
func (p *Pipeline) Open() error {
	return p.transition(types.PipelineStateOpen)
}

// MarkDormant moves an OPEN pipeline with no containers to DORMANT
func (p *Pipeline) MarkDormant() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.containers) > 0 {
		return errdefs.InvalidArgument("pipeline %s still has %d containers", p.id, len(p.containers))
	}
	return p.transitionLocked(types.PipelineStateDormant)
}

// Close retires the pipeline
func (p *Pipeline) Close() error {
	return p.transition(types.PipelineStateClosed)
}

func (p *Pipeline) transition(to types.PipelineState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transitionLocked(to)
}

func (p *Pipeline) transitionLocked(to types.PipelineState) error {
	if !CanTransition(p.state, to) {
		return errdefs.InvalidArgument("pipeline %s cannot move from %s to %s", p.id, p.state, to)
	}
	p.state = to
	return nil
}

// AddContainer assigns a container; a DORMANT pipeline reopens
func (p *Pipeline) AddContainer(containerID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case types.PipelineStateOpen:
	case types.PipelineStateDormant:
		p.state = types.PipelineStateOpen
	default:
		return errdefs.InvalidArgument("pipeline %s is %s, cannot take containers", p.id, p.state)
	}
	p.containers[containerID] = struct{}{}
	return nil
}

// RemoveContainer unassigns a container; an OPEN pipeline left without
// containers goes DORMANT
func (p *Pipeline) RemoveContainer(containerID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.containers, containerID)
	if len(p.containers) == 0 && p.state == types.PipelineStateOpen {
		p.state = types.PipelineStateDormant
	}
}

// Containers returns the assigned container ids in ascending order
func (p *Pipeline) Containers() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]int64, 0, len(p.containers))
	for id := range p.containers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Pipeline) ContainerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.containers)
}

type pipelineJSON struct {
	ID          ID                      `json:"id"`
	Nodes       []string                `json:"nodes"`
	Replication types.ReplicationConfig `json:"replication"`
	State       types.PipelineState     `json:"state"`
	Containers  []int64                 `json:"containers,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
}

func (p *Pipeline) MarshalJSON() ([]byte, error) {
	return json.Marshal(pipelineJSON{
		ID:          p.id,
		Nodes:       p.nodes,
		Replication: p.replication,
		State:       p.State(),
		Containers:  p.Containers(),
		CreatedAt:   p.createdAt,
	})
}

// UnmarshalJSON re-validates membership, so a stored pipeline can never be
// loaded into an inconsistent shape
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var raw pipelineJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fresh, err := New(raw.ID, raw.Nodes, raw.Replication)
	if err != nil {
		return err
	}
	if !IsValidState(raw.State) {
		return errdefs.InvalidConfiguration("pipeline %s has unknown state %q", raw.ID, raw.State)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.id = fresh.id
	p.nodes = fresh.nodes
	p.replication = fresh.replication
	p.state = raw.State
	p.createdAt = raw.CreatedAt
	p.containers = make(map[int64]struct{}, len(raw.Containers))
	for _, c := range raw.Containers {
		p.containers[c] = struct{}{}
	}
	return nil
}
