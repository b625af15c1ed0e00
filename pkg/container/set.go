package container

import (
	"sort"
	"sync"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
)

// Set indexes the containers of a datanode by id. The set lock only guards
// the index; operations on a container take that container's own lock.
type Set struct {
	mu         sync.RWMutex
	containers map[int64]*Container
}

// NewSet creates an empty container set
func NewSet() *Set {
	return &Set{containers: make(map[int64]*Container)}
}

// Add registers a container; ids are unique
func (s *Set) Add(c *Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.containers[c.ID()]; exists {
		return errdefs.InvalidArgument("container %d already exists", c.ID())
	}
	s.containers[c.ID()] = c
	return nil
}

// Get returns the container with the given id
func (s *Set) Get(id int64) (*Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.containers[id]
	if !ok {
		return nil, errdefs.NotFound("container not found: %d", id)
	}
	return c, nil
}

// Remove drops a container from the set and returns it
func (s *Set) Remove(id int64) (*Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[id]
	if !ok {
		return nil, errdefs.NotFound("container not found: %d", id)
	}
	delete(s.containers, id)
	return c, nil
}

// List returns all containers ordered by id
func (s *Set) List() []*Container {
	s.mu.RLock()
	list := make([]*Container, 0, len(s.containers))
	for _, c := range s.containers {
		list = append(list, c)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	return list
}

// Len returns the number of containers
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.containers)
}

// Report returns the physical state of every container, ordered by id
func (s *Set) Report() []types.ContainerInfo {
	list := s.List()
	report := make([]types.ContainerInfo, 0, len(list))
	for _, c := range list {
		report = append(report, c.Info())
	}
	return report
}

// UsedBytes sums bytes used over all containers
func (s *Set) UsedBytes() int64 {
	var used int64
	for _, c := range s.List() {
		used += c.Info().UsedBytes
	}
	return used
}
