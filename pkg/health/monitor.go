package health

import (
	"context"
	"sync"
	"time"
)

// ChangeFunc is called after every probe of a target
type ChangeFunc func(name string, status Status)

type target struct {
	name    string
	checker Checker
	config  Config
	status  *Status
}

// Monitor runs named probes on their own interval and keeps their status
type Monitor struct {
	mu       sync.RWMutex
	targets  map[string]*target
	onChange ChangeFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor; onChange may be nil
func NewMonitor(onChange ChangeFunc) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		targets:  make(map[string]*target),
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add starts probing checker under name. The first probe runs immediately.
func (m *Monitor) Add(name string, checker Checker, config Config) {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	t := &target{name: name, checker: checker, config: config, status: NewStatus()}

	m.mu.Lock()
	m.targets[name] = t
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(t)
}

// Status returns a copy of the status of name
func (m *Monitor) Status(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[name]
	if !ok {
		return Status{}, false
	}
	return *t.status, true
}

// Stop cancels every probe and waits for them to return
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) loop(t *target) {
	defer m.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	m.probe(t)
	for {
		select {
		case <-ticker.C:
			m.probe(t)
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Monitor) probe(t *target) {
	ctx, cancel := context.WithTimeout(m.ctx, t.config.Timeout)
	defer cancel()

	result := t.checker.Check(ctx)
	if m.ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	t.status.Update(result, t.config)
	status := *t.status
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(t.name, status)
	}
}
