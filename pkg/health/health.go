package health

import (
	"context"
	"time"
)

// CheckType names the kind of probe
type CheckType string

const (
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeDisk CheckType = "disk"
)

// Result is the outcome of one probe
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is a single probe
type Checker interface {
	Check(ctx context.Context) Result
	Type() CheckType
}

// Config controls how often a probe runs and how many failures it takes to
// call the target unhealthy
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	// Retries is the number of consecutive failures before the target is
	// unhealthy
	Retries int
	// StartPeriod ignores failures for a while after monitoring starts
	StartPeriod time.Duration
}

// DefaultConfig returns the probe settings used by datanodes
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
		Retries:  3,
	}
}

// Status is the running health of one probed target
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result
	Healthy              bool
	StartedAt            time.Time
}

// NewStatus starts out healthy
func NewStatus() *Status {
	return &Status{
		Healthy:   true,
		StartedAt: time.Now(),
	}
}

// Update folds a result into the status. One success restores health;
// Retries consecutive failures outside the start period remove it.
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.InStartPeriod(config) {
		return
	}
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}

// InStartPeriod reports whether failures are still being ignored
func (s *Status) InStartPeriod(config Config) bool {
	if config.StartPeriod == 0 {
		return false
	}
	return time.Since(s.StartedAt) < config.StartPeriod
}
