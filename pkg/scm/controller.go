package scm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Action is the one operator action a process runs at startup
type Action string

const (
	ActionStart             Action = "start"
	ActionInit              Action = "init"
	ActionBootstrap         Action = "bootstrap"
	ActionGenerateClusterID Action = "genclusterid"
)

// Command is a parsed startup request. ClusterID is only meaningful for
// ActionInit; empty means generate one.
type Command struct {
	Action    Action
	ClusterID string
}

// Validate rejects commands the controller must never act on
func (c Command) Validate() error {
	switch c.Action {
	case ActionStart, ActionBootstrap, ActionGenerateClusterID:
		if c.ClusterID != "" {
			return errdefs.InvalidArgument("--clusterid is only valid with --init")
		}
	case ActionInit:
	default:
		return errdefs.InvalidArgument("unknown action %q", c.Action)
	}
	return nil
}

var (
	// ErrInitFailed is returned when the node is already initialized with a
	// different cluster id
	ErrInitFailed = errors.New("scm initialization failed")
	// ErrBootstrapFailed is returned when the node could not adopt the
	// primary's cluster id
	ErrBootstrapFailed = errors.New("scm bootstrap failed")
)

// Starter performs the actions the controller dispatches
type Starter interface {
	// Start runs the SCM service until ctx is cancelled or it fails
	Start(ctx context.Context, cfg *config.Config) error
	// Init writes the cluster identity; false means it already holds a
	// different one
	Init(cfg *config.Config, clusterID string) (bool, error)
	// Bootstrap joins an existing cluster; false mirrors Init
	Bootstrap(ctx context.Context, cfg *config.Config) (bool, error)
	GenerateClusterID() string
}

var allStates = []types.BootstrapState{
	types.BootstrapUnstarted,
	types.BootstrapInitializing,
	types.BootstrapInitialized,
	types.BootstrapBootstrapping,
	types.BootstrapBootstrapped,
	types.BootstrapStarted,
	types.BootstrapFailed,
}

// Controller runs exactly one Command per process
type Controller struct {
	starter Starter
	cfg     *config.Config
	out     io.Writer

	mu    sync.Mutex
	state types.BootstrapState
	ran   bool

	logger zerolog.Logger
}

// NewController creates a controller in the UNSTARTED state. Generated
// cluster ids are printed to out.
func NewController(starter Starter, cfg *config.Config, out io.Writer) *Controller {
	c := &Controller{
		starter: starter,
		cfg:     cfg,
		out:     out,
		logger:  log.WithComponent("scm-controller"),
	}
	c.setState(types.BootstrapUnstarted)
	return c
}

// State returns the current bootstrap state
func (c *Controller) State() types.BootstrapState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run validates cmd and dispatches it. Invalid commands and second runs are
// rejected without touching the state or the starter.
func (c *Controller) Run(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return errdefs.InvalidArgument("controller already ran an action")
	}
	c.ran = true
	c.mu.Unlock()

	c.logger.Info().Str("action", string(cmd.Action)).Msg("Running SCM action")

	switch cmd.Action {
	case ActionGenerateClusterID:
		id := c.starter.GenerateClusterID()
		fmt.Fprintln(c.out, id)
		return nil
	case ActionInit:
		return c.runStep(types.BootstrapInitializing, types.BootstrapInitialized, ErrInitFailed, func() (bool, error) {
			return c.starter.Init(c.cfg, cmd.ClusterID)
		})
	case ActionBootstrap:
		return c.runStep(types.BootstrapBootstrapping, types.BootstrapBootstrapped, ErrBootstrapFailed, func() (bool, error) {
			return c.starter.Bootstrap(ctx, c.cfg)
		})
	default:
		c.setState(types.BootstrapStarted)
		if err := c.starter.Start(ctx, c.cfg); err != nil {
			c.setState(types.BootstrapFailed)
			return err
		}
		return nil
	}
}

// runStep moves through during to done, or to FAILED
func (c *Controller) runStep(during, done types.BootstrapState, failed error, step func() (bool, error)) error {
	c.setState(during)

	ok, err := step()
	if err != nil {
		c.setState(types.BootstrapFailed)
		return err
	}
	if !ok {
		c.setState(types.BootstrapFailed)
		return failed
	}

	c.setState(done)
	return nil
}

func (c *Controller) setState(state types.BootstrapState) {
	c.mu.Lock()
	from := c.state
	c.state = state
	c.mu.Unlock()

	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		metrics.BootstrapState.WithLabelValues(string(s)).Set(v)
	}

	if from != "" {
		c.logger.Debug().Str("from", string(from)).Str("to", string(state)).Msg("Bootstrap state changed")
	}
}
