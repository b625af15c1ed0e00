package scm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStarter records calls instead of touching disk or the network
type mockStarter struct {
	initStatus      bool
	bootstrapStatus bool
	startErr        error
	initErr         error
	bootstrapErr    error

	startCalled     bool
	initCalled      bool
	bootstrapCalled bool
	generateCalled  bool
	clusterID       string
}

func newMockStarter() *mockStarter {
	return &mockStarter{initStatus: true, bootstrapStatus: true}
}

func (m *mockStarter) Start(context.Context, *config.Config) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.startCalled = true
	return nil
}

func (m *mockStarter) Init(_ *config.Config, clusterID string) (bool, error) {
	if m.initErr != nil {
		return false, m.initErr
	}
	m.initCalled = true
	m.clusterID = clusterID
	return m.initStatus, nil
}

func (m *mockStarter) Bootstrap(context.Context, *config.Config) (bool, error) {
	if m.bootstrapErr != nil {
		return false, m.bootstrapErr
	}
	m.bootstrapCalled = true
	return m.bootstrapStatus, nil
}

func (m *mockStarter) GenerateClusterID() string {
	m.generateCalled = true
	return "CID-generated"
}

func run(t *testing.T, starter *mockStarter, cmd Command) (*Controller, string, error) {
	t.Helper()
	var out bytes.Buffer
	c := NewController(starter, config.Default(), &out)
	err := c.Run(context.Background(), cmd)
	return c, out.String(), err
}

func TestControllerStart(t *testing.T) {
	m := newMockStarter()
	c, _, err := run(t, m, Command{Action: ActionStart})
	require.NoError(t, err)
	assert.True(t, m.startCalled)
	assert.Equal(t, types.BootstrapStarted, c.State())
}

func TestControllerStartErrorPropagates(t *testing.T) {
	m := newMockStarter()
	m.startErr = errors.New("simulated error on start")

	c, _, err := run(t, m, Command{Action: ActionStart})
	assert.Same(t, m.startErr, err)
	assert.Equal(t, types.BootstrapFailed, c.State())
}

func TestControllerInit(t *testing.T) {
	tests := []struct {
		name      string
		status    bool
		initErr   error
		wantState types.BootstrapState
		wantErr   error
	}{
		{name: "success", status: true, wantState: types.BootstrapInitialized},
		{name: "different cluster id", status: false, wantState: types.BootstrapFailed, wantErr: ErrInitFailed},
		{name: "io failure", initErr: errors.New("simulated error on init"), wantState: types.BootstrapFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockStarter()
			m.initStatus = tt.status
			m.initErr = tt.initErr

			c, _, err := run(t, m, Command{Action: ActionInit, ClusterID: "abcdefg"})
			switch {
			case tt.initErr != nil:
				assert.Same(t, tt.initErr, err)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, "abcdefg", m.clusterID)
			}
			assert.Equal(t, tt.wantState, c.State())
			assert.False(t, m.startCalled)
		})
	}
}

func TestControllerBootstrap(t *testing.T) {
	m := newMockStarter()
	c, _, err := run(t, m, Command{Action: ActionBootstrap})
	require.NoError(t, err)
	assert.True(t, m.bootstrapCalled)
	assert.Equal(t, types.BootstrapBootstrapped, c.State())

	m = newMockStarter()
	m.bootstrapStatus = false
	c, _, err = run(t, m, Command{Action: ActionBootstrap})
	assert.ErrorIs(t, err, ErrBootstrapFailed)
	assert.Equal(t, types.BootstrapFailed, c.State())

	m = newMockStarter()
	m.bootstrapErr = errors.New("primary unreachable")
	c, _, err = run(t, m, Command{Action: ActionBootstrap})
	assert.Same(t, m.bootstrapErr, err)
	assert.Equal(t, types.BootstrapFailed, c.State())
}

func TestControllerGenerateClusterID(t *testing.T) {
	m := newMockStarter()
	c, out, err := run(t, m, Command{Action: ActionGenerateClusterID})
	require.NoError(t, err)
	assert.True(t, m.generateCalled)
	assert.Equal(t, "CID-generated", strings.TrimSpace(out))
	assert.Equal(t, types.BootstrapUnstarted, c.State())
	assert.False(t, m.startCalled || m.initCalled || m.bootstrapCalled)
}

func TestControllerRejectsInvalidCommands(t *testing.T) {
	tests := []Command{
		{Action: "rollback"},
		{Action: ActionBootstrap, ClusterID: "abcdefg"},
		{Action: ActionStart, ClusterID: "abcdefg"},
		{Action: ActionGenerateClusterID, ClusterID: "abcdefg"},
	}

	for _, cmd := range tests {
		t.Run(string(cmd.Action), func(t *testing.T) {
			m := newMockStarter()
			c, _, err := run(t, m, cmd)
			assert.True(t, errdefs.IsInvalidArgument(err))
			assert.Equal(t, types.BootstrapUnstarted, c.State())
			assert.False(t, m.startCalled || m.initCalled || m.bootstrapCalled || m.generateCalled)
		})
	}
}

func TestControllerRunsOnce(t *testing.T) {
	m := newMockStarter()
	c := NewController(m, config.Default(), &bytes.Buffer{})

	require.NoError(t, c.Run(context.Background(), Command{Action: ActionInit}))
	m.initCalled = false

	err := c.Run(context.Background(), Command{Action: ActionInit})
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.False(t, m.initCalled)
	assert.Equal(t, types.BootstrapInitialized, c.State())
}
