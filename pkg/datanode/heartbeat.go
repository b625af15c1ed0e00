package datanode

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/client"
	"github.com/cuemby/burrow/pkg/types"
)

// Heartbeater keeps a datanode registered with the SCM: it reports replica
// state on every tick and applies the commands returned in the response
type Heartbeater struct {
	dn       *Datanode
	scm      *client.SCMClient
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHeartbeater creates a heartbeater for dn reporting to scm
func NewHeartbeater(dn *Datanode, scm *client.SCMClient) *Heartbeater {
	return &Heartbeater{
		dn:       dn,
		scm:      scm,
		interval: dn.cfg.HeartbeatInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Register announces the datanode to the SCM and returns the cluster id
func (h *Heartbeater) Register(ctx context.Context) (string, error) {
	hostname, _ := os.Hostname()
	resp, err := h.scm.RegisterDatanode(ctx, &types.Node{
		ID:            h.dn.cfg.NodeID,
		Address:       h.dn.cfg.Address,
		Hostname:      hostname,
		CapacityBytes: h.dn.cfg.CapacityBytes,
	})
	if err != nil {
		return "", fmt.Errorf("failed to register with SCM: %w", err)
	}
	if resp.ClusterID == "" {
		return "", fmt.Errorf("SCM returned no cluster id")
	}

	h.dn.logger.Info().Str("cluster_id", resp.ClusterID).Str("scm", h.dn.cfg.SCMAddr).Msg("Registered with SCM")
	return resp.ClusterID, nil
}

// Start runs the heartbeat loop until Stop
func (h *Heartbeater) Start() {
	go h.loop()
}

// Stop ends the loop and waits for an in-flight heartbeat
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.doneCh
}

func (h *Heartbeater) loop() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.Beat(context.Background()); err != nil {
				h.dn.logger.Warn().Err(err).Msg("Heartbeat failed")
			}
		case <-h.stopCh:
			return
		}
	}
}

// Beat sends one heartbeat and applies the returned commands
func (h *Heartbeater) Beat(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	commands, err := h.scm.Heartbeat(ctx, h.dn.cfg.NodeID, h.dn.containers.UsedBytes(), h.dn.Report())
	if err != nil {
		return err
	}

	for _, cmd := range commands {
		if err := h.dn.ApplyCommand(cmd); err != nil {
			h.dn.logger.Error().Err(err).
				Str("command", string(cmd.Type)).
				Int64("container_id", cmd.ContainerID).
				Msg("Failed to apply SCM command")
		}
	}
	return nil
}

// ApplyCommand executes one instruction from the SCM. Commands are
// idempotent: a repeated create or close of the same replica succeeds.
func (d *Datanode) ApplyCommand(cmd types.DatanodeCommand) error {
	switch cmd.Type {
	case types.CommandCreateContainer:
		if _, err := d.lookup(cmd.ContainerID); err == nil {
			return nil
		}
		_, err := d.CreateContainer(CreateContainerRequest{
			ContainerID:  cmd.ContainerID,
			PipelineID:   cmd.PipelineID,
			Replication:  cmd.Replication,
			MaxSizeBytes: cmd.MaxSizeBytes,
			Owner:        cmd.Owner,
		})
		return err

	case types.CommandCloseContainer:
		_, err := d.CloseContainer(cmd.ContainerID, cmd.BlockCommitSequenceID)
		return err

	case types.CommandQuasiCloseContainer:
		_, err := d.QuasiCloseContainer(cmd.ContainerID, cmd.Reason)
		return err
	}
	return fmt.Errorf("unknown command type %q", cmd.Type)
}
