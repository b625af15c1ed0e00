package scm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/client"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/reconciler"
	"github.com/rs/zerolog"
)

// Service is a running SCM: raft-backed manager, reconciler, metrics
// collector, grpc API and health endpoints
type Service struct {
	cfg     *config.Config
	info    *StorageInfo
	events  *events.Broker
	manager *Manager
	server  *api.Server
	health  *api.HealthServer
	logger  zerolog.Logger
}

// NewService prepares an SCM for the cluster identity in info
func NewService(cfg *config.Config, info *StorageInfo) (*Service, error) {
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = info.SCMID
	}

	broker := events.NewBroker()
	manager, err := NewManager(&Config{
		NodeID:                nodeID,
		RaftAddr:              cfg.SCM.RaftAddr,
		DataDir:               filepath.Join(cfg.DataDir, "scm"),
		ContainerSize:         int64(cfg.SCM.ContainerSize.Bytes()),
		ContainersPerPipeline: cfg.SCM.ContainersPerPipeline,
		PipelineLimit:         cfg.SCM.PipelineLimit,
		Events:                broker,
	})
	if err != nil {
		return nil, err
	}

	server := api.NewServer(api.LeaderOnlyInterceptor(manager.IsLeader, manager.LeaderAddr))
	server.RegisterSCM(&handler{manager: manager, info: info})

	s := &Service{
		cfg:     cfg,
		info:    info,
		events:  broker,
		manager: manager,
		server:  server,
		logger:  log.WithComponent("scm").With().Str("cluster_id", info.ClusterID).Logger(),
	}
	s.health = api.NewHealthServer(
		api.ReadinessCheck{Name: "raft", Check: s.raftReady},
		api.ComponentsCheck(),
	)
	return s, nil
}

// Manager returns the SCM state manager
func (s *Service) Manager() *Manager {
	return s.manager
}

func (s *Service) raftReady() (string, error) {
	if s.manager.IsLeader() {
		return "leader", nil
	}
	if leader := s.manager.LeaderAddr(); leader != "" {
		return "follower of " + leader, nil
	}
	return "", errors.New("no leader elected")
}

// Run starts every component and blocks until ctx is cancelled or the grpc
// server fails
func (s *Service) Run(ctx context.Context) error {
	metrics.SetVersion(api.Version)
	metrics.SetCriticalComponents("api", "raft")
	metrics.RegisterComponent("raft", false, "starting")

	s.events.Start()
	defer s.events.Stop()

	if s.info.Primary {
		if err := s.manager.Bootstrap(); err != nil {
			return err
		}
	} else if err := s.manager.Join(); err != nil {
		return err
	}
	defer func() {
		if err := s.manager.Shutdown(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to shut down manager")
		}
	}()
	metrics.UpdateComponent("raft", true, "running")

	lis, err := net.Listen("tcp", s.cfg.SCM.BindAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(lis) }()
	defer s.server.Stop()
	metrics.RegisterComponent("api", true, lis.Addr().String())

	if !s.info.Primary {
		if err := s.joinPrimary(ctx); err != nil {
			return err
		}
	}

	rec := reconciler.NewReconciler(s.manager, reconciler.Config{
		Interval:          s.cfg.SCM.ReconcileInterval,
		StaleNodeInterval: s.cfg.SCM.StaleNodeInterval,
		DeadNodeInterval:  s.cfg.SCM.DeadNodeInterval,
		Events:            s.events,
	})
	rec.Start()
	defer rec.Stop()

	collector := metrics.NewCollector(s.manager, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	if s.cfg.SCM.MetricsAddr != "" {
		go func() {
			if err := s.health.Start(s.cfg.SCM.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Msg("Health server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.health.Shutdown(shutdownCtx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to stop health server")
			}
		}()
	}

	s.logger.Info().
		Str("scm_id", s.info.SCMID).
		Str("addr", s.cfg.SCM.BindAddr).
		Bool("primary", s.info.Primary).
		Msg("SCM started")

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("Shutting down SCM")
		return nil
	case err := <-errCh:
		return fmt.Errorf("grpc server failed: %w", err)
	}
}

// joinPrimary asks the primary SCM to add this node as a raft voter
func (s *Service) joinPrimary(ctx context.Context) error {
	if s.cfg.SCM.PrimaryAddr == "" {
		return fmt.Errorf("scm.primaryAddr is required on a bootstrapped SCM")
	}

	c, err := client.NewSCMClient(s.cfg.SCM.PrimaryAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.AddPeer(ctx, s.manager.nodeID, s.cfg.SCM.RaftAddr); err != nil {
		return fmt.Errorf("failed to join primary SCM at %s: %w", s.cfg.SCM.PrimaryAddr, err)
	}
	s.logger.Info().Str("primary", s.cfg.SCM.PrimaryAddr).Msg("Joined SCM raft group")
	return nil
}
