package datanode

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
	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/metrics"
)

// Service is a running datanode: container replicas, grpc API, heartbeats
// to the SCM and health endpoints
type Service struct {
	cfg    *config.Config
	events *events.Broker
	dn     *Datanode
	server *api.Server
	health *api.HealthServer
}

// NewService prepares a datanode from the process configuration
func NewService(cfg *config.Config) (*Service, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("nodeId is required on a datanode")
	}

	broker := events.NewBroker()
	dn := New(Config{
		NodeID:            cfg.NodeID,
		Address:           cfg.Datanode.APIAddr,
		SCMAddr:           cfg.Datanode.SCMAddr,
		DataDir:           filepath.Join(cfg.DataDir, "hdds"),
		HeartbeatInterval: cfg.Datanode.HeartbeatInterval,
		CapacityBytes:     int64(cfg.Datanode.Capacity.Bytes()),
		ContainerMaxSize:  int64(cfg.Datanode.ContainerMaxSize.Bytes()),
		CloseThreshold:    cfg.Datanode.CloseThreshold,
		InMemory:          cfg.Datanode.InMemory,
		Events:            broker,
	})

	server := api.NewServer()
	server.RegisterDatanode(NewHandler(dn))

	s := &Service{
		cfg:    cfg,
		events: broker,
		dn:     dn,
		server: server,
	}
	s.health = api.NewHealthServer(
		api.ReadinessCheck{Name: "volume", Check: s.volumeReady},
		api.ComponentsCheck(),
	)
	return s, nil
}

// Datanode returns the replica store of the service
func (s *Service) Datanode() *Datanode {
	return s.dn
}

func (s *Service) volumeReady() (string, error) {
	vol, err := s.dn.getVolume()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d containers in cluster %s", s.dn.containers.Len(), vol.ClusterID()), nil
}

// Run registers with the SCM, serves the API and heartbeats until ctx is
// cancelled or the grpc server fails
func (s *Service) Run(ctx context.Context) error {
	logger := s.dn.logger

	metrics.SetVersion(api.Version)
	metrics.SetCriticalComponents("api", "scm", "volume")
	metrics.RegisterComponent("scm", false, "registering")

	s.events.Start()
	defer s.events.Stop()

	scm, err := client.NewSCMClient(s.cfg.Datanode.SCMAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to SCM: %w", err)
	}
	defer scm.Close()

	hb := NewHeartbeater(s.dn, scm)
	clusterID, err := hb.Register(ctx)
	if err != nil {
		return err
	}
	if err := s.dn.Open(clusterID); err != nil {
		return err
	}
	defer func() {
		if err := s.dn.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to release containers")
		}
	}()
	metrics.UpdateComponent("scm", true, s.cfg.Datanode.SCMAddr)

	vol, err := s.dn.getVolume()
	if err != nil {
		return err
	}
	probes := health.NewMonitor(func(name string, st health.Status) {
		metrics.UpdateComponent(name, st.Healthy, st.LastResult.Message)
		if !st.Healthy {
			logger.Warn().Str("probe", name).Str("reason", st.LastResult.Message).Msg("Probe unhealthy")
		}
	})
	defer probes.Stop()
	probes.Add("volume", health.NewDiskChecker(vol.BasePath()), health.DefaultConfig())
	scmProbe := health.DefaultConfig()
	if s.cfg.Datanode.HeartbeatInterval > 0 {
		scmProbe.Interval = s.cfg.Datanode.HeartbeatInterval
	}
	scmProbe.Timeout = 5 * time.Second
	probes.Add("scm", health.NewTCPChecker(s.cfg.Datanode.SCMAddr), scmProbe)

	lis, err := net.Listen("tcp", s.cfg.Datanode.APIAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(lis) }()
	defer s.server.Stop()
	metrics.RegisterComponent("api", true, lis.Addr().String())

	hb.Start()
	defer hb.Stop()

	if s.cfg.Datanode.MetricsAddr != "" {
		go func() {
			if err := s.health.Start(s.cfg.Datanode.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Health server stopped")
			}
		}()
		defer s.shutdownHealth()
	}

	logger.Info().
		Str("cluster_id", clusterID).
		Str("addr", s.cfg.Datanode.APIAddr).
		Int("containers", s.dn.containers.Len()).
		Msg("Datanode started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down datanode")
		return nil
	case err := <-errCh:
		return fmt.Errorf("grpc server failed: %w", err)
	}
}

func (s *Service) shutdownHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.health.Shutdown(ctx); err != nil {
		s.dn.logger.Error().Err(err).Msg("Failed to stop health server")
	}
}
