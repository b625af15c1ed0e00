package om

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/rs/zerolog"
)

// Service is a running namespace manager: bucket and key tables behind the
// namespace grpc API, plus health endpoints
type Service struct {
	cfg    *config.Config
	events *events.Broker
	ns     *Namespace
	server *api.Server
	health *api.HealthServer
	logger zerolog.Logger
}

// NewService prepares a namespace manager from the process configuration
func NewService(cfg *config.Config) *Service {
	broker := events.NewBroker()
	ns := NewNamespace(broker)

	server := api.NewServer()
	server.RegisterNamespace(NewRPCHandler(ns))

	return &Service{
		cfg:    cfg,
		events: broker,
		ns:     ns,
		server: server,
		health: api.NewHealthServer(api.ComponentsCheck()),
		logger: log.WithComponent("om"),
	}
}

// Namespace returns the tables served by the service
func (s *Service) Namespace() *Namespace {
	return s.ns
}

// Run serves the namespace API until ctx is cancelled or the grpc server
// fails
func (s *Service) Run(ctx context.Context) error {
	metrics.SetVersion(api.Version)
	metrics.SetCriticalComponents("api")

	s.events.Start()
	defer s.events.Stop()

	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)
	go s.logBucketEvents(sub)

	lis, err := net.Listen("tcp", s.cfg.OM.BindAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(lis) }()
	defer s.server.Stop()
	metrics.RegisterComponent("api", true, lis.Addr().String())

	if s.cfg.OM.MetricsAddr != "" {
		go func() {
			if err := s.health.Start(s.cfg.OM.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Namespace manager started")

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("Shutting down namespace manager")
		return nil
	case err := <-errCh:
		return fmt.Errorf("grpc server failed: %w", err)
	}
}

func (s *Service) logBucketEvents(sub events.Subscriber) {
	for ev := range sub {
		s.logger.Info().
			Str("event", string(ev.Type)).
			Str("object_id", ev.Metadata["object_id"]).
			Msg(ev.Message)
	}
}
