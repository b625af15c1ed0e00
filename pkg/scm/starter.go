package scm

import (
	"context"
	"fmt"

	"github.com/cuemby/burrow/pkg/client"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
)

// ServiceStarter is the Starter used by the burrow binary
type ServiceStarter struct{}

var _ Starter = ServiceStarter{}

// Start runs the SCM service; the node must have been initialized or
// bootstrapped first
func (ServiceStarter) Start(ctx context.Context, cfg *config.Config) error {
	info, err := NewStorage(cfg.DataDir).Load()
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w; run 'burrow scm --init' or 'burrow scm --bootstrap' first", err)
		}
		return err
	}

	svc, err := NewService(cfg, info)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

// Init records clusterID, or a generated one, as this node's cluster
func (ServiceStarter) Init(cfg *config.Config, clusterID string) (bool, error) {
	if clusterID == "" {
		clusterID = GenerateClusterID()
	}

	storage := NewStorage(cfg.DataDir)
	ok, err := storage.Initialize(clusterID, true)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Logger.Error().Str("cluster_id", clusterID).Str("dir", storage.Dir()).
			Msg("SCM is already initialized with a different cluster id")
		return false, nil
	}

	log.Logger.Info().Str("cluster_id", clusterID).Str("dir", storage.Dir()).Msg("SCM initialized")
	return true, nil
}

// Bootstrap adopts the cluster id of the primary SCM at scm.primaryAddr
func (ServiceStarter) Bootstrap(ctx context.Context, cfg *config.Config) (bool, error) {
	if cfg.SCM.PrimaryAddr == "" {
		return false, errdefs.InvalidConfiguration("scm.primaryAddr is required to bootstrap")
	}

	c, err := client.NewSCMClient(cfg.SCM.PrimaryAddr)
	if err != nil {
		return false, err
	}
	defer c.Close()

	info, err := c.GetClusterInfo(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch cluster id from %s: %w", cfg.SCM.PrimaryAddr, err)
	}

	storage := NewStorage(cfg.DataDir)
	ok, err := storage.Initialize(info.ClusterID, false)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Logger.Error().Str("cluster_id", info.ClusterID).Str("dir", storage.Dir()).
			Msg("SCM storage belongs to a different cluster")
		return false, nil
	}

	log.Logger.Info().Str("cluster_id", info.ClusterID).Str("primary", cfg.SCM.PrimaryAddr).Msg("SCM bootstrapped")
	return true, nil
}

// GenerateClusterID returns a fresh cluster id
func (ServiceStarter) GenerateClusterID() string {
	return GenerateClusterID()
}
