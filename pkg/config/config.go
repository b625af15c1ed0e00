// Package config loads node configuration from a YAML file. Every field has
// a default, so an empty or missing file yields a working single-host setup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/cuemby/burrow/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of one burrow process (SCM, datanode or
// namespace manager)
type Config struct {
	NodeID   string         `yaml:"nodeId"`
	DataDir  string         `yaml:"dataDir"`
	Log      LogConfig      `yaml:"log"`
	SCM      SCMConfig      `yaml:"scm"`
	Datanode DatanodeConfig `yaml:"datanode"`
	OM       OMConfig       `yaml:"om"`
}

// LogConfig configures pkg/log
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// SCMConfig configures the storage container manager
type SCMConfig struct {
	// BindAddr is the SCM grpc listen address
	BindAddr string `yaml:"bindAddr"`
	// RaftAddr is the raft transport address
	RaftAddr string `yaml:"raftAddr"`
	// PrimaryAddr is the grpc address of the primary SCM; set on nodes that
	// join with --bootstrap
	PrimaryAddr string `yaml:"primaryAddr,omitempty"`
	MetricsAddr string `yaml:"metricsAddr"`

	ReconcileInterval time.Duration `yaml:"reconcileInterval"`
	StaleNodeInterval time.Duration `yaml:"staleNodeInterval"`
	DeadNodeInterval  time.Duration `yaml:"deadNodeInterval"`

	// Replication is the default for new containers
	ReplicationType   string `yaml:"replicationType"`
	ReplicationFactor int    `yaml:"replicationFactor"`

	// ContainerSize is the space reserved on each member for a new container
	ContainerSize datasize.ByteSize `yaml:"containerSize"`
	// PipelineLimit caps live pipelines per datanode; 0 means no limit
	PipelineLimit int `yaml:"pipelineLimit"`
	// ContainersPerPipeline caps open containers sharing a pipeline
	ContainersPerPipeline int `yaml:"containersPerPipeline"`
}

// Replication returns the default replication as a typed config
func (c SCMConfig) Replication() types.ReplicationConfig {
	return types.ReplicationConfig{
		Type:   types.ReplicationType(c.ReplicationType),
		Factor: c.ReplicationFactor,
	}
}

// DatanodeConfig configures a storage node
type DatanodeConfig struct {
	APIAddr     string `yaml:"apiAddr"`
	SCMAddr     string `yaml:"scmAddr"`
	MetricsAddr string `yaml:"metricsAddr"`

	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	Capacity         datasize.ByteSize `yaml:"capacity"`
	ContainerMaxSize datasize.ByteSize `yaml:"containerMaxSize"`
	// CloseThreshold is the fraction of ContainerMaxSize after which an open
	// container moves to CLOSING
	CloseThreshold float64 `yaml:"closeThreshold"`
	// InMemory keeps block tables in memory (tests, throwaway nodes)
	InMemory bool `yaml:"inMemory"`
}

// OMConfig configures the namespace manager
type OMConfig struct {
	// BindAddr is the namespace grpc listen address; bucket commands dial it
	// when --om is not given
	BindAddr    string `yaml:"bindAddr"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "/var/lib/burrow",
		Log: LogConfig{
			Level: "info",
		},
		SCM: SCMConfig{
			BindAddr:          "0.0.0.0:9860",
			RaftAddr:          "127.0.0.1:9894",
			MetricsAddr:       "0.0.0.0:9876",
			ReconcileInterval: 10 * time.Second,
			StaleNodeInterval: 90 * time.Second,
			DeadNodeInterval:  10 * time.Minute,
			ReplicationType:   "RATIS",
			ReplicationFactor: 3,

			ContainerSize:         5 * datasize.GB,
			PipelineLimit:         0,
			ContainersPerPipeline: 4,
		},
		Datanode: DatanodeConfig{
			APIAddr:           "0.0.0.0:9858",
			SCMAddr:           "127.0.0.1:9860",
			MetricsAddr:       "0.0.0.0:9882",
			HeartbeatInterval: 30 * time.Second,
			Capacity:          100 * datasize.GB,
			ContainerMaxSize:  5 * datasize.GB,
			CloseThreshold:    0.9,
		},
		OM: OMConfig{
			BindAddr:    "0.0.0.0:9862",
			MetricsAddr: "0.0.0.0:9874",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no node can run with
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("dataDir is required")
	}
	if c.Datanode.CloseThreshold <= 0 || c.Datanode.CloseThreshold > 1 {
		return fmt.Errorf("datanode.closeThreshold must be in (0, 1], got %v", c.Datanode.CloseThreshold)
	}
	if c.Datanode.ContainerMaxSize == 0 {
		return fmt.Errorf("datanode.containerMaxSize must be > 0")
	}
	if c.Datanode.Capacity < c.Datanode.ContainerMaxSize {
		return fmt.Errorf("datanode.capacity (%s) is smaller than one container (%s)",
			c.Datanode.Capacity.HumanReadable(), c.Datanode.ContainerMaxSize.HumanReadable())
	}
	if c.Datanode.HeartbeatInterval <= 0 {
		return fmt.Errorf("datanode.heartbeatInterval must be > 0")
	}
	if c.SCM.ReconcileInterval <= 0 {
		return fmt.Errorf("scm.reconcileInterval must be > 0")
	}
	if c.SCM.DeadNodeInterval < c.SCM.StaleNodeInterval {
		return fmt.Errorf("scm.deadNodeInterval must not be shorter than scm.staleNodeInterval")
	}
	if c.SCM.PipelineLimit < 0 {
		return fmt.Errorf("scm.pipelineLimit must be >= 0")
	}
	if c.SCM.ContainersPerPipeline < 1 {
		return fmt.Errorf("scm.containersPerPipeline must be >= 1")
	}
	if c.OM.BindAddr == "" {
		return fmt.Errorf("om.bindAddr is required")
	}
	switch c.SCM.ReplicationType {
	case "STANDALONE":
	case "RATIS":
		if c.SCM.ReplicationFactor < 1 {
			return fmt.Errorf("scm.replicationFactor must be >= 1")
		}
	default:
		return fmt.Errorf("unknown scm.replicationType %q", c.SCM.ReplicationType)
	}
	return nil
}

// Write stores the configuration at path
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
