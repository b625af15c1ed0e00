package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_datanodes_total",
			Help: "Total number of datanodes by status",
		},
		[]string{"status"},
	)

	PipelinesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_pipelines_total",
			Help: "Total number of pipelines by state",
		},
		[]string{"state"},
	)

	ContainersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_containers_total",
			Help: "Total number of containers by state",
		},
		[]string{"state"},
	)

	BootstrapState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_scm_bootstrap_state",
			Help: "Current SCM bootstrap state (1 for the active state)",
		},
		[]string{"state"},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// Datanode metrics
	BlockPutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_block_puts_total",
			Help: "Total number of block puts by result",
		},
		[]string{"result"},
	)

	BlockPutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_block_put_duration_seconds",
			Help:    "Block put duration in seconds, including the table commit",
			Buckets: prometheus.DefBuckets,
		},
	)

	SequenceRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_block_sequence_rejections_total",
			Help: "Total number of committed puts rejected for a stale or replayed sequence id",
		},
	)

	ChunkBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_chunk_bytes_total",
			Help: "Total chunk bytes moved by direction",
		},
		[]string{"direction"},
	)

	// Namespace metrics
	GuardRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_bucket_guard_rejections_total",
			Help: "Total number of namespace mutations rejected by the bucket guard, by kind",
		},
		[]string{"kind"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Placement and reconciliation metrics
	PlacementLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_placement_latency_seconds",
			Help:    "Time taken to place a container in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PipelinesAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_pipelines_allocated_total",
			Help: "Total number of pipelines allocated",
		},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_reconciliation_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_reconciliation_commands_total",
			Help: "Total number of datanode commands issued by type",
		},
		[]string{"type"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(PipelinesTotal)
	prometheus.MustRegister(ContainersTotal)
	prometheus.MustRegister(BootstrapState)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(BlockPutsTotal)
	prometheus.MustRegister(BlockPutDuration)
	prometheus.MustRegister(SequenceRejectionsTotal)
	prometheus.MustRegister(ChunkBytesTotal)
	prometheus.MustRegister(GuardRejectionsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(PlacementLatency)
	prometheus.MustRegister(PipelinesAllocated)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCommandsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
