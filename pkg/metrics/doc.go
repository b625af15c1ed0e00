/*
Package metrics provides Prometheus metrics for Burrow.

All metrics are package-level collectors registered with the default registry
in init and exposed through Handler on the node's metrics listener, next to
the /health, /ready and /live endpoints from HealthHandler, ReadyHandler and
LivenessHandler.

Datanode metrics:

	burrow_block_puts_total{result}              ok, rejected, not_open, error
	burrow_block_put_duration_seconds
	burrow_block_sequence_rejections_total
	burrow_chunk_bytes_total{direction}          read, write

SCM metrics:

	burrow_datanodes_total{status}
	burrow_pipelines_total{state}
	burrow_containers_total{state}
	burrow_scm_bootstrap_state{state}
	burrow_raft_is_leader, burrow_raft_peers_total
	burrow_raft_log_index, burrow_raft_applied_index
	burrow_placement_latency_seconds
	burrow_pipelines_allocated_total
	burrow_reconciliation_duration_seconds
	burrow_reconciliation_commands_total{type}

Namespace and API metrics:

	burrow_bucket_guard_rejections_total{kind}
	burrow_api_requests_total{method,status}
	burrow_api_request_duration_seconds{method}

The cluster gauges are sampled by a Collector from any Source (the SCM
manager) every 15 seconds by default. Latencies are recorded with Timer:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BlockPutDuration)
*/
package metrics
