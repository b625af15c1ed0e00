/*
Package scm implements the storage container manager: the control plane
that tracks datanodes, places pipelines and owns container records.

# Startup

Every SCM process runs exactly one Command through a Controller:

	start         UNSTARTED -> STARTED         (blocks while serving)
	init          UNSTARTED -> INITIALIZING -> INITIALIZED | FAILED
	bootstrap     UNSTARTED -> BOOTSTRAPPING -> BOOTSTRAPPED | FAILED
	genclusterid  prints a new cluster id, state unchanged

Commands are validated before any transition. A Starter performing init or
bootstrap reports false when the node already belongs to another cluster;
the controller turns that into ErrInitFailed or ErrBootstrapFailed. Errors
from the Starter are returned unchanged.

The cluster identity lives in <dataDir>/scm/current/VERSION, a YAML file
written by Storage. The node that ran init is the primary: on start it
bootstraps a single-voter raft cluster. Nodes that ran bootstrap copy the
primary's cluster id and, on start, ask the primary to add them as voters.

# State

Manager replicates datanodes, pipelines and container records through
hashicorp/raft; FSM applies committed entries to a bbolt StateStore.
Replica reports from heartbeats and the commands queued for each datanode
are soft state on the node serving those heartbeats.

	AllocateContainer   reuse an OPEN pipeline with room, else place a new
	                    one with pkg/scheduler; queue CREATE_CONTAINER for
	                    every member
	CloseContainer      OPEN -> CLOSING; pkg/reconciler finishes the close
	ClosePipeline       pipeline CLOSED, its OPEN containers CLOSING

A container recorded CLOSED leaves its pipeline, which goes DORMANT once it
holds no containers.

Service wires the Manager to the grpc API (writes only on the leader), the
reconciler, the metrics collector and the health endpoints.
*/
package scm
