/*
Package datanode implements a storage node: it holds container replicas on
a local volume, commits block metadata through the container block manager,
stores chunk bytes, and follows the SCM through heartbeats.

# Lifecycle

A datanode knows nothing about its cluster until it registers:

	svc, _ := datanode.NewService(cfg)
	svc.Run(ctx) // register -> Open(clusterID) -> serve -> heartbeat

Open attaches <dataDir>/hdds/<clusterID> and reloads every container that
has a descriptor there, restoring its recorded state and the block counters
kept in its block table. Later state changes rewrite the descriptor.

# SCM commands

Each heartbeat reports every replica and returns queued commands:

	CREATE_CONTAINER       create the replica, unless it exists
	CLOSE_CONTAINER        close at the agreed block commit sequence id
	QUASI_CLOSE_CONTAINER  quasi-close a replica that cannot match

A close whose sequence id does not match the replica fails and is retried
on a later heartbeat once the replica has caught up.
*/
package datanode
