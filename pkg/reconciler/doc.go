/*
Package reconciler corrects control-plane records from datanode reports.

The reconciler runs on the SCM leader on a fixed interval (10 seconds by
default). Each cycle has two passes:

	┌────────────────────────────────────────────┐
	│           Reconciliation Loop              │
	└───────────────┬────────────────────────────┘
	                │
	    ┌───────────┴────────────┐
	    ▼                        ▼
	┌────────────────┐   ┌──────────────────────┐
	│ Node liveness  │   │ Container replicas   │
	└──────┬─────────┘   └─────────┬────────────┘
	       ▼                       ▼
	 HEALTHY/STALE/DEAD      close commands,
	 close pipelines of      record CLOSING/CLOSED
	 dead nodes

# Node liveness

A node silent for longer than the stale interval goes STALE; longer than
the dead interval, DEAD. Every pipeline with a DEAD member is closed, since
pipeline membership never changes.

# Closing containers

Replicas of one container can disagree on how far they got: a write may
have been committed on two of three members when the pipeline broke. The
close target is the highest block commit sequence id a quorum of healthy
replicas holds (QuorumCommitSequenceID). Replicas at the target receive a
close command carrying it; replicas ahead of it are quasi-closed and kept
for an operator; laggards stay CLOSING until they catch up. When every
healthy replica reports CLOSED the record becomes CLOSED with the agreed
sequence id.

Decide is a pure function so the rules can be tested without a cluster.
*/
package reconciler
