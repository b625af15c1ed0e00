/*
Package container implements storage containers on a datanode and the block
manager that commits block metadata into them.

A Container owns one block table (pkg/storage) and one RWMutex. Block writes
take the write lock, so two PutBlock calls on the same container are
linearized with respect to the commit sequence id and the block count. Reads
take the read lock and run concurrently with each other. Calls against
different containers share nothing.

# Lifecycle

	OPEN          -> CLOSING, UNHEALTHY
	CLOSING       -> CLOSED, QUASI_CLOSED, UNHEALTHY
	QUASI_CLOSED  -> CLOSED
	any           -> INVALID

Only an OPEN container accepts block commits; anything else fails with
ContainerNotOpen and the writer must move to another container. A container
moves to CLOSING on an administrative close or when a write pushes its bytes
used past the close threshold. It becomes CLOSED only when its commit
sequence id equals the value the pipeline agreed on. An I/O failure from the
block table makes it UNHEALTHY. An INVALID container also refuses reads.

The Set indexes containers by id for the datanode's request handlers and
heartbeat reports.
*/
package container
