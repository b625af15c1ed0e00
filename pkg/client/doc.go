/*
Package client provides typed grpc clients for burrow nodes.

SCMClient talks to a storage container manager (cluster identity, datanode
registration and heartbeats, container allocation). DatanodeClient talks to
one storage node (containers, blocks, chunks).

Every error returned by a call has passed through errdefs.FromGRPC, so
callers branch on errdefs kinds exactly as they would in-process:

	blk, err := dn.GetBlock(ctx, id)
	switch {
	case errdefs.IsNotFound(err):
		// block was never written
	case errdefs.IsContainerNotOpen(err):
		// container closed, ask the SCM for another one
	case err != nil:
		return err
	}

Calls whose context has no deadline get DefaultTimeout.
*/
package client
