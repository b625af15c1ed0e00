/*
Package types holds the data model shared across Burrow.

The types here are plain records with JSON tags; they carry no locking and
no lifecycle rules. Behavior lives in the owning packages:

  - BlockID, ChunkInfo, BlockData: the block commit contract. Stored by
    pkg/storage, committed by pkg/container, encoded by pkg/wire.
  - ContainerState, ContainerInfo: container replica state and the physical
    state query record reported to the control plane.
  - ReplicationConfig, PipelineState: consumed by pkg/pipeline.
  - Node: storage node registration kept by the control plane.
  - BucketLayout, BucketInfo, KeyInfo: namespace records guarded by pkg/om.
  - BootstrapState: control-plane startup states driven by pkg/scm.

# Block commit sequence

A BlockData with BlockCommitSequenceID == 0 is an uncommitted write. Any
positive value is the sequence id the block was committed under, and the
owning container's sequence id is never below it.

# Bucket identity

BucketInfo.ObjectID doubles as the bucket fingerprint used for optimistic
concurrency. It never decreases.
*/
package types
