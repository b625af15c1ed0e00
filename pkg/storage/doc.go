/*
Package storage provides BoltDB-backed persistence for Burrow.

Two kinds of tables live here.

# Block tables

Every container on a datanode owns one BlockStore, normally a BoltBlockStore
at <container>/metadata/<id>-block.db:

	block_data   order-preserving big-endian local id -> wire-encoded BlockData
	metadata     #BLOCKCOUNT, #BCSID, #BYTESUSED (big-endian int64)

PutBlock writes the block and the three counters inside one bolt Update, so a
crash never leaves the counters describing a block that was not stored (or
the other way round). MemBlockStore keeps the same contract in memory on a
gods treemap and backs ephemeral containers and tests.

ListBlocks is an exclusive range scan: it returns blocks whose local id is
strictly greater than the start id, so the last local id of one page is the
start of the next. Pass 0 (or any id below the first) to list from the
beginning.

# State store

BoltStateStore holds the control plane's records in <dataDir>/scm.db, one
bucket per kind (nodes, pipelines, containers) with JSON values. Updates are
upserts; a missing key is a NotFound error.

	store, err := storage.NewBoltStateStore("/var/lib/burrow/scm")
	if err != nil {
		return err
	}
	defer store.Close()

The SCM FSM is the only writer. Reads from followers may lag the leader by
the raft replication delay.
*/
package storage
