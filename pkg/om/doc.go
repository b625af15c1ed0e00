/*
Package om holds the namespace side of Burrow: bucket and key records and
the bucket-consistency guard that protects them.

A namespace mutation is planned against a bucket, then committed. Between
the two the bucket may be recreated or have its replication changed, which
issues it a new, larger id. Plan stamps the Request with the id it saw;
commit re-reads the bucket under its lock and runs two checks before
touching anything:

 1. CheckLayout: the handler serving the request must belong to the same
    layout family (file-system-optimized or not) as the bucket. A mismatch
    is a routing defect and fails with an internal error.
 2. ValidateAssociatedBucketID: the stamped id must still be the bucket's
    id. A mismatch fails with BucketIdMismatch; the client re-resolves the
    bucket and retries. Requests without a stamped id skip this check.

Both checks and the mutation run inside BucketTable.WithBucketLocked, so no
identity change can slip in between check and commit.

	buckets := om.NewBucketTable(nil)
	keys := om.NewKeyTable()
	h := om.NewObjectStoreHandler(buckets, keys)

	req := &om.Request{Volume: "vol1", Bucket: "b1", Key: "photos/cat.jpg"}
	if _, err := h.Plan(req); err != nil {
		return err
	}
	// ... allocate blocks, write chunks ...
	_, err := h.CommitKey(req, om.CommitArgs{DataSize: n, Locations: locs})

Namespace bundles the tables with one handler per layout family and routes
requests between them; Service serves it over grpc as `burrow om`.
*/
package om
