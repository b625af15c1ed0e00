package om

import (
	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
)

// Request is the envelope of a namespace mutation
type Request struct {
	Volume string
	Bucket string
	Key    string

	// AssociatedBucketID is the bucket id observed when the request was
	// planned. Nil skips the identity check.
	AssociatedBucketID *int64
}

// WithBucketID stamps the request with a bucket id
func (r *Request) WithBucketID(id int64) *Request {
	r.AssociatedBucketID = &id
	return r
}

// CheckLayout fails with an internal error when a handler built for one
// bucket layout family is routed a bucket of the other. Only the
// file-system-optimized flag is compared.
func CheckLayout(dbLayout, handlerLayout types.BucketLayout) error {
	if dbLayout.IsFileSystemOptimized() == handlerLayout.IsFileSystemOptimized() {
		return nil
	}

	err := errdefs.Internal("BucketLayout mismatch. DB BucketLayout %s and request handler BucketLayout %s",
		dbLayout, handlerLayout)
	metrics.GuardRejectionsTotal.WithLabelValues(string(errdefs.KindInternal)).Inc()
	log.Logger.Error().Str("component", "om").Msg(err.Message)
	return err
}

// ValidateAssociatedBucketID fails with BucketIdMismatch when the bucket
// changed between planning req and applying it
func ValidateAssociatedBucketID(bucketID int64, req *Request) error {
	if req == nil || req.AssociatedBucketID == nil {
		return nil
	}
	if *req.AssociatedBucketID == bucketID {
		return nil
	}

	metrics.GuardRejectionsTotal.WithLabelValues(string(errdefs.KindBucketIDMismatch)).Inc()
	return errdefs.BucketIDMismatch("Bucket ID mismatch. Associated bucket was modified while this " +
		"request was being processed. Please retry the request.")
}
