package om

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/types"
)

// BucketUpdate lists the bucket properties that may change after creation.
// Nil fields are left alone.
type BucketUpdate struct {
	Replication *types.ReplicationConfig
	QuotaBytes  *int64
}

// BucketTable holds bucket records. Each bucket has its own lock; identity
// changes and guarded commits against the same bucket are serialized on it.
type BucketTable struct {
	mu      sync.RWMutex
	buckets map[string]*types.BucketInfo
	nextID  int64

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	events *events.Broker
}

// NewBucketTable creates an empty bucket table; broker may be nil
func NewBucketTable(broker *events.Broker) *BucketTable {
	return &BucketTable{
		buckets: make(map[string]*types.BucketInfo),
		locks:   make(map[string]*sync.Mutex),
		events:  broker,
	}
}

func bucketKey(volume, bucket string) string {
	return "/" + volume + "/" + bucket
}

func (t *BucketTable) lockFor(volume, bucket string) *sync.Mutex {
	t.lockMu.Lock()
	defer t.lockMu.Unlock()

	key := bucketKey(volume, bucket)
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}

// issueID returns the next bucket id; ids only grow. Callers hold t.mu.
func (t *BucketTable) issueID() int64 {
	t.nextID++
	return t.nextID
}

// Create adds a bucket and assigns its id. An empty layout means LEGACY.
func (t *BucketTable) Create(info types.BucketInfo) (*types.BucketInfo, error) {
	if info.Volume == "" || info.Name == "" {
		return nil, errdefs.InvalidArgument("volume and bucket name are required")
	}
	if strings.Contains(info.Volume, "/") || strings.Contains(info.Name, "/") {
		return nil, errdefs.InvalidArgument("volume and bucket names must not contain '/': %q, %q", info.Volume, info.Name)
	}
	switch info.Layout {
	case "":
		info.Layout = types.BucketLayoutLegacy
	case types.BucketLayoutLegacy, types.BucketLayoutObjectStore, types.BucketLayoutFileSystemOptimized:
	default:
		return nil, errdefs.InvalidArgument("unknown bucket layout %q", info.Layout)
	}

	l := t.lockFor(info.Volume, info.Name)
	l.Lock()
	defer l.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	key := bucketKey(info.Volume, info.Name)
	if _, exists := t.buckets[key]; exists {
		return nil, errdefs.InvalidArgument("bucket already exists: %s", key)
	}

	now := time.Now()
	info.ObjectID = t.issueID()
	info.CreatedAt = now
	info.ModifiedAt = now

	stored := info
	t.buckets[key] = &stored
	return &info, nil
}

// Get returns a copy of the bucket record
func (t *BucketTable) Get(volume, bucket string) (*types.BucketInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.getLocked(volume, bucket)
}

func (t *BucketTable) getLocked(volume, bucket string) (*types.BucketInfo, error) {
	b, ok := t.buckets[bucketKey(volume, bucket)]
	if !ok {
		return nil, errdefs.NotFound("bucket not found: %s", bucketKey(volume, bucket))
	}
	out := *b
	return &out, nil
}

// List returns the buckets of a volume ordered by name
func (t *BucketTable) List(volume string) []*types.BucketInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var list []*types.BucketInfo
	for _, b := range t.buckets {
		if b.Volume == volume {
			out := *b
			list = append(list, &out)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Update applies u to a bucket. A replication change affects where new
// blocks are placed, so the bucket is issued a new, larger id and requests
// planned against the old id fail at commit.
func (t *BucketTable) Update(volume, bucket string, u BucketUpdate) (*types.BucketInfo, error) {
	l := t.lockFor(volume, bucket)
	l.Lock()
	defer l.Unlock()

	t.mu.Lock()
	b, ok := t.buckets[bucketKey(volume, bucket)]
	if !ok {
		t.mu.Unlock()
		return nil, errdefs.NotFound("bucket not found: %s", bucketKey(volume, bucket))
	}

	if u.QuotaBytes != nil {
		if *u.QuotaBytes < 0 {
			t.mu.Unlock()
			return nil, errdefs.InvalidArgument("quota must not be negative")
		}
		b.QuotaBytes = *u.QuotaBytes
	}
	if u.Replication != nil && *u.Replication != b.Replication {
		b.Replication = *u.Replication
		b.ObjectID = t.issueID()
	}
	b.ModifiedAt = time.Now()
	out := *b
	t.mu.Unlock()

	t.publish(events.EventBucketUpdated, &out)
	return &out, nil
}

// Delete removes a bucket. isEmpty runs under the bucket lock and may veto
// the deletion.
func (t *BucketTable) Delete(volume, bucket string, isEmpty func() bool) error {
	l := t.lockFor(volume, bucket)
	l.Lock()
	defer l.Unlock()

	t.mu.Lock()
	key := bucketKey(volume, bucket)
	b, ok := t.buckets[key]
	if !ok {
		t.mu.Unlock()
		return errdefs.NotFound("bucket not found: %s", key)
	}
	if isEmpty != nil && !isEmpty() {
		t.mu.Unlock()
		return errdefs.InvalidArgument("bucket is not empty: %s", key)
	}
	delete(t.buckets, key)
	out := *b
	t.mu.Unlock()

	t.publish(events.EventBucketDeleted, &out)
	return nil
}

// WithBucketLocked runs fn with the current bucket record while holding the
// bucket's lock. No identity change to the bucket can happen until fn
// returns. fn must not call back into the table for the same bucket.
func (t *BucketTable) WithBucketLocked(volume, bucket string, fn func(b *types.BucketInfo) error) error {
	l := t.lockFor(volume, bucket)
	l.Lock()
	defer l.Unlock()

	b, err := t.Get(volume, bucket)
	if err != nil {
		return err
	}
	return fn(b)
}

func (t *BucketTable) publish(eventType events.EventType, b *types.BucketInfo) {
	t.events.Publish(events.NewEvent(eventType,
		fmt.Sprintf("bucket %s", bucketKey(b.Volume, b.Name)),
		map[string]string{
			"volume":    b.Volume,
			"bucket":    b.Name,
			"object_id": strconv.FormatInt(b.ObjectID, 10),
		}))
}
