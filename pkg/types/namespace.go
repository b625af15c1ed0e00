package types

import "time"

// BucketLayout is the namespace organization flavor of a bucket
type BucketLayout string

const (
	BucketLayoutLegacy              BucketLayout = "LEGACY"
	BucketLayoutObjectStore         BucketLayout = "OBJECT_STORE"
	BucketLayoutFileSystemOptimized BucketLayout = "FILE_SYSTEM_OPTIMIZED"
)

// IsFileSystemOptimized reports whether the layout keeps a directory tree
func (l BucketLayout) IsFileSystemOptimized() bool {
	return l == BucketLayoutFileSystemOptimized
}

// BucketInfo is a bucket record. ObjectID is the bucket identity: it is
// reissued, always larger, whenever a characteristic that in-flight requests
// depend on changes.
type BucketInfo struct {
	Volume      string            `json:"volume"`
	Name        string            `json:"name"`
	ObjectID    int64             `json:"objectID"`
	Layout      BucketLayout      `json:"layout"`
	Replication ReplicationConfig `json:"replication"`
	QuotaBytes  int64             `json:"quotaBytes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	ModifiedAt  time.Time         `json:"modifiedAt"`
}

// ACL grants rights on a key to an identity
type ACL struct {
	Type   string   `json:"type"` // "user", "group", "world"
	Name   string   `json:"name"`
	Rights []string `json:"rights"`
}

// KeyLocation places a slice of key data in a block of a pipeline
type KeyLocation struct {
	BlockID    BlockID `json:"blockID"`
	PipelineID string  `json:"pipelineID"`
	Offset     int64   `json:"offset"`
	Length     int64   `json:"length"`
}

// KeyLocationGroup is one version of a key's block locations
type KeyLocationGroup struct {
	Version   int64         `json:"version"`
	Locations []KeyLocation `json:"locations"`
	Multipart bool          `json:"multipart,omitempty"`
}

// KeyInfo is a key (object) record in the namespace
type KeyInfo struct {
	Volume      string             `json:"volume"`
	Bucket      string             `json:"bucket"`
	Name        string             `json:"name"`
	DataSize    int64              `json:"dataSize"`
	Replication ReplicationConfig  `json:"replication"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
	Versions    []KeyLocationGroup `json:"versions"`
	ACLs        []ACL              `json:"acls,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	ModifiedAt  time.Time          `json:"modifiedAt"`
}

// LatestVersion returns the newest location group, or nil
func (k *KeyInfo) LatestVersion() *KeyLocationGroup {
	if len(k.Versions) == 0 {
		return nil
	}
	return &k.Versions[len(k.Versions)-1]
}

// Copy returns a deep copy; mutating the copy never affects k
func (k *KeyInfo) Copy() *KeyInfo {
	out := *k
	if k.Metadata != nil {
		out.Metadata = make(map[string]string, len(k.Metadata))
		for key, v := range k.Metadata {
			out.Metadata[key] = v
		}
	}
	if k.Versions != nil {
		out.Versions = make([]KeyLocationGroup, len(k.Versions))
		for i, g := range k.Versions {
			out.Versions[i] = g
			out.Versions[i].Locations = append([]KeyLocation(nil), g.Locations...)
		}
	}
	if k.ACLs != nil {
		out.ACLs = make([]ACL, len(k.ACLs))
		for i, a := range k.ACLs {
			out.ACLs[i] = a
			out.ACLs[i].Rights = append([]string(nil), a.Rights...)
		}
	}
	return &out
}
