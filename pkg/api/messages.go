package api

import "github.com/cuemby/burrow/pkg/types"

// Empty is the request or response of calls that carry nothing
type Empty struct{}

// Datanode service messages

type CreateContainerRequest struct {
	ContainerID  int64                   `json:"containerID"`
	PipelineID   string                  `json:"pipelineID"`
	Replication  types.ReplicationConfig `json:"replication"`
	MaxSizeBytes int64                   `json:"maxSizeBytes"`
	Owner        string                  `json:"owner,omitempty"`
}

type ContainerRequest struct {
	ContainerID int64 `json:"containerID"`
}

// CloseContainerRequest closes a replica at the agreed sequence id. Quasi
// asks for QUASI_CLOSED instead, for replicas that cannot reach agreement.
type CloseContainerRequest struct {
	ContainerID           int64  `json:"containerID"`
	BlockCommitSequenceID int64  `json:"blockCommitSequenceId"`
	Quasi                 bool   `json:"quasi,omitempty"`
	Reason                string `json:"reason,omitempty"`
}

type ContainerResponse struct {
	Container types.ContainerInfo `json:"container"`
}

type ListContainersResponse struct {
	Containers []types.ContainerInfo `json:"containers"`
}

// PutBlockRequest carries a block in the protobuf wire format of pkg/wire
type PutBlockRequest struct {
	Block []byte `json:"block"`
}

type GetBlockRequest struct {
	BlockID types.BlockID `json:"blockID"`
}

type BlockResponse struct {
	Block []byte `json:"block"`
}

type ListBlockRequest struct {
	ContainerID  int64 `json:"containerID"`
	StartLocalID int64 `json:"startLocalID"`
	Count        int   `json:"count"`
}

type ListBlockResponse struct {
	Blocks [][]byte `json:"blocks"`
}

type WriteChunkRequest struct {
	BlockID types.BlockID   `json:"blockID"`
	Chunk   types.ChunkInfo `json:"chunk"`
	Data    []byte          `json:"data"`
}

type ReadChunkRequest struct {
	BlockID types.BlockID   `json:"blockID"`
	Chunk   types.ChunkInfo `json:"chunk"`
}

type ReadChunkResponse struct {
	Data []byte `json:"data"`
}

// SCM service messages

type Peer struct {
	ID       string `json:"id"`
	RaftAddr string `json:"raftAddr"`
}

type ClusterInfo struct {
	ClusterID  string `json:"clusterID"`
	SCMID      string `json:"scmID"`
	LeaderAddr string `json:"leaderAddr,omitempty"`
	Peers      []Peer `json:"peers,omitempty"`
}

type AddPeerRequest struct {
	Peer Peer `json:"peer"`
}

type RegisterDatanodeRequest struct {
	Node types.Node `json:"node"`
}

type RegisterDatanodeResponse struct {
	ClusterID string     `json:"clusterID"`
	Node      types.Node `json:"node"`
}

type HeartbeatRequest struct {
	NodeID     string                `json:"nodeID"`
	UsedBytes  int64                 `json:"usedBytes"`
	Containers []types.ContainerInfo `json:"containers"`
}

type HeartbeatResponse struct {
	Commands []types.DatanodeCommand `json:"commands,omitempty"`
}

type AllocateContainerRequest struct {
	Replication types.ReplicationConfig `json:"replication"`
	Owner       string                  `json:"owner,omitempty"`
}

// Member is a pipeline member and where to reach it
type Member struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type AllocateContainerResponse struct {
	Container types.ContainerInfo `json:"container"`
	Members   []Member            `json:"members"`
}

// Namespace service messages

type CreateBucketRequest struct {
	Bucket types.BucketInfo `json:"bucket"`
}

type BucketRequest struct {
	Volume string `json:"volume"`
	Bucket string `json:"bucket"`
}

type BucketResponse struct {
	Bucket types.BucketInfo `json:"bucket"`
}

type ListBucketsRequest struct {
	Volume string `json:"volume"`
}

type ListBucketsResponse struct {
	Buckets []types.BucketInfo `json:"buckets"`
}

// UpdateBucketRequest changes the non-nil properties of a bucket
type UpdateBucketRequest struct {
	Volume      string                   `json:"volume"`
	Bucket      string                   `json:"bucket"`
	Replication *types.ReplicationConfig `json:"replication,omitempty"`
	QuotaBytes  *int64                   `json:"quotaBytes,omitempty"`
}

type KeyRequest struct {
	Volume string `json:"volume"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// OpenKeyResponse carries what a writer needs to commit later: the bucket id
// and layout observed now, and the replication to allocate blocks with
type OpenKeyResponse struct {
	BucketID    int64                   `json:"bucketID"`
	Layout      types.BucketLayout      `json:"layout"`
	Replication types.ReplicationConfig `json:"replication"`
}

// CommitKeyRequest commits a key planned by OpenKey. A nil BucketID skips
// the bucket identity check; an empty Layout routes by the current bucket.
type CommitKeyRequest struct {
	Volume    string              `json:"volume"`
	Bucket    string              `json:"bucket"`
	Key       string              `json:"key"`
	BucketID  *int64              `json:"bucketID,omitempty"`
	Layout    types.BucketLayout  `json:"layout,omitempty"`
	DataSize  int64               `json:"dataSize"`
	Locations []types.KeyLocation `json:"locations"`
	Metadata  map[string]string   `json:"metadata,omitempty"`
	ACLs      []types.ACL         `json:"acls,omitempty"`
}

type KeyResponse struct {
	Key types.KeyInfo `json:"key"`
}

type ListKeysRequest struct {
	Volume string `json:"volume"`
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix,omitempty"`
}

type ListKeysResponse struct {
	Keys []types.KeyInfo `json:"keys"`
}

type DeleteKeyRequest struct {
	Volume   string             `json:"volume"`
	Bucket   string             `json:"bucket"`
	Key      string             `json:"key"`
	BucketID *int64             `json:"bucketID,omitempty"`
	Layout   types.BucketLayout `json:"layout,omitempty"`
}
