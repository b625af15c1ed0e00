package api

import (
	"context"

	"google.golang.org/grpc"
)

const (
	DatanodeServiceName  = "burrow.api.Datanode"
	SCMServiceName       = "burrow.api.SCM"
	NamespaceServiceName = "burrow.api.Namespace"
)

// DatanodeServer is served by every storage node
type DatanodeServer interface {
	CreateContainer(context.Context, *CreateContainerRequest) (*ContainerResponse, error)
	CloseContainer(context.Context, *CloseContainerRequest) (*ContainerResponse, error)
	GetContainer(context.Context, *ContainerRequest) (*ContainerResponse, error)
	ListContainers(context.Context, *Empty) (*ListContainersResponse, error)
	PutBlock(context.Context, *PutBlockRequest) (*BlockResponse, error)
	GetBlock(context.Context, *GetBlockRequest) (*BlockResponse, error)
	ListBlock(context.Context, *ListBlockRequest) (*ListBlockResponse, error)
	WriteChunk(context.Context, *WriteChunkRequest) (*Empty, error)
	ReadChunk(context.Context, *ReadChunkRequest) (*ReadChunkResponse, error)
}

// SCMServer is served by every storage container manager
type SCMServer interface {
	GetClusterInfo(context.Context, *Empty) (*ClusterInfo, error)
	AddPeer(context.Context, *AddPeerRequest) (*Empty, error)
	RegisterDatanode(context.Context, *RegisterDatanodeRequest) (*RegisterDatanodeResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	AllocateContainer(context.Context, *AllocateContainerRequest) (*AllocateContainerResponse, error)
	CloseContainer(context.Context, *ContainerRequest) (*Empty, error)
}

// NamespaceServer holds volumes, buckets and keys. Key mutations are planned
// with OpenKey and carry the bucket id it returned.
type NamespaceServer interface {
	CreateBucket(context.Context, *CreateBucketRequest) (*BucketResponse, error)
	GetBucket(context.Context, *BucketRequest) (*BucketResponse, error)
	ListBuckets(context.Context, *ListBucketsRequest) (*ListBucketsResponse, error)
	UpdateBucket(context.Context, *UpdateBucketRequest) (*BucketResponse, error)
	DeleteBucket(context.Context, *BucketRequest) (*Empty, error)
	OpenKey(context.Context, *KeyRequest) (*OpenKeyResponse, error)
	CommitKey(context.Context, *CommitKeyRequest) (*KeyResponse, error)
	GetKey(context.Context, *KeyRequest) (*KeyResponse, error)
	ListKeys(context.Context, *ListKeysRequest) (*ListKeysResponse, error)
	DeleteKey(context.Context, *DeleteKeyRequest) (*Empty, error)
}

// DatanodeServiceDesc describes the datanode service to grpc
var DatanodeServiceDesc = grpc.ServiceDesc{
	ServiceName: DatanodeServiceName,
	HandlerType: (*DatanodeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(DatanodeServiceName, "CreateContainer", DatanodeServer.CreateContainer),
		unary(DatanodeServiceName, "CloseContainer", DatanodeServer.CloseContainer),
		unary(DatanodeServiceName, "GetContainer", DatanodeServer.GetContainer),
		unary(DatanodeServiceName, "ListContainers", DatanodeServer.ListContainers),
		unary(DatanodeServiceName, "PutBlock", DatanodeServer.PutBlock),
		unary(DatanodeServiceName, "GetBlock", DatanodeServer.GetBlock),
		unary(DatanodeServiceName, "ListBlock", DatanodeServer.ListBlock),
		unary(DatanodeServiceName, "WriteChunk", DatanodeServer.WriteChunk),
		unary(DatanodeServiceName, "ReadChunk", DatanodeServer.ReadChunk),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "burrow/api/datanode",
}

// SCMServiceDesc describes the SCM service to grpc
var SCMServiceDesc = grpc.ServiceDesc{
	ServiceName: SCMServiceName,
	HandlerType: (*SCMServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SCMServiceName, "GetClusterInfo", SCMServer.GetClusterInfo),
		unary(SCMServiceName, "AddPeer", SCMServer.AddPeer),
		unary(SCMServiceName, "RegisterDatanode", SCMServer.RegisterDatanode),
		unary(SCMServiceName, "Heartbeat", SCMServer.Heartbeat),
		unary(SCMServiceName, "AllocateContainer", SCMServer.AllocateContainer),
		unary(SCMServiceName, "CloseContainer", SCMServer.CloseContainer),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "burrow/api/scm",
}

// NamespaceServiceDesc describes the namespace service to grpc
var NamespaceServiceDesc = grpc.ServiceDesc{
	ServiceName: NamespaceServiceName,
	HandlerType: (*NamespaceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(NamespaceServiceName, "CreateBucket", NamespaceServer.CreateBucket),
		unary(NamespaceServiceName, "GetBucket", NamespaceServer.GetBucket),
		unary(NamespaceServiceName, "ListBuckets", NamespaceServer.ListBuckets),
		unary(NamespaceServiceName, "UpdateBucket", NamespaceServer.UpdateBucket),
		unary(NamespaceServiceName, "DeleteBucket", NamespaceServer.DeleteBucket),
		unary(NamespaceServiceName, "OpenKey", NamespaceServer.OpenKey),
		unary(NamespaceServiceName, "CommitKey", NamespaceServer.CommitKey),
		unary(NamespaceServiceName, "GetKey", NamespaceServer.GetKey),
		unary(NamespaceServiceName, "ListKeys", NamespaceServer.ListKeys),
		unary(NamespaceServiceName, "DeleteKey", NamespaceServer.DeleteKey),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "burrow/api/namespace",
}

// FullMethod returns the grpc method path clients invoke
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary builds the MethodDesc for a typed handler
func unary[S any, Req any, Resp any](service, method string, fn func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, req)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(service, method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}
