/*
Package api defines burrow's grpc services and serves them.

There are no .proto files. Each service is a hand-written grpc.ServiceDesc
over plain Go request and response structs, carried by a JSON codec
(json-iterator) registered under the "json" content subtype. Clients select
it with CallOption. Block payloads inside the JSON envelope are encoded with
pkg/wire so the block commit contract keeps its own stable binary format.

# Services

Datanode (burrow.api.Datanode), served by every storage node:

	CreateContainer   CloseContainer   GetContainer   ListContainers
	PutBlock          GetBlock         ListBlock
	WriteChunk        ReadChunk

SCM (burrow.api.SCM), served by every storage container manager:

	GetClusterInfo    AddPeer          RegisterDatanode
	Heartbeat         AllocateContainer CloseContainer

# Errors

ErrorInterceptor wraps every handler. It converts errdefs kinds to grpc
statuses with an ErrorInfo detail (errdefs.ToGRPC) so clients recover the
kind with errdefs.FromGRPC, and it records request counts and latency.

LeaderOnlyInterceptor guards the SCM: methods that are not reads (List*,
Get*, Read*) fail with Unavailable on a follower, naming the leader.

# Health

HealthServer serves /health, /ready and /metrics. Readiness is the
conjunction of the ReadinessChecks the process registers; the SCM checks
raft leadership and its state store, a datanode checks its SCM registration.
*/
package api
