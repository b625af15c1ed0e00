package api

import (
	"context"
	"strings"

	"github.com/cuemby/burrow/pkg/errdefs"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorInterceptor turns errdefs kinds into grpc statuses and records
// request metrics. Every burrow server installs it first.
func ErrorInterceptor() grpc.UnaryServerInterceptor {
	logger := log.WithComponent("api")
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := methodName(info.FullMethod)
		timer := metrics.NewTimer()

		resp, err := handler(ctx, req)

		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		if err != nil {
			err = errdefs.ToGRPC(err)
			st, _ := status.FromError(err)
			metrics.APIRequestsTotal.WithLabelValues(method, st.Code().String()).Inc()
			if st.Code() == codes.Internal || st.Code() == codes.Unknown {
				logger.Error().Err(err).Str("method", method).Msg("Request failed")
			} else {
				logger.Debug().Err(err).Str("method", method).Msg("Request rejected")
			}
			return nil, err
		}

		metrics.APIRequestsTotal.WithLabelValues(method, codes.OK.String()).Inc()
		return resp, nil
	}
}

// LeaderOnlyInterceptor rejects mutating SCM calls on a follower so the
// caller retries against the leader it names
func LeaderOnlyInterceptor(isLeader func() bool, leaderAddr func() string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) && !isLeader() {
			return nil, status.Errorf(codes.Unavailable, "not the leader, current leader: %s", leaderAddr())
		}
		return handler(ctx, req)
	}
}

// methodName extracts the method from a full path
// (e.g., "/burrow.api.SCM/Heartbeat" -> "Heartbeat")
func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	return parts[len(parts)-1]
}

// isReadOnlyMethod checks if a grpc method only reads state
func isReadOnlyMethod(fullMethod string) bool {
	name := methodName(fullMethod)

	readOnlyPrefixes := []string{
		"List",
		"Get",
		"Read",
	}
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
