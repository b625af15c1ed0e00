package client

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/errdefs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultTimeout bounds calls whose context carries no deadline
const DefaultTimeout = 10 * time.Second

// conn is the grpc connection shared by the typed clients
type conn struct {
	cc      *grpc.ClientConn
	service string
}

// Dial opens a connection to a burrow node. Extra dial options are applied
// after the defaults (insecure transport, burrow codec).
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(api.CallOption()),
	}
	cc, err := grpc.NewClient(addr, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return cc, nil
}

// invoke calls method and restores the errdefs kind of any failure
func (c *conn) invoke(ctx context.Context, method string, req, resp interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	return errdefs.FromGRPC(c.cc.Invoke(ctx, api.FullMethod(c.service, method), req, resp))
}

// Close closes the connection
func (c *conn) Close() error {
	if c.cc != nil {
		return c.cc.Close()
	}
	return nil
}
