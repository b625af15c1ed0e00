package api

import (
	"fmt"
	"net"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// Server is a grpc server carrying burrow services
type Server struct {
	grpc   *grpc.Server
	logger zerolog.Logger
}

// NewServer creates a server. ErrorInterceptor always runs outermost; extra
// interceptors run inside it in the given order.
func NewServer(interceptors ...grpc.UnaryServerInterceptor) *Server {
	chain := append([]grpc.UnaryServerInterceptor{ErrorInterceptor()}, interceptors...)
	return &Server{
		grpc:   grpc.NewServer(grpc.ChainUnaryInterceptor(chain...)),
		logger: log.WithComponent("api"),
	}
}

// RegisterDatanode mounts the datanode service
func (s *Server) RegisterDatanode(impl DatanodeServer) {
	s.grpc.RegisterService(&DatanodeServiceDesc, impl)
}

// RegisterSCM mounts the SCM service
func (s *Server) RegisterSCM(impl SCMServer) {
	s.grpc.RegisterService(&SCMServiceDesc, impl)
}

// RegisterNamespace mounts the namespace service
func (s *Server) RegisterNamespace(impl NamespaceServer) {
	s.grpc.RegisterService(&NamespaceServiceDesc, impl)
}

// Start listens on addr and serves until Stop
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC API listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the grpc server
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}
