// Package rpc is the submission socket and ad hoc query adapter: the
// two-method boundary (Submit, Query) the core state engine is driven
// through, hand-wired onto google.golang.org/grpc without a .proto file
// — grpc.ServiceDesc and the method handlers are written by hand, and
// messages cross the wire through the JSON codec registered in
// codec.go rather than generated protobuf marshaling.
package rpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/lumenetwork/corestate/internal/corelog"
)

// Engine is the subset of internal/wire's composition root this
// service is driven through: one transaction submitted at a time
// (queued behind the single writer loop) and one ad hoc read at a
// time.
type Engine interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
	Query(ctx context.Context, req QueryRequest) (QueryResponse, error)
}

// serviceDesc is the hand-authored equivalent of what protoc-gen-go-grpc
// would generate from a .proto file declaring:
//
//	service StateEngine {
//	  rpc Submit(SubmitRequest) returns (SubmitResponse);
//	  rpc Query(QueryRequest) returns (QueryResponse);
//	}
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "corestate.StateEngine",
	HandlerType: (*Engine)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "Query", Handler: queryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "corestate/rpc.proto",
}

func submitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Engine).Submit(ctx, *in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/corestate.StateEngine/Submit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Engine).Submit(ctx, *req.(*SubmitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Engine).Query(ctx, *in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/corestate.StateEngine/Query"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Engine).Query(ctx, *req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterEngineServer registers srv against s under serviceDesc.
func RegisterEngineServer(s *grpc.Server, srv Engine) {
	s.RegisterService(&serviceDesc, srv)
}

// Server owns the listener and the underlying grpc.Server; it only
// ever forwards to the Engine implementation internal/wire supplies.
type Server struct {
	grpc *grpc.Server
}

// NewServer wraps engine behind a fresh grpc.Server speaking the JSON
// codec declared in codec.go.
func NewServer(engine Engine) *Server {
	s := grpc.NewServer()
	RegisterEngineServer(s, engine)
	return &Server{grpc: s}
}

// Serve blocks accepting connections on addr until the listener fails
// or GracefulStop is called.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	corelog.WithComponent("rpc").Info().Str("addr", addr).Msg("submission socket listening")
	return s.grpc.Serve(lis)
}

// GracefulStop stops accepting new RPCs and waits for in-flight ones to
// finish.
func (s *Server) GracefulStop() { s.grpc.GracefulStop() }
