package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// -----------------------------------------------------------------------------
// Service descriptor for marketagent.Control. Messages are well-known protobuf
// types so no generated code is needed.
// -----------------------------------------------------------------------------

const (
	ServiceName         = "marketagent.Control"
	submitFullMethod    = "/" + ServiceName + "/Submit"
	statusFullMethod    = "/" + ServiceName + "/Status"
	RequestIDTrailerKey = "x-request-id"
)

// ControlServer is the server API for marketagent.Control
type ControlServer interface {
	// Submit runs {message, request_id?} and returns the request id
	Submit(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	// Status reports relay and agent state
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&Control_ServiceDesc, srv)
}

var Control_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: _Control_Submit_Handler},
		{MethodName: "Status", Handler: _Control_Status_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketagent/control",
}

func _Control_Submit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).Submit(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Control_Status_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: statusFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func (c *ControlClient) Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, submitFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, statusFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
