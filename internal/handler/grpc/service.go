package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "geoalloc.v1.AllocationService"

const (
	lookupMethod = "/" + ServiceName + "/Lookup"
	checkMethod  = "/" + ServiceName + "/Check"
)

// AllocationServiceServer is the server API of the allocation service.
// Messages are well-known protobuf types so no generated code is needed.
type AllocationServiceServer interface {
	Lookup(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Check(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the allocation service for grpc.Server.
var ServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AllocationServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "Lookup", Handler: lookupHandler},
		{MethodName: "Check", Handler: checkHandler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "geoalloc/v1/allocation.proto",
}

// Register adds srv to s.
func Register(s grpclib.ServiceRegistrar, srv AllocationServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func lookupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServiceServer).Lookup(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: lookupMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AllocationServiceServer).Lookup(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func checkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServiceServer).Check(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: checkMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AllocationServiceServer).Check(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the allocation service over a client connection.
type Client struct {
	cc grpclib.ClientConnInterface
}

// NewClient creates a client using cc.
func NewClient(cc grpclib.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Lookup resolves ip on the remote service.
func (c *Client) Lookup(ctx context.Context, ip string, opts ...grpclib.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, lookupMethod, wrapperspb.String(ip), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Check asks the remote service whether ip is in one of the allowed countries.
func (c *Client) Check(ctx context.Context, ip string, allowed []string, opts ...grpclib.CallOption) (*structpb.Struct, error) {
	countries := make([]any, len(allowed))
	for i, ac := range allowed {
		countries[i] = ac
	}
	in, err := structpb.NewStruct(map[string]any{
		"ip":                ip,
		"allowed_countries": countries,
	})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, checkMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
