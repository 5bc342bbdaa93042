// Package motionv1 defines the motion.v1.MotionService gRPC contract.
//
// Messages are protobuf well-known types (structpb.Struct, emptypb.Empty),
// so the service needs no generated code. Field names match the JSON shapes
// served over HTTP.
package motionv1

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "motion.v1.MotionService"

// Full method names, as seen by interceptors.
const (
	MethodReport = "/" + ServiceName + "/Report"
	MethodLatest = "/" + ServiceName + "/Latest"
	MethodHealth = "/" + ServiceName + "/Health"
	MethodWatch  = "/" + ServiceName + "/Watch"
)

// MotionServiceServer is the server API for MotionService.
type MotionServiceServer interface {
	// Report records a sample {"x","y","z"} and returns the stored reading.
	Report(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Latest returns the most recent reading.
	Latest(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Watch streams readings as they arrive. An optional "source" field
	// restricts the stream to one reporter.
	Watch(*structpb.Struct, grpc.ServerStream) error
}

// RegisterMotionServiceServer registers srv on s.
func RegisterMotionServiceServer(s grpc.ServiceRegistrar, srv MotionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for MotionService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MotionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Report", Handler: reportHandler},
		{MethodName: "Latest", Handler: latestHandler},
		{MethodName: "Health", Handler: healthHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "motion/v1/motion.proto",
}

func reportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MotionServiceServer).Report(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodReport}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MotionServiceServer).Report(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func latestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MotionServiceServer).Latest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodLatest}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MotionServiceServer).Latest(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MotionServiceServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodHealth}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MotionServiceServer).Health(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MotionServiceServer).Watch(in, stream)
}

// MotionServiceClient is the client API for MotionService.
type MotionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMotionServiceClient returns a client over cc.
func NewMotionServiceClient(cc grpc.ClientConnInterface) *MotionServiceClient {
	return &MotionServiceClient{cc: cc}
}

func (c *MotionServiceClient) Report(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodReport, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MotionServiceClient) Latest(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodLatest, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MotionServiceClient) Health(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodHealth, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens a server stream of readings. Receive with RecvMsg into a
// *structpb.Struct until it returns an error (io.EOF on a clean close).
func (c *MotionServiceClient) Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatch, opts...)
	if err != nil {
		return nil, err
	}
	// io.EOF means the server already ended the stream; RecvMsg reports why.
	if err := stream.SendMsg(in); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}
