package server

import (
	"context"
	"encoding/json"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/motionrelay/internal/events"
	"github.com/alfredjeanlab/motionrelay/internal/motionv1"
)

// NewGRPCServer serves ms over gRPC alongside the standard health service
// and reflection. Calls are logged and counted in ms's metrics.
func NewGRPCServer(ms *MotionServer, authToken string) *grpc.Server {
	obs := rpcObserver{logger: ms.logger, metrics: ms.metrics}
	auth := bearerAuth(authToken)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(obs.unary, auth.unary),
		grpc.ChainStreamInterceptor(obs.stream, auth.stream),
	)

	motionv1.RegisterMotionServiceServer(srv, ms)

	hs := health.NewServer()
	hs.SetServingStatus(motionv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)

	return srv
}

// Report records a sample sent over gRPC.
func (s *MotionServer) Report(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := s.Ingest(ctx, motionv1.AccelerationFromStruct(req), peerSource(ctx), metadataValue(ctx, "user-agent"))
	if err != nil {
		return nil, grpcError(err)
	}
	return motionv1.ReadingToStruct(r), nil
}

// Latest returns the most recently recorded reading.
func (s *MotionServer) Latest(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	r, err := s.store.LatestReading(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return motionv1.ReadingToStruct(r), nil
}

// Health returns the server health status.
func (s *MotionServer) Health(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "ok"})
}

// Watch streams accepted readings until the client goes away, optionally
// for one source and at most max_rate per second. Watchers that fall behind
// lose readings rather than stalling ingestion.
func (s *MotionServer) Watch(req *structpb.Struct, stream grpc.ServerStream) error {
	fields := req.GetFields()
	gap, err := sampleGap(fields["max_rate"].GetNumberValue())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	w := s.hub.subscribe(streamFilter{
		topics:       []string{events.TopicSampleReceived},
		source:       fields["source"].GetStringValue(),
		minSampleGap: gap,
	})
	defer s.hub.unsubscribe(w)

	streams := s.metrics.streamClients.WithLabelValues("grpc")
	streams.Inc()
	defer streams.Dec()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-w.ch:
			var ev events.SampleReceived
			if err := json.Unmarshal(e.Data, &ev); err != nil || ev.Reading == nil {
				s.logger.Warn("dropping undecodable watch event", "id", e.ID, "err", err)
				continue
			}
			if err := stream.SendMsg(motionv1.ReadingToStruct(ev.Reading)); err != nil {
				return err
			}
		}
	}
}

// grpcError maps domain errors onto gRPC status codes.
func grpcError(err error) error {
	switch {
	case isNotFound(err):
		return status.Error(codes.NotFound, "no readings yet")
	case isInputError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}

// peerSource returns the caller's host, without port.
func peerSource(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
