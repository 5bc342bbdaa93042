package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/motionv1"
)

// GRPCClient implements MotionClient using the gRPC transport.
type GRPCClient struct {
	conn   *grpc.ClientConn
	client *motionv1.MotionServiceClient
	token  string
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// Connections are plaintext unless opts supply transport credentials.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(UserAgent),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:   conn,
		client: motionv1.NewMotionServiceClient(conn),
		token:  token,
	}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) withAuth(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

func (c *GRPCClient) Send(ctx context.Context, s model.MotionSample) error {
	_, err := c.client.Report(c.withAuth(ctx), motionv1.SampleToStruct(s))
	return err
}

func (c *GRPCClient) Latest(ctx context.Context) (*model.Reading, error) {
	out, err := c.client.Latest(c.withAuth(ctx))
	if err != nil {
		return nil, err
	}
	return motionv1.ReadingFromStruct(out)
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	out, err := c.client.Health(ctx)
	if err != nil {
		return "", err
	}
	return out.GetFields()["status"].GetStringValue(), nil
}

func (c *GRPCClient) Watch(ctx context.Context, source string, fn func(*model.Reading)) error {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if source != "" {
		req.Fields["source"] = structpb.NewStringValue(source)
	}
	stream, err := c.client.Watch(c.withAuth(ctx), req)
	if err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		r, err := motionv1.ReadingFromStruct(msg)
		if err != nil {
			return err
		}
		fn(r)
	}
}

func isGRPCNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
