package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/motionrelay/internal/motionv1"
)

var (
	errNoAuthHeader = errors.New("missing authorization header")
	errAuthScheme   = errors.New("invalid authorization scheme")
	errBadToken     = errors.New("invalid token")
)

// bearerAuth guards the read API with a shared token. The zero value allows
// everything. Reporters and health checks never need the token.
type bearerAuth string

func (a bearerAuth) check(header string) error {
	if header == "" {
		return errNoAuthHeader
	}
	got, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errAuthScheme
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(a)) != 1 {
		return errBadToken
	}
	return nil
}

func (a bearerAuth) checkRPC(ctx context.Context) error {
	if a == "" {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	var header string
	if vals := md.Get("authorization"); len(vals) > 0 {
		header = vals[0]
	}
	if err := a.check(header); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return nil
}

func (a bearerAuth) unary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if info.FullMethod != motionv1.MethodHealth {
		if err := a.checkRPC(ctx); err != nil {
			return nil, err
		}
	}
	return handler(ctx, req)
}

func (a bearerAuth) stream(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := a.checkRPC(ss.Context()); err != nil {
		return err
	}
	return handler(srv, ss)
}

// AuthMiddleware requires the bearer token on /v1/ routes except
// GET /v1/health. POST /motion and the reporter page stay open.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	auth := bearerAuth(token)
	if auth == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		open := !strings.HasPrefix(r.URL.Path, "/v1/") ||
			(r.Method == http.MethodGet && r.URL.Path == "/v1/health")
		if !open {
			if err := auth.check(r.Header.Get("Authorization")); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// rpcObserver turns handler panics into codes.Internal, then logs and
// counts every call.
type rpcObserver struct {
	logger  *slog.Logger
	metrics *Metrics
}

func (o rpcObserver) unary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	start := time.Now()
	defer func() { o.finish(info.FullMethod, start, recover(), &err) }()
	return handler(ctx, req)
}

func (o rpcObserver) stream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	start := time.Now()
	defer func() { o.finish(info.FullMethod, start, recover(), &err) }()
	return handler(srv, ss)
}

func (o rpcObserver) finish(method string, start time.Time, panicked any, err *error) {
	if panicked != nil {
		o.logger.Error("panic in gRPC handler", "method", method,
			"panic", fmt.Sprint(panicked), "stack", string(debug.Stack()))
		*err = status.Error(codes.Internal, "internal server error")
	}
	code := status.Code(*err)
	o.metrics.rpcs.WithLabelValues(method, code.String()).Inc()

	attrs := []any{"method", method, "code", code.String(), "duration", time.Since(start)}
	switch {
	case code == codes.Internal || code == codes.Unknown:
		o.logger.Error("rpc failed", append(attrs, "err", *err)...)
	case *err != nil:
		o.logger.Info("rpc rejected", append(attrs, "err", *err)...)
	case method == motionv1.MethodReport || method == motionv1.MethodHealth:
		o.logger.Debug("rpc completed", attrs...)
	default:
		o.logger.Info("rpc completed", attrs...)
	}
}
