package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDMiddleware tags every request with an ID, reusing a well-formed
// inbound X-Request-ID and minting a UUID otherwise. The ID is echoed on the
// response and stored in the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		r.Header.Set(RequestIDHeader, id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestID returns the request ID stored by RequestIDMiddleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// accessLogFormatter returns a gorilla LogFormatter that writes access logs
// to logger instead of the handler's writer. Sample ingestion and health
// probes are logged at debug level since phones post many times a second.
func accessLogFormatter(logger *slog.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		level := slog.LevelInfo
		switch {
		case p.StatusCode >= http.StatusInternalServerError:
			level = slog.LevelError
		case p.URL.Path == "/motion" || p.URL.Path == "/v1/health" || p.URL.Path == "/metrics":
			level = slog.LevelDebug
		}
		logger.Log(p.Request.Context(), level, "http request",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"size", p.Size,
			"remote", p.Request.RemoteAddr,
			"request_id", p.Request.Header.Get(RequestIDHeader),
		)
	}
}

// recoveryLogger adapts slog to gorilla's RecoveryHandlerLogger.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("panic recovered in HTTP handler", "panic", strings.TrimSpace(fmt.Sprintln(v...)))
}

// corsMiddleware lets the reporter page be served from another origin
// during development.
func corsMiddleware() func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", RequestIDHeader, "Last-Event-ID"}),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
	)
}
