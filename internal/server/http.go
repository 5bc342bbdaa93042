package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, /v1/ requests (except GET /v1/health) must
// include a valid Authorization: Bearer <token> header.
func (s *MotionServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /motion", s.handleMotion)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/readings", s.handleListReadings)
	mux.HandleFunc("GET /v1/readings/latest", s.handleLatestReading)
	mux.HandleFunc("GET /v1/readings/{id}", s.handleGetReading)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/reporters", s.handleReporters)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.Handle("GET /", s.staticHandler())

	var h http.Handler = AuthMiddleware(authToken, mux)
	h = corsMiddleware()(h)
	h = s.metrics.instrument(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, accessLogFormatter(s.logger))
	h = RequestIDMiddleware(h)
	if s.trustProxy {
		h = handlers.ProxyHeaders(h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
}

// handleHealth handles GET /v1/health.
func (s *MotionServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
