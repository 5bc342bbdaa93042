package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/motionrelay/internal/model"
)

// maxMotionBody bounds a sample request body. A sample is three numbers.
const maxMotionBody = 4 << 10

// defaultRosterStale hides reporters silent for longer than this from
// GET /v1/reporters unless stale_threshold_secs overrides it.
const defaultRosterStale = 30 * time.Minute

// handleMotion handles POST /motion.
func (s *MotionServer) handleMotion(w http.ResponseWriter, r *http.Request) {
	source := clientSource(r)

	var acc model.Acceleration
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMotionBody)).Decode(&acc); err != nil {
		s.Reject(r.Context(), source, "malformed", err.Error())
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := s.Ingest(r.Context(), &acc, source, r.UserAgent()); err != nil {
		if isInputError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("ingest failed", "source", source, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to record sample")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListReadings handles GET /v1/readings.
func (s *MotionServer) handleListReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ReadingFilter{Source: q.Get("source")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}

	readings, total, err := s.store.ListReadings(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list readings")
		return
	}
	if readings == nil {
		readings = []*model.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings, "total": total})
}

// handleLatestReading handles GET /v1/readings/latest.
func (s *MotionServer) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := s.store.LatestReading(r.Context())
	s.writeReading(w, reading, err)
}

// handleGetReading handles GET /v1/readings/{id}.
func (s *MotionServer) handleGetReading(w http.ResponseWriter, r *http.Request) {
	reading, err := s.store.GetReading(r.Context(), r.PathValue("id"))
	s.writeReading(w, reading, err)
}

func (s *MotionServer) writeReading(w http.ResponseWriter, reading *model.Reading, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "reading not found")
	case err != nil:
		s.logger.Error("get reading failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get reading")
	default:
		writeJSON(w, http.StatusOK, reading)
	}
}

// handleStats handles GET /v1/stats.
func (s *MotionServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleReporters handles GET /v1/reporters.
func (s *MotionServer) handleReporters(w http.ResponseWriter, r *http.Request) {
	stale := defaultRosterStale
	if v := r.URL.Query().Get("stale_threshold_secs"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			stale = time.Duration(secs) * time.Second
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reporters": s.Presence.Roster(stale)})
}

// clientSource returns the request's client host without port.
func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// ProxyHeaders rewrites RemoteAddr to a bare host.
		return r.RemoteAddr
	}
	return host
}
