package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/team-Plog/plog-sub000/pkg/stream"
)

// handleSSE streams one JSON Snapshot every 5s for job_name, per
// spec's realtime stream: the connection tears down only when the client
// disconnects, never on a metrics-store failure (the emitter already
// degrades those to a zero snapshot with an error field).
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	jobName := chi.URLParam(r, "job_name")
	include := stream.ParseInclude(r.URL.Query().Get("include"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connID := uuid.NewString()
	s.metrics.ActiveStreamCount.Inc()
	defer s.metrics.ActiveStreamCount.Dec()

	log := s.log.WithField("job", jobName).WithField("connection_id", connID)
	log.Info("sse connection opened")
	defer log.Info("sse connection closed")

	s.emitter.Stream(r.Context(), jobName, include, func(snapshot stream.Snapshot) {
		body, err := json.Marshal(snapshot)
		if err != nil {
			log.WithError(err).Warn("failed to marshal sse snapshot")
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
			return
		}
		flusher.Flush()
	})
}
