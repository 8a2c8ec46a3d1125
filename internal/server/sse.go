package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleStream serves the backtest's Server-Sent Events progress feed.
// Modeled on the teacher's unified events stream handler: SSE headers, a
// flusher check, and a read loop that exits the moment the client
// disconnects or the session closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	ch, ok := s.progress.Subscribe(sessionID)
	if !ok {
		http.Error(w, "no such backtest session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s.log.Info().Str("session_id", sessionID).Msg("client connected to backtest progress stream")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			frame, err := evt.Encode()
			if err != nil {
				s.log.Error().Err(err).Msg("failed to encode sse event")
				continue
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
