package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aretw0/outline/pkg/session"
	"github.com/go-chi/chi/v5"
)

// SubscribeEvents handles GET /projects/{id}/events (SSE). Each session event is
// sent with its type as the SSE event name.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	projectID := chi.URLParam(r, "projectID")

	ch := make(chan session.Event, 16)
	cancel := s.Engine.Subscribe(projectID, func(ev session.Event) {
		select {
		case ch <- ev:
		default:
			// Drop message if channel is full (slow client)
			s.logger.Warn("SSE: Client buffer full, dropping event", "project_id", projectID, "type", ev.Type)
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: Subscribed", "project_id", projectID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected", "project_id", projectID)
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
