package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jyothri/mailpilot/notification"
)

// streamBuffer is how many events a slow stream may lag before it is dropped.
const streamBuffer = 16

func (s *Server) sse(r *mux.Router) {
	r.HandleFunc("/api/gmail/stream", s.StreamHandler).Methods("GET")
}

// StreamHandler relays mailbox change events to the client until it goes
// away. The first frame is always the connected acknowledgement.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	rc.SetWriteDeadline(time.Time{})
	clientGone := r.Context().Done()

	sub := notification.NewChannelSubscriber(streamBuffer)
	s.hub.Register(sub)
	defer func() {
		s.hub.Unregister(sub)
		sub.Close()
	}()

	slog.Info("Stream client connected", "remote_addr", r.RemoteAddr)
	start := time.Now()
	for {
		select {
		case <-clientGone:
			slog.Info("Stream client disconnected", "remote_addr", r.RemoteAddr, "duration", time.Since(start))
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				slog.Warn("Unable to write stream event", "remote_addr", r.RemoteAddr, "error", err)
				return
			}
			rc.SetWriteDeadline(time.Time{})
			rc.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event notification.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %s\ndata: %s\n\n", uuid.NewString(), data)
	return err
}
