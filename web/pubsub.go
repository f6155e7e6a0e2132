package web

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jyothri/mailpilot/notification"
)

func (s *Server) pubsub(r *mux.Router) {
	r.Handle("/api/gmail/pubsub", limit(PushMaxBodySize, s.PushHandler)).Methods("POST")
}

// PushHandler receives Gmail change notifications from Pub/Sub and relays them
// to every open stream.
func (s *Server) PushHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.VerificationToken != "" {
		token := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.VerificationToken)) != 1 {
			slog.Warn("Rejected push with bad verification token", "remote_addr", r.RemoteAddr)
			writeError(w, http.StatusForbidden, CodeForbidden, "Invalid verification token")
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if handleMaxBytesError(w, r, err, PushMaxBodySize) {
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Failed to read request body")
		return
	}

	event, err := notification.DecodePush(body)
	if err != nil {
		slog.Warn("Rejected malformed push", "error", err)
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid push message")
		return
	}

	delivered := s.hub.Broadcast(event)
	slog.Info("Relayed mailbox change",
		"email", event.EmailAddress,
		"history_id", event.HistoryId,
		"delivered", delivered)
	writeJSONResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}
