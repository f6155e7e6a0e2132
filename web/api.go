package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jyothri/mailpilot/constants"
	"github.com/jyothri/mailpilot/db"
	"github.com/jyothri/mailpilot/mailbox"
)

// maxListResults is the largest page Gmail serves.
const maxListResults = 500

func (s *Server) api(r *mux.Router) {
	api := r.PathPrefix("/api/").Subrouter()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, map[string]bool{"ok": true}, http.StatusOK)
	}).Methods("GET")

	gmail := api.PathPrefix("/gmail").Subrouter()
	gmail.Use(s.requireSession)
	gmail.Handle("/messages", limit(DefaultMaxBodySize, s.ListMessagesHandler)).Methods("GET")
	gmail.Handle("/messages/{id}", limit(DefaultMaxBodySize, s.GetMessageHandler)).Methods("GET")
	gmail.Handle("/messages/{id}/modify", limit(DefaultMaxBodySize, s.ModifyMessageHandler)).Methods("POST")
	gmail.Handle("/send", limit(SendMaxBodySize, s.SendHandler)).Methods("POST")
	gmail.Handle("/watch", limit(DefaultMaxBodySize, s.WatchHandler)).Methods("POST")
	gmail.Handle("/watch", limit(DefaultMaxBodySize, s.WatchStatusHandler)).Methods("GET")
}

func limit(maxBytes int64, h http.HandlerFunc) http.Handler {
	return RequestSizeLimitMiddleware(maxBytes)(h)
}

// openMailbox resolves the request's mailbox, writing the error response
// itself when that fails.
func (s *Server) openMailbox(w http.ResponseWriter, r *http.Request) (mailbox.Mailbox, db.Session, bool) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Not authenticated")
		return nil, db.Session{}, false
	}
	mb, err := s.mailboxFor(r.Context(), session)
	if err != nil {
		slog.Error("Failed to open mailbox", "client_key", session.ClientKey, "error", err)
		writeError(w, http.StatusInternalServerError, CodeUpstreamFailure, "Failed to open mailbox")
		return nil, db.Session{}, false
	}
	return mb, session, true
}

func (s *Server) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := mailbox.ListOptions{
		Label:     query.Get("label"),
		Query:     query.Get("q"),
		PageToken: query.Get("pageToken"),
	}
	if raw := query.Get("maxResults"); raw != "" {
		maxResults, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || maxResults < 1 {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "maxResults must be a positive integer")
			return
		}
		opts.MaxResults = min(maxResults, maxListResults)
	}

	mb, _, ok := s.openMailbox(w, r)
	if !ok {
		return
	}
	result, err := mb.List(r.Context(), opts)
	if err != nil {
		slog.Error("Failed to list messages",
			"label", opts.Label,
			"query", opts.Query,
			"error", err)
		writeError(w, http.StatusInternalServerError, CodeUpstreamFailure, "Failed to fetch messages")
		return
	}
	writeJSONResponse(w, result, http.StatusOK)
}

func (s *Server) GetMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if len(id) < constants.MinMessageIdLength {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid message ID")
		return
	}

	mb, _, ok := s.openMailbox(w, r)
	if !ok {
		return
	}
	detail, err := mb.Get(r.Context(), id)
	if errors.Is(err, mailbox.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Message not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get message", "message_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, CodeUpstreamFailure, "Failed to fetch message")
		return
	}
	writeJSONResponse(w, detail, http.StatusOK)
}

func (s *Server) SendHandler(w http.ResponseWriter, r *http.Request) {
	var req mailbox.OutgoingMessage
	err := json.NewDecoder(r.Body).Decode(&req)
	if handleMaxBytesError(w, r, err, SendMaxBodySize) {
		return
	}
	if err != nil {
		slog.Warn("Failed to decode send request", "error", err)
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Subject) == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Missing required fields: to, subject")
		return
	}

	mb, session, ok := s.openMailbox(w, r)
	if !ok {
		return
	}
	result, err := mb.Send(r.Context(), req)
	if err != nil {
		slog.Error("Failed to send message",
			"client_key", session.ClientKey,
			"thread_id", req.ThreadId,
			"error", err)
		writeError(w, http.StatusInternalServerError, CodeUpstreamFailure, "Failed to send email")
		return
	}
	slog.Info("Sent message", "message_id", result.Id, "thread_id", result.ThreadId)
	writeJSONResponse(w, result, http.StatusOK)
}

type ModifyRequest struct {
	AddLabelIds    []string `json:"addLabelIds"`
	RemoveLabelIds []string `json:"removeLabelIds"`
}

func (s *Server) ModifyMessageHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if len(id) < constants.MinMessageIdLength {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid message ID")
		return
	}
	var req ModifyRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if handleMaxBytesError(w, r, err, DefaultMaxBodySize) {
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body")
		return
	}
	if len(req.AddLabelIds) == 0 && len(req.RemoveLabelIds) == 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "No label changes requested")
		return
	}

	mb, _, ok := s.openMailbox(w, r)
	if !ok {
		return
	}
	if err := mb.ModifyLabels(r.Context(), id, req.AddLabelIds, req.RemoveLabelIds); err != nil {
		slog.Error("Failed to modify message labels", "message_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, CodeUpstreamFailure, "Failed to modify message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type WatchRequest struct {
	Topic string `json:"topic"`
}

type WatchResponse struct {
	Topic      string `json:"topic,omitempty"`
	HistoryId  string `json:"historyId"`
	Expiration string `json:"expiration"`
}

func (s *Server) WatchHandler(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if handleMaxBytesError(w, r, err, DefaultMaxBodySize) {
		return
	}
	// An empty body watches the configured topic.
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body")
		return
	}
	topic := req.Topic
	if topic == "" {
		topic = s.opts.PubsubTopic
	}
	if topic == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "No Pub/Sub topic configured")
		return
	}

	mb, session, ok := s.openMailbox(w, r)
	if !ok {
		return
	}
	sub, err := s.watch(r.Context(), mb, session, topic)
	if err != nil {
		slog.Error("Failed to watch mailbox", "client_key", session.ClientKey, "topic", topic, "error", err)
		writeError(w, http.StatusInternalServerError, CodeUpstreamFailure, "Failed to watch mailbox")
		return
	}
	writeJSONResponse(w, WatchResponse{
		HistoryId:  strconv.FormatUint(sub.HistoryId, 10),
		Expiration: sub.Expiration.UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// WatchStatusHandler reports the subscription last recorded for the session.
func (s *Server) WatchStatusHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Not authenticated")
		return
	}
	watch, err := s.sessions.GetWatch(r.Context(), session.ClientKey)
	if errors.Is(err, db.ErrWatchNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Mailbox is not watched")
		return
	}
	if err != nil {
		slog.Error("Failed to read watch", "client_key", session.ClientKey, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to read watch")
		return
	}
	writeJSONResponse(w, WatchResponse{
		Topic:      watch.Topic,
		HistoryId:  strconv.FormatInt(watch.HistoryId, 10),
		Expiration: watch.Expiration.UTC().Format(time.RFC3339),
	}, http.StatusOK)
}
