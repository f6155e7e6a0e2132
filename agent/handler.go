package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const maxArgsSize = 1 << 20

type invokeResponse struct {
	Result string `json:"result"`
}

// NewHandler binds the surface to HTTP:
//
//	GET  /actions         catalog
//	POST /actions/{name}  invoke with a JSON object of arguments
//	GET  /context         what the agent can see
func NewHandler(s *Surface) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/actions", s.listActionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/actions/{name}", s.invokeHandler).Methods(http.MethodPost)
	r.HandleFunc("/context", s.contextHandler).Methods(http.MethodGet)
	return r
}

func (s *Surface) listActionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Actions())
}

func (s *Surface) contextHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Context())
}

func (s *Surface) invokeHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := s.Lookup(name); !ok {
		writeJSON(w, http.StatusNotFound, invokeResponse{Result: s.Invoke(r.Context(), name, nil)})
		return
	}

	var args Args
	r.Body = http.MaxBytesReader(w, r.Body, maxArgsSize)
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Malformed agent arguments", "action", name, "error", err)
		writeJSON(w, http.StatusBadRequest, invokeResponse{
			Result: fmt.Sprintf("Invalid arguments for %s: arguments must be a JSON object", name),
		})
		return
	}
	writeJSON(w, http.StatusOK, invokeResponse{Result: s.Invoke(r.Context(), name, args)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode agent response", "error", err)
	}
}

// ListenAndServe serves the surface on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, s *Surface) error {
	slog.Info("Starting agent server.", "addr", addr)
	srv := &http.Server{
		Handler:     NewHandler(s),
		Addr:        addr,
		ReadTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("agent server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down agent server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
