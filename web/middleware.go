package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jyothri/mailpilot/constants"
	"github.com/jyothri/mailpilot/db"
)

// Size limit constants
const (
	DefaultMaxBodySize       = 512 << 10 // 512 KB
	SendMaxBodySize          = 1 << 20   // 1 MB
	PushMaxBodySize          = 64 << 10  // 64 KB
	OAuthCallbackMaxBodySize = 16 << 10  // 16 KB
)

// Error codes carried in ErrorDetail.Code.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
	CodeInternal        = "INTERNAL"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)

// RequestSizeLimitMiddleware limits the size of request bodies
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// handleMaxBytesError checks if an error is due to request body being too large
func handleMaxBytesError(w http.ResponseWriter, r *http.Request, err error, maxBytes int64) bool {
	var maxBytesErr *http.MaxBytesError
	if !errors.As(err, &maxBytesErr) {
		return false
	}

	slog.Warn("Request body size limit exceeded",
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"method", r.Method,
		"path", r.URL.Path,
		"max_bytes", maxBytes,
		"max_human", formatBytes(maxBytes))

	writeErrorResponse(w, ErrorResponse{
		Error: ErrorDetail{
			Code:    CodePayloadTooLarge,
			Message: "Request body exceeds maximum allowed size",
			Details: map[string]interface{}{
				"max_size_bytes": maxBytes,
				"max_size_human": formatBytes(maxBytes),
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}, http.StatusRequestEntityTooLarge)
	return true
}

type ctxKey int

const sessionCtxKey ctxKey = 0

// requireSession resolves the caller's session from the session cookie or a
// bearer token and rejects the request with 401 when there is none.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := sessionKeyFromRequest(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Not authenticated")
			return
		}
		session, err := s.sessions.GetSession(r.Context(), key)
		if errors.Is(err, db.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Not authenticated")
			return
		}
		if err != nil {
			slog.Error("Failed to load session", "error", err)
			writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to load session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionCtxKey, session)))
	})
}

func sessionKeyFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if key, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(key)
		}
	}
	if cookie, err := r.Cookie(constants.SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func sessionFromContext(ctx context.Context) (db.Session, bool) {
	session, ok := ctx.Value(sessionCtxKey).(db.Session)
	return session, ok
}

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

func writeError(w http.ResponseWriter, statusCode int, code string, message string) {
	writeErrorResponse(w, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}, statusCode)
}

// writeErrorResponse writes a JSON error response
func writeErrorResponse(w http.ResponseWriter, errResp ErrorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	serializedBody, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal JSON", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if _, err := w.Write(serializedBody); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
