package web

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jyothri/mailpilot/constants"
	"github.com/jyothri/mailpilot/db"
	"golang.org/x/oauth2"
)

const stateTTL = 10 * time.Minute

func (s *Server) oauth(r *mux.Router) {
	// OAuth routes with smaller body limit (16 KB)
	oauthRouter := r.PathPrefix("/api/auth").Subrouter()
	oauthRouter.Use(RequestSizeLimitMiddleware(OAuthCallbackMaxBodySize))
	oauthRouter.HandleFunc("/login", s.LoginHandler).Methods("GET")
	oauthRouter.HandleFunc("/callback", s.CallbackHandler).Methods("GET")
	oauthRouter.Handle("/me", s.requireSession(http.HandlerFunc(s.MeHandler))).Methods("GET")
	oauthRouter.Handle("/logout", s.requireSession(http.HandlerFunc(s.LogoutHandler))).Methods("POST")
}

// LoginHandler starts the Google account linking flow.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.OAuth == nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "OAuth is not configured")
		return
	}
	state, err := generateRandomString(24)
	if err != nil {
		slog.Error("Failed to generate oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to start account linking")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     constants.StateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// Offline access with forced consent so Google always returns a refresh token.
	authUrl := s.opts.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	http.Redirect(w, r, authUrl, http.StatusFound)
}

type LinkResponse struct {
	SessionKey  string `json:"sessionKey"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// CallbackHandler exchanges the authorization code, stores the session and
// hands its key to the caller as a cookie and in the response body.
func (s *Server) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if s.exchange == nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "OAuth is not configured")
		return
	}
	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		slog.Warn("Account linking was declined", "error", errParam)
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Account linking was declined: "+errParam)
		return
	}
	stateCookie, err := r.Cookie(constants.StateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(query.Get("state"))) != 1 {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "OAuth state mismatch")
		return
	}
	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "code not found in request")
		return
	}

	token, err := s.exchange(r.Context(), code)
	if err != nil {
		slog.Error("Failed to exchange authorization code", "error", err)
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Failed to exchange authorization code")
		return
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		slog.Warn("Access or Refresh token could not be obtained", "token_type", token.TokenType)
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Access or Refresh token could not be obtained")
		return
	}

	clientKey, err := generateRandomString(constants.SessionKeyLen)
	if err != nil {
		slog.Error("Failed to generate session key", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to save account information")
		return
	}
	session := db.Session{
		ClientKey:    clientKey,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		session.Scope = scope
	}

	mb, err := s.mailboxFor(r.Context(), session)
	if err != nil {
		slog.Error("Failed to open mailbox for new session", "error", err)
		writeError(w, http.StatusInternalServerError, CodeUpstreamFailure, "Failed to verify account")
		return
	}
	email, err := mb.Identity(r.Context())
	if err != nil {
		slog.Error("Failed to get user identity", "error", err)
		writeError(w, http.StatusInternalServerError, CodeUpstreamFailure, "Failed to verify account")
		return
	}
	session.Email = email
	session.DisplayName = getDisplayName(email, clientKey)

	if err := s.sessions.SaveSession(r.Context(), session); err != nil {
		slog.Error("Failed to save session",
			"client_key", clientKey,
			"error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to save account information")
		return
	}
	slog.Info("Linked account", "display_name", session.DisplayName)

	http.SetCookie(w, &http.Cookie{Name: constants.StateCookie, Value: "", Path: "/api/auth", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{
		Name:     constants.SessionCookie,
		Value:    clientKey,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if s.opts.FrontendUrl != "" {
		http.Redirect(w, r, s.opts.FrontendUrl, http.StatusFound)
		return
	}
	writeJSONResponse(w, LinkResponse{
		SessionKey:  clientKey,
		Email:       email,
		DisplayName: session.DisplayName,
	}, http.StatusOK)
}

func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	writeJSONResponse(w, map[string]string{
		"email":       session.Email,
		"displayName": session.DisplayName,
	}, http.StatusOK)
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	err := s.sessions.DeleteSession(r.Context(), session.ClientKey)
	if err != nil && !errors.Is(err, db.ErrSessionNotFound) {
		slog.Error("Failed to delete session", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to log out")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: constants.SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func getDisplayName(email string, client_key string) string {
	if email == "" || !strings.Contains(email, "@") {
		return client_key
	}
	username := email[0:strings.Index(email, "@")]
	if len(username) < 6 {
		return client_key
	}
	return username[0:3] + "****" + username[len(username)-2:] + email[strings.Index(email, "@"):]
}

// sessionChars has 64 symbols so every random byte maps onto it evenly.
const sessionChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890-_"

func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i := range b {
		b[i] = sessionChars[int(b[i])%len(sessionChars)]
	}
	return string(b), nil
}
