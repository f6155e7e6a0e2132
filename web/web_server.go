package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jyothri/mailpilot/db"
	"github.com/jyothri/mailpilot/mailbox"
	"github.com/jyothri/mailpilot/notification"
	"github.com/rs/cors"
	"golang.org/x/oauth2"
)

type Options struct {
	Addr         string
	FrontendUrl  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	OAuth        *oauth2.Config
	// PubsubTopic is watched when a watch request names no topic.
	PubsubTopic string
	// VerificationToken, when set, must match the push endpoint's token
	// query parameter.
	VerificationToken string
}

// SessionStore is the persistence the HTTP layer needs; *db.Store satisfies it.
type SessionStore interface {
	SaveSession(ctx context.Context, session db.Session) error
	GetSession(ctx context.Context, clientKey string) (db.Session, error)
	DeleteSession(ctx context.Context, clientKey string) error
	SaveWatch(ctx context.Context, watch db.Watch) error
	GetWatch(ctx context.Context, clientKey string) (db.Watch, error)
	ExpiringWatches(ctx context.Context, before time.Time) ([]db.Watch, error)
}

// MailboxFactory opens the mailbox a session's refresh token grants access to.
type MailboxFactory func(ctx context.Context, session db.Session) (mailbox.Mailbox, error)

// GmailMailboxes opens sessions against the real Gmail API.
func GmailMailboxes(config *oauth2.Config) MailboxFactory {
	return func(ctx context.Context, session db.Session) (mailbox.Mailbox, error) {
		return mailbox.NewFromRefreshToken(ctx, config, session.RefreshToken)
	}
}

type tokenExchanger func(ctx context.Context, code string) (*oauth2.Token, error)

type Server struct {
	opts       Options
	sessions   SessionStore
	mailboxFor MailboxFactory
	hub        *notification.Hub
	exchange   tokenExchanger
}

func NewServer(opts Options, sessions SessionStore, hub *notification.Hub, mailboxFor MailboxFactory) *Server {
	s := &Server{
		opts:       opts,
		sessions:   sessions,
		mailboxFor: mailboxFor,
		hub:        hub,
	}
	if opts.OAuth != nil {
		s.exchange = func(ctx context.Context, code string) (*oauth2.Token, error) {
			return opts.OAuth.Exchange(ctx, code)
		}
	}
	return s
}

// Handler returns the full route tree wrapped in CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.sse(r)
	s.pubsub(r)
	s.oauth(r)
	s.api(r)
	options := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}
	if s.opts.FrontendUrl != "" {
		options.AllowedOrigins = []string{s.opts.FrontendUrl}
	}
	return cors.New(options).Handler(r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	slog.Info("Starting web server.", "addr", s.opts.Addr)
	srv := &http.Server{
		Handler:      s.Handler(),
		Addr:         s.opts.Addr,
		WriteTimeout: s.opts.WriteTimeout,
		ReadTimeout:  s.opts.ReadTimeout,
		// Open streams end when ctx does.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server stopped: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down web server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
