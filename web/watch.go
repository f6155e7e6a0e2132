package web

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jyothri/mailpilot/db"
	"github.com/jyothri/mailpilot/mailbox"
)

// Gmail watches lapse after seven days unless renewed.
const renewBefore = 24 * time.Hour

func (s *Server) watch(ctx context.Context, mb mailbox.Mailbox, session db.Session, topic string) (mailbox.Subscription, error) {
	sub, err := mb.Watch(ctx, topic)
	if err != nil {
		return mailbox.Subscription{}, err
	}
	err = s.sessions.SaveWatch(ctx, db.Watch{
		ClientKey:  session.ClientKey,
		Email:      session.Email,
		Topic:      topic,
		HistoryId:  int64(sub.HistoryId),
		Expiration: sub.Expiration,
	})
	if err != nil {
		return mailbox.Subscription{}, fmt.Errorf("failed to record watch: %w", err)
	}
	slog.Info("Watching mailbox",
		"client_key", session.ClientKey,
		"topic", topic,
		"history_id", sub.HistoryId,
		"expiration", sub.Expiration)
	return sub, nil
}

// RenewWatches re-issues every recorded watch that lapses within a day and
// returns how many were renewed. A watch that fails to renew is logged and
// skipped.
func (s *Server) RenewWatches(ctx context.Context) (int, error) {
	watches, err := s.sessions.ExpiringWatches(ctx, time.Now().Add(renewBefore))
	if err != nil {
		return 0, err
	}
	renewed := 0
	for _, w := range watches {
		session, err := s.sessions.GetSession(ctx, w.ClientKey)
		if err != nil {
			slog.Warn("Skipping watch renewal", "client_key", w.ClientKey, "error", err)
			continue
		}
		mb, err := s.mailboxFor(ctx, session)
		if err != nil {
			slog.Warn("Skipping watch renewal", "client_key", w.ClientKey, "error", err)
			continue
		}
		if _, err := s.watch(ctx, mb, session, w.Topic); err != nil {
			slog.Error("Failed to renew watch", "client_key", w.ClientKey, "topic", w.Topic, "error", err)
			continue
		}
		renewed++
	}
	return renewed, nil
}

// RunWatchRenewal calls RenewWatches every interval until ctx is done.
func (s *Server) RunWatchRenewal(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := s.RenewWatches(ctx); err != nil {
			slog.Error("Failed to renew watches", "error", err)
		} else if n > 0 {
			slog.Info("Renewed watches", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
