// Package realtime keeps the client store in step with the server's event
// stream.
package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jyothri/mailpilot/notification"
)

const DefaultReconnectDelay = 5 * time.Second

// Refresher is told when the server has seen new mail.
type Refresher interface {
	TriggerRefresh()
}

type Sync struct {
	streamUrl  string
	refresher  Refresher
	delay      time.Duration
	httpClient *http.Client
}

func New(serverUrl string, refresher Refresher, delay time.Duration) *Sync {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Sync{
		streamUrl: strings.TrimRight(serverUrl, "/") + "/api/gmail/stream",
		refresher: refresher,
		delay:     delay,
		// No timeout: the stream stays open for as long as the server allows.
		httpClient: &http.Client{},
	}
}

// Run follows the stream until ctx is cancelled, reconnecting after a fixed
// delay whenever the connection fails or ends.
func (s *Sync) Run(ctx context.Context) {
	for {
		err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("Event stream failed, reconnecting", "delay", s.delay, "error", err)
		} else {
			slog.Info("Event stream ended, reconnecting", "delay", s.delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.delay):
		}
	}
}

func (s *Sync) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamUrl, nil)
	if err != nil {
		return fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", s.streamUrl, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}
	return s.consume(resp.Body)
}

// consume reads frames until the body ends. Only data lines are used; ids,
// comments and blank separators are skipped.
func (s *Sync) consume(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		s.handle(strings.TrimSpace(data))
	}
	return scanner.Err()
}

func (s *Sync) handle(data string) {
	var event notification.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		slog.Warn("Skipping unparsable stream event", "data", data, "error", err)
		return
	}
	switch event.Type {
	case notification.EventConnected:
		slog.Info("Connected to event stream")
	case notification.EventNewEmail:
		slog.Debug("New email notification", "email", event.EmailAddress, "history_id", event.HistoryId)
		s.refresher.TriggerRefresh()
	default:
		slog.Debug("Ignoring stream event", "type", event.Type)
	}
}
