package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jyothri/mailpilot/constants"
	"github.com/jyothri/mailpilot/model"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const userId = "me"

var summaryHeaders = []string{"From", "Subject", "Date"}

// breaker is shared by every session: a Gmail outage is not per user.
var breaker = newBreaker("gmail")

// OAuthConfig returns the client configuration used both to link accounts
// and to mint access tokens from stored refresh tokens.
func OAuthConfig(clientId, clientSecret, redirectUrl string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		RedirectURL:  redirectUrl,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
}

type Gmail struct {
	svc       *gmail.Service
	throttler *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
}

type Option func(*Gmail)

func WithLimiter(l *rate.Limiter) Option {
	return func(g *Gmail) { g.throttler = l }
}

func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(g *Gmail) { g.breaker = cb }
}

func New(svc *gmail.Service, opts ...Option) *Gmail {
	g := &Gmail{
		svc:       svc,
		throttler: rate.NewLimiter(50, 5),
		breaker:   breaker,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func NewFromRefreshToken(ctx context.Context, config *oauth2.Config, refreshToken string) (*Gmail, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}
	tokenSrc := oauth2.Token{
		RefreshToken: refreshToken,
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(config.TokenSource(ctx, &tokenSrc)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return New(svc), nil
}

func (g *Gmail) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = constants.DefaultListSize
	}
	listCall := g.svc.Users.Messages.List(userId).MaxResults(maxResults)
	if opts.Query != "" {
		listCall = listCall.Q(opts.Query)
	} else {
		label := opts.Label
		if label == "" {
			label = constants.LabelInbox
		}
		listCall = listCall.LabelIds(label)
	}
	if opts.PageToken != "" {
		listCall = listCall.PageToken(opts.PageToken)
	}

	messageList, err := call(ctx, g.breaker, "list messages", func() (*gmail.ListMessagesResponse, error) {
		return listCall.Context(ctx).Do()
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list messages (label=%s, query=%s): %w", opts.Label, opts.Query, err)
	}
	if len(messageList.Messages) == 0 {
		return ListResult{Messages: []model.EmailSummary{}}, nil
	}

	return ListResult{
		Messages:      g.fetchSummaries(ctx, messageList.Messages),
		NextPageToken: messageList.NextPageToken,
	}, nil
}

// fetchSummaries loads metadata for every listed message in parallel. A
// message that cannot be loaded is skipped; the list still succeeds.
func (g *Gmail) fetchSummaries(ctx context.Context, refs []*gmail.Message) []model.EmailSummary {
	results := make([]*model.EmailSummary, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		if err := g.throttler.Wait(ctx); err != nil {
			slog.Warn("Rate limiter aborted message fetch", "message_id", ref.Id, "error", err)
			break
		}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			message, err := call(ctx, g.breaker, "get message metadata", func() (*gmail.Message, error) {
				return g.svc.Users.Messages.Get(userId, id).
					Format("metadata").
					MetadataHeaders(summaryHeaders...).
					Context(ctx).
					Do()
			})
			if err != nil {
				slog.Error("Failed to get message info, skipping",
					"message_id", id,
					"error", err)
				return
			}
			summary := toSummary(message)
			results[i] = &summary
		}(i, ref.Id)
	}
	wg.Wait()

	messages := make([]model.EmailSummary, 0, len(refs))
	for _, r := range results {
		if r != nil {
			messages = append(messages, *r)
		}
	}
	return messages
}

func (g *Gmail) Get(ctx context.Context, id string) (model.EmailDetail, error) {
	message, err := call(ctx, g.breaker, "get message", func() (*gmail.Message, error) {
		return g.svc.Users.Messages.Get(userId, id).Format("full").Context(ctx).Do()
	})
	if err != nil {
		slog.Warn("Failed to get message", "message_id", id, "error", err)
		return model.EmailDetail{}, ErrNotFound
	}
	return toDetail(message), nil
}

func (g *Gmail) Send(ctx context.Context, msg OutgoingMessage) (SendResult, error) {
	raw, err := buildRawMessage(msg)
	if err != nil {
		return SendResult{}, err
	}
	outgoing := &gmail.Message{Raw: raw}
	if msg.ThreadId != "" {
		outgoing.ThreadId = msg.ThreadId
	}
	sent, err := call(ctx, g.breaker, "send message", func() (*gmail.Message, error) {
		return g.svc.Users.Messages.Send(userId, outgoing).Context(ctx).Do()
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to send message to %s: %w", msg.To, err)
	}
	return SendResult{Id: sent.Id, ThreadId: sent.ThreadId}, nil
}

func (g *Gmail) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	_, err := call(ctx, g.breaker, "modify message", func() (*gmail.Message, error) {
		return g.svc.Users.Messages.Modify(userId, id, req).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("failed to modify labels of message %s: %w", id, err)
	}
	return nil
}

func (g *Gmail) Watch(ctx context.Context, topic string) (Subscription, error) {
	if topic == "" {
		return Subscription{}, fmt.Errorf("watch topic is empty")
	}
	req := &gmail.WatchRequest{
		TopicName: topic,
		LabelIds:  []string{constants.LabelInbox},
	}
	resp, err := call(ctx, g.breaker, "watch mailbox", func() (*gmail.WatchResponse, error) {
		return g.svc.Users.Watch(userId, req).Context(ctx).Do()
	})
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to watch topic %s: %w", topic, err)
	}
	return Subscription{
		HistoryId:  resp.HistoryId,
		Expiration: time.UnixMilli(resp.Expiration).UTC(),
	}, nil
}

func (g *Gmail) Identity(ctx context.Context) (string, error) {
	profile, err := call(ctx, g.breaker, "get profile", func() (*gmail.Profile, error) {
		return g.svc.Users.GetProfile(userId).Context(ctx).Do()
	})
	if err != nil {
		return "", fmt.Errorf("failed to get user profile from Gmail API: %w", err)
	}
	return profile.EmailAddress, nil
}

var _ Mailbox = (*Gmail)(nil)
