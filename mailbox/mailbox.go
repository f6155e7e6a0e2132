package mailbox

import (
	"context"
	"errors"
	"time"

	"github.com/jyothri/mailpilot/model"
)

var ErrNotFound = errors.New("message not found")

// Mailbox is the narrow Gmail surface the HTTP layer needs.
type Mailbox interface {
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, id string) (model.EmailDetail, error)
	Send(ctx context.Context, msg OutgoingMessage) (SendResult, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
	Watch(ctx context.Context, topic string) (Subscription, error)
	Identity(ctx context.Context) (string, error)
}

// ListOptions selects either a label or a free text query. A non-empty Query
// wins and the label is not sent, matching Gmail's own semantics.
type ListOptions struct {
	Label      string
	Query      string
	MaxResults int64
	PageToken  string
}

type ListResult struct {
	Messages      []model.EmailSummary `json:"messages"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

type OutgoingMessage struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	InReplyTo string `json:"inReplyTo,omitempty"`
	ThreadId  string `json:"threadId,omitempty"`
}

type SendResult struct {
	Id       string `json:"id"`
	ThreadId string `json:"threadId"`
}

type Subscription struct {
	HistoryId  uint64    `json:"historyId"`
	Expiration time.Time `json:"expiration"`
}
