// Package fetch moves mailbox data between the mailpilot server and the
// client store.
package fetch

import (
	"context"
	"log/slog"

	"github.com/jyothri/mailpilot/constants"
	"github.com/jyothri/mailpilot/model"
	"github.com/jyothri/mailpilot/store"
)

// Client runs mailbox operations against the server and records their
// results in a store. A failed operation leaves the store as it was, apart
// from loading state.
type Client struct {
	api      *API
	store    *store.Store
	pageSize int64
}

func NewClient(api *API, st *store.Store, pageSize int64) *Client {
	if pageSize <= 0 {
		pageSize = constants.ClientPageSize
	}
	return &Client{api: api, store: st, pageSize: pageSize}
}

func (c *Client) API() *API { return c.api }

func (c *Client) PageSize() int64 { return c.pageSize }

func (c *Client) Store() *store.Store { return c.store }

func (c *Client) track(op string) func() {
	token := c.store.BeginLoading(op)
	return func() { c.store.EndLoading(token) }
}

// FetchInbox lists the first inbox page and drops any active filter query.
func (c *Client) FetchInbox(ctx context.Context) error {
	defer c.track("fetchInbox")()
	page, err := c.api.ListMessages(ctx, ListParams{Label: constants.LabelInbox, MaxResults: c.pageSize})
	if err != nil {
		slog.Error("Failed to fetch inbox", "error", err)
		return err
	}
	c.store.ReplaceInbox(page.Messages, page.NextPageToken, "")
	return nil
}

// LoadMoreInbox appends the next inbox page, listed under the same query as
// the pages before it. Without a cursor it does nothing.
func (c *Client) LoadMoreInbox(ctx context.Context) error {
	st := c.store.Snapshot()
	if st.InboxPageToken == "" {
		return nil
	}
	defer c.track("loadMoreInbox")()
	params := ListParams{MaxResults: c.pageSize, PageToken: st.InboxPageToken}
	if st.InboxQuery != "" {
		params.Query = st.InboxQuery
	} else {
		params.Label = constants.LabelInbox
	}
	page, err := c.api.ListMessages(ctx, params)
	if err != nil {
		slog.Error("Failed to load more inbox", "error", err)
		return err
	}
	c.store.AppendInbox(page.Messages, page.NextPageToken)
	return nil
}

func (c *Client) FetchSent(ctx context.Context) error {
	defer c.track("fetchSent")()
	page, err := c.api.ListMessages(ctx, ListParams{Label: constants.LabelSent, MaxResults: c.pageSize})
	if err != nil {
		slog.Error("Failed to fetch sent", "error", err)
		return err
	}
	c.store.ReplaceSent(page.Messages, page.NextPageToken)
	return nil
}

func (c *Client) LoadMoreSent(ctx context.Context) error {
	st := c.store.Snapshot()
	if st.SentPageToken == "" {
		return nil
	}
	defer c.track("loadMoreSent")()
	page, err := c.api.ListMessages(ctx, ListParams{
		Label:      constants.LabelSent,
		MaxResults: c.pageSize,
		PageToken:  st.SentPageToken,
	})
	if err != nil {
		slog.Error("Failed to load more sent", "error", err)
		return err
	}
	c.store.AppendSent(page.Messages, page.NextPageToken)
	return nil
}

// SearchEmails runs a free text query and shows the results. A failure is
// logged and reported as no results.
func (c *Client) SearchEmails(ctx context.Context, query string) []model.EmailSummary {
	defer c.track("searchEmails")()
	page, err := c.api.ListMessages(ctx, ListParams{Query: query, MaxResults: c.pageSize})
	if err != nil {
		slog.Error("Failed to search emails", "query", query, "error", err)
		return []model.EmailSummary{}
	}
	c.store.SetSearchResults(page.Messages)
	c.store.SetView(model.ViewSearch)
	return page.Messages
}

// FetchEmailDetail opens an email. It returns nil when id is empty or the
// email cannot be loaded.
func (c *Client) FetchEmailDetail(ctx context.Context, id string) *model.EmailDetail {
	if id == "" {
		return nil
	}
	defer c.track("fetchEmailDetail")()
	detail, err := c.api.GetMessage(ctx, id)
	if err != nil {
		slog.Error("Failed to fetch email detail", "message_id", id, "error", err)
		return nil
	}
	c.store.SetCurrentEmail(&detail)
	c.store.SetView(model.ViewDetail)
	return &detail
}

func (c *Client) SendEmail(ctx context.Context, draft model.ComposeData) (SendResult, error) {
	defer c.track("sendEmail")()
	if !draft.IsReply() {
		draft.InReplyTo = ""
		draft.ThreadId = ""
	}
	result, err := c.api.Send(ctx, draft)
	if err != nil {
		slog.Error("Failed to send email", "error", err)
		return SendResult{}, err
	}
	return result, nil
}

// FilterInbox replaces the inbox with the results of query and remembers the
// query so load-more continues under it.
func (c *Client) FilterInbox(ctx context.Context, query string) ([]model.EmailSummary, error) {
	defer c.track("filterInbox")()
	page, err := c.api.ListMessages(ctx, ListParams{Query: query, MaxResults: c.pageSize})
	if err != nil {
		slog.Error("Failed to filter inbox", "query", query, "error", err)
		return nil, err
	}
	c.store.ReplaceInbox(page.Messages, page.NextPageToken, query)
	c.store.SetView(model.ViewInbox)
	return page.Messages, nil
}

// ApplyFilters stores filters and lists the primary inbox under them.
func (c *Client) ApplyFilters(ctx context.Context, filters model.EmailFilters) error {
	c.store.SetFilters(filters)
	if filters.IsEmpty() {
		return c.FetchInbox(ctx)
	}
	query, err := model.BuildFilterQuery(constants.InboxFilterBase, filters)
	if err != nil {
		return err
	}
	_, err = c.FilterInbox(ctx, query)
	return err
}

func (c *Client) ClearFilters(ctx context.Context) error {
	c.store.ResetFilters()
	return c.FetchInbox(ctx)
}

// RemoveFilter drops one filter. The inbox is relisted under the filters
// that remain, or unfiltered when none do.
func (c *Client) RemoveFilter(ctx context.Context, key string) error {
	remaining := c.store.Snapshot().Filters.Without(key)
	if remaining.IsEmpty() {
		return c.ClearFilters(ctx)
	}
	return c.ApplyFilters(ctx, remaining)
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	if err := c.api.ModifyLabels(ctx, id, nil, []string{constants.LabelUnread}); err != nil {
		slog.Warn("Failed to mark email read", "message_id", id, "error", err)
		return err
	}
	return nil
}
