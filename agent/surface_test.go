package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jyothri/mailpilot/fetch"
	"github.com/jyothri/mailpilot/model"
	"github.com/jyothri/mailpilot/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	store        *store.Store
	details      map[string]model.EmailDetail
	filterResult []model.EmailSummary
	filterErr    error
	sendErr      error

	inboxFetches int
	detailCalls  []string
	queries      []string
	sent         []model.ComposeData
}

func (f *fakeFetcher) FetchInbox(ctx context.Context) error {
	f.inboxFetches++
	return nil
}

func (f *fakeFetcher) FetchEmailDetail(ctx context.Context, id string) *model.EmailDetail {
	f.detailCalls = append(f.detailCalls, id)
	d, ok := f.details[id]
	if !ok {
		return nil
	}
	f.store.SetCurrentEmail(&d)
	f.store.SetView(model.ViewDetail)
	return &d
}

func (f *fakeFetcher) FilterInbox(ctx context.Context, query string) ([]model.EmailSummary, error) {
	f.queries = append(f.queries, query)
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	f.store.ReplaceInbox(f.filterResult, "next", query)
	f.store.SetView(model.ViewInbox)
	return f.filterResult, nil
}

func (f *fakeFetcher) SendEmail(ctx context.Context, draft model.ComposeData) (fetch.SendResult, error) {
	f.sent = append(f.sent, draft)
	if f.sendErr != nil {
		return fetch.SendResult{}, f.sendErr
	}
	return fetch.SendResult{Id: "s1", ThreadId: "t1"}, nil
}

func newTestSurface() (*Surface, *store.Store, *fakeFetcher) {
	st := store.New()
	f := &fakeFetcher{store: st, details: map[string]model.EmailDetail{}}
	return NewSurface(st, f), st, f
}

var uberInbox = []model.EmailSummary{
	{Id: "a1", Sender: "Alice", SenderEmail: "alice@example.com", Subject: "Lunch"},
	{Id: "u1", Sender: "Uber Receipts", SenderEmail: "noreply@uber.com", Subject: "Your Tuesday trip"},
}

func TestOpenEmailMatchesSender(t *testing.T) {
	s, st, f := newTestSurface()
	st.ReplaceInbox(uberInbox, "", "")
	f.details["u1"] = model.EmailDetail{
		Id: "u1", Sender: "Uber Receipts", SenderEmail: "noreply@uber.com",
		Subject: "Your Tuesday trip", Date: "Tue", To: "me@example.com",
		Body: strings.Repeat("x", 1500),
	}

	result := s.Invoke(context.Background(), "openEmail", Args{"searchTerm": "UBER"})
	assert.Equal(t, []string{"u1"}, f.detailCalls)
	assert.True(t, strings.HasPrefix(result, `Opened email: "Your Tuesday trip" from Uber Receipts <noreply@uber.com>`), result)
	assert.Contains(t, result, "\nDate: Tue\nTo: me@example.com\n\nBody:\n")
	assert.True(t, strings.HasSuffix(result, "\n"+strings.Repeat("x", 1000)))
	require.NotNil(t, st.Snapshot().CurrentEmail)
	assert.Equal(t, "u1", st.Snapshot().CurrentEmail.Id)
}

func TestOpenEmailConvertsHtmlOnlyBody(t *testing.T) {
	s, st, f := newTestSurface()
	st.ReplaceInbox(uberInbox, "", "")
	html := "<p>Your receipt&nbsp;total: <b>$12</b></p>"
	f.details["u1"] = model.EmailDetail{Id: "u1", Sender: "Uber Receipts", Subject: "Your Tuesday trip", Body: html, BodyHtml: html}

	result := s.Invoke(context.Background(), "openEmail", Args{"searchTerm": "uber"})
	assert.True(t, strings.HasSuffix(result, "\n\nBody:\nYour receipt\u00a0total: $12"), result)
	assert.NotContains(t, result, "<p>")
}

func TestOpenEmailNotFoundLeavesCurrentEmail(t *testing.T) {
	s, st, f := newTestSurface()
	st.ReplaceInbox(uberInbox, "", "")
	st.SetCurrentEmail(&model.EmailDetail{Id: "keep"})

	result := s.Invoke(context.Background(), "openEmail", Args{"searchTerm": "lyft"})
	assert.Equal(t, `No email found matching "lyft" in the current inbox list. Try a different search term.`, result)
	assert.Empty(t, f.detailCalls)
	assert.Equal(t, "keep", st.Snapshot().CurrentEmail.Id)
}

func TestOpenEmailFallsBackToSearchResults(t *testing.T) {
	s, st, f := newTestSurface()
	st.SetSearchResults([]model.EmailSummary{{Id: "s9", Sender: "Bank", Subject: "Security alert"}})

	result := s.Invoke(context.Background(), "openEmail", Args{"searchTerm": "security"})
	assert.Equal(t, []string{"s9"}, f.detailCalls)
	assert.Equal(t, "Found a match but failed to load the email detail.", result)
}

func TestSendEmailWithoutDraftMakesNoCall(t *testing.T) {
	s, st, f := newTestSurface()
	st.SetDraft(model.ComposeData{Subject: "Hi", Body: "no recipient"})

	result := s.Invoke(context.Background(), "sendEmail", nil)
	assert.Equal(t, "No email draft found. Use fillCompose first.", result)
	assert.Empty(t, f.sent)
	assert.Zero(t, f.inboxFetches)
}

func TestSendEmail(t *testing.T) {
	s, st, f := newTestSurface()
	ctx := context.Background()
	s.Invoke(ctx, "fillComposeForm", Args{"to": "a@b.c", "subject": "Hi", "body": "hello"})
	st.SetView(model.ViewDetail)

	assert.Equal(t, "Email sent successfully!", s.Invoke(ctx, "sendEmail", Args{}))
	require.Len(t, f.sent, 1)
	assert.Equal(t, "a@b.c", f.sent[0].To)
	snap := st.Snapshot()
	assert.Equal(t, model.ComposeData{}, snap.Draft)
	assert.Equal(t, model.ViewInbox, snap.View)
	assert.Equal(t, 1, f.inboxFetches)

	s.Invoke(ctx, "fillCompose", Args{"to": "a@b.c", "subject": "Hi", "body": "again"})
	f.sendErr = errors.New("Failed to send email")
	assert.Equal(t, "Failed to send email: Failed to send email", s.Invoke(ctx, "sendEmail", Args{}))
	assert.Equal(t, "again", st.Snapshot().Draft.Body)
}

func TestNavigate(t *testing.T) {
	s, st, f := newTestSurface()
	ctx := context.Background()
	st.SetDraft(model.ComposeData{To: "x@y.z"})

	assert.Equal(t, "Navigated to compose view", s.Invoke(ctx, "navigate", Args{"view": "compose"}))
	assert.Equal(t, model.ComposeData{}, st.Snapshot().Draft)
	assert.Zero(t, f.inboxFetches)

	assert.Equal(t, "Navigated to inbox view", s.Invoke(ctx, "navigateTo", Args{"view": "inbox"}))
	assert.Equal(t, 1, f.inboxFetches)

	result := s.Invoke(ctx, "navigate", Args{"view": "spam"})
	assert.Equal(t, `Unknown view "spam". Valid views: inbox, sent, compose, detail, search`, result)
	assert.Equal(t, model.ViewInbox, st.Snapshot().View)
}

func TestFillComposeAndUpdateDraft(t *testing.T) {
	s, st, _ := newTestSurface()
	ctx := context.Background()

	result := s.Invoke(ctx, "fillCompose", Args{
		"to": "jane@x.com", "subject": "Re: Report", "body": "draft",
		"inReplyTo": "m1", "threadId": "t1",
	})
	assert.Equal(t, "Compose form filled with: To: jane@x.com, Subject: Re: Report. The user can review and send.", result)

	assert.Equal(t, "Draft updated with new body.", s.Invoke(ctx, "updateDraft", Args{"body": "better"}))
	snap := st.Snapshot()
	assert.Equal(t, model.ViewCompose, snap.View)
	assert.Equal(t, model.ComposeData{
		To: "jane@x.com", Subject: "Re: Report", Body: "better", InReplyTo: "m1", ThreadId: "t1",
	}, snap.Draft)
}

func TestReplyToEmail(t *testing.T) {
	s, st, _ := newTestSurface()
	ctx := context.Background()

	assert.Equal(t, "No email is currently open. Open an email first, then reply.",
		s.Invoke(ctx, "replyToEmail", Args{"body": "thanks"}))

	st.SetCurrentEmail(&model.EmailDetail{Id: "m1", ThreadId: "t1", Sender: "Jane", SenderEmail: "jane@x.com", Subject: "Report"})
	result := s.Invoke(ctx, "replyToEmail", Args{"body": "thanks"})
	assert.Equal(t, "Reply draft created. To: jane@x.com, Subject: Re: Report. The user can review and send.", result)
	assert.Equal(t, model.ComposeData{
		To: "jane@x.com", Subject: "Re: Report", Body: "thanks", InReplyTo: "m1", ThreadId: "t1",
	}, st.Snapshot().Draft)
}

func TestSetFiltersUsesAgentBase(t *testing.T) {
	s, st, f := newTestSurface()
	for i := 0; i < 7; i++ {
		f.filterResult = append(f.filterResult, model.EmailSummary{
			Id: fmt.Sprintf("f%d", i), Sender: "Uber", Subject: fmt.Sprintf("Trip %d", i),
		})
	}

	result := s.Invoke(context.Background(), "setFilters", Args{
		"sender": "uber", "dateFrom": "2024-01-30", "dateTo": "2024-01-31", "unreadOnly": true,
	})
	require.Len(t, f.queries, 1)
	assert.Equal(t, "in:inbox from:uber is:unread after:2024/01/30 before:2024/02/01", f.queries[0])
	assert.True(t, strings.HasPrefix(result, "Found 7 emails. Inbox updated. Top results:\n- Uber: \"Trip 0\"\n"), result)
	assert.Contains(t, result, `- Uber: "Trip 4"`)
	assert.NotContains(t, result, `Trip 5`)

	snap := st.Snapshot()
	assert.Equal(t, f.queries[0], snap.InboxQuery)
	assert.Equal(t, "next", snap.InboxPageToken)
	assert.Equal(t, "uber", snap.Filters.Sender)

	f.filterErr = errors.New("boom")
	assert.Equal(t, "Failed to apply filters", s.Invoke(context.Background(), "setFilters", Args{"keyword": "x"}))
	assert.Equal(t, "Failed to apply filters", s.Invoke(context.Background(), "setFilters", Args{"dateTo": "31/01/2024"}))
}

func TestDisplaySearchResults(t *testing.T) {
	s, st, _ := newTestSurface()
	emails := []any{
		map[string]any{"id": "1", "threadId": "t", "sender": "A", "senderEmail": "a@x", "subject": "S", "snippet": "p", "date": "d", "isRead": true},
		map[string]any{"id": "2", "threadId": "t", "sender": "B", "senderEmail": "b@x", "subject": "S", "snippet": "p", "date": "d", "isRead": false},
	}
	assert.Equal(t, "Displaying 2 search results in the mail UI",
		s.Invoke(context.Background(), "displaySearchResults", Args{"emails": emails}))
	snap := st.Snapshot()
	assert.Equal(t, model.ViewSearch, snap.View)
	require.Len(t, snap.SearchResults, 2)
	assert.Equal(t, []string{}, snap.SearchResults[0].Labels)
	assert.True(t, snap.SearchResults[0].IsRead)
}

func TestInvokeValidatesArguments(t *testing.T) {
	s, _, _ := newTestSurface()
	ctx := context.Background()

	assert.Equal(t, `Invalid arguments for openEmail: missing required parameter "searchTerm"`,
		s.Invoke(ctx, "openEmail", Args{}))
	assert.Equal(t, `Invalid arguments for setFilters: parameter "unreadOnly" must be a boolean`,
		s.Invoke(ctx, "setFilters", Args{"unreadOnly": "yes"}))
	assert.Contains(t,
		s.Invoke(ctx, "displaySearchResults", Args{"emails": []any{map[string]any{"id": "1"}}}),
		`emails[0]: missing required parameter "threadId"`)
	assert.True(t, strings.HasPrefix(s.Invoke(ctx, "deleteEverything", nil), `Unknown action "deleteEverything"`))
}

func TestContextTruncates(t *testing.T) {
	s, st, _ := newTestSurface()
	inbox := make([]model.EmailSummary, 25)
	for i := range inbox {
		inbox[i] = model.EmailSummary{Id: fmt.Sprintf("m%d", i)}
	}
	st.ReplaceInbox(inbox, "", "")
	st.SetCurrentEmail(&model.EmailDetail{Id: "m0", Body: strings.Repeat("b", 900)})

	c := s.Context()
	assert.Len(t, c.Inbox, 20)
	require.NotNil(t, c.CurrentEmail)
	assert.Len(t, c.CurrentEmail.Body, 500)
	assert.Equal(t, model.ViewInbox, c.View)
}
