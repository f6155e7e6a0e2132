package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jyothri/mailpilot/constants"
	"github.com/jyothri/mailpilot/model"
)

const (
	bodyPreviewLen   = 1000
	filterPreviewLen = 5
)

const noDraftMessage = "No email draft found. Use fillCompose first."

var summaryAttributes = []Parameter{
	{Name: "id", Type: TypeString, Description: "Email ID", Required: true},
	{Name: "threadId", Type: TypeString, Description: "Thread ID", Required: true},
	{Name: "sender", Type: TypeString, Description: "Sender name", Required: true},
	{Name: "senderEmail", Type: TypeString, Description: "Sender email", Required: true},
	{Name: "subject", Type: TypeString, Description: "Subject", Required: true},
	{Name: "snippet", Type: TypeString, Description: "Preview text", Required: true},
	{Name: "date", Type: TypeString, Description: "Date string", Required: true},
	{Name: "isRead", Type: TypeBoolean, Description: "Read status", Required: true},
}

func (s *Surface) catalog() []*Action {
	return []*Action{
		{
			Name:        "navigate",
			Aliases:     []string{"navigateTo"},
			Description: "Navigate to a view in the mail app: inbox, sent, compose, detail or search.",
			Parameters: []Parameter{
				{Name: "view", Type: TypeString, Description: "The view to navigate to: inbox, sent, compose, detail, search", Required: true},
			},
			handler: s.navigate,
		},
		{
			Name:        "fillCompose",
			Aliases:     []string{"fillComposeForm"},
			Description: "Fill the compose form so the user can see what will be sent. Always use this before sending an email.",
			Parameters: []Parameter{
				{Name: "to", Type: TypeString, Description: "Recipient email address", Required: true},
				{Name: "subject", Type: TypeString, Description: "Email subject line", Required: true},
				{Name: "body", Type: TypeString, Description: "Email body content", Required: true},
				{Name: "inReplyTo", Type: TypeString, Description: "Message ID if this is a reply"},
				{Name: "threadId", Type: TypeString, Description: "Thread ID if this is a reply"},
			},
			handler: s.fillCompose,
		},
		{
			Name:        "replyToEmail",
			Description: "Draft a reply to the currently open email. Recipient, subject and thread come from the open email; only the body is needed.",
			Parameters: []Parameter{
				{Name: "body", Type: TypeString, Description: "The reply message body text", Required: true},
			},
			handler: s.replyToEmail,
		},
		{
			Name:        "updateDraft",
			Description: "Replace the body of the current draft, keeping recipient, subject and reply metadata.",
			Parameters: []Parameter{
				{Name: "body", Type: TypeString, Description: "The new email body text", Required: true},
			},
			handler: s.updateDraft,
		},
		{
			Name:        "openEmail",
			Description: "Open the first email in the current list whose sender name, sender email or subject contains the search term.",
			Parameters: []Parameter{
				{Name: "searchTerm", Type: TypeString, Description: "A keyword such as 'uber' or 'security alert'", Required: true},
			},
			handler: s.openEmail,
		},
		{
			Name:        "displaySearchResults",
			Description: "Show email search results in the mail UI.",
			Parameters: []Parameter{
				{Name: "emails", Type: TypeObjects, Description: "Email summaries to display", Required: true, Attributes: summaryAttributes},
			},
			handler: s.displaySearchResults,
		},
		{
			Name:        "setFilters",
			Description: "Filter the inbox by sender, date range, keyword or unread status.",
			Parameters: []Parameter{
				{Name: "sender", Type: TypeString, Description: "Filter by sender email or name"},
				{Name: "dateFrom", Type: TypeString, Description: "Emails from this date (YYYY-MM-DD)"},
				{Name: "dateTo", Type: TypeString, Description: "Emails until this date (YYYY-MM-DD)"},
				{Name: "keyword", Type: TypeString, Description: "Keyword in subject or body"},
				{Name: "unreadOnly", Type: TypeBoolean, Description: "Show only unread emails"},
			},
			handler: s.setFilters,
		},
		{
			Name:        "sendEmail",
			Description: "Send the current draft. Only call this after the user has confirmed.",
			Parameters:  []Parameter{},
			handler:     s.sendEmail,
		},
	}
}

func (s *Surface) navigate(ctx context.Context, args Args) string {
	name := args.String("view")
	view, err := model.ParseView(name)
	if err != nil {
		return fmt.Sprintf("Unknown view %q. Valid views: %s", name, viewNames())
	}
	s.store.SetView(view)
	switch view {
	case model.ViewCompose:
		s.store.ResetDraft()
	case model.ViewInbox:
		if err := s.fetcher.FetchInbox(ctx); err != nil {
			slog.Warn("Inbox refresh after navigation failed", "error", err)
		}
	}
	return fmt.Sprintf("Navigated to %s view", view)
}

func (s *Surface) fillCompose(_ context.Context, args Args) string {
	draft := model.ComposeData{
		To:        args.String("to"),
		Subject:   args.String("subject"),
		Body:      args.String("body"),
		InReplyTo: args.String("inReplyTo"),
		ThreadId:  args.String("threadId"),
	}
	s.store.SetView(model.ViewCompose)
	s.store.SetDraft(draft)
	return fmt.Sprintf("Compose form filled with: To: %s, Subject: %s. The user can review and send.", draft.To, draft.Subject)
}

func (s *Surface) replyToEmail(_ context.Context, args Args) string {
	current := s.store.Snapshot().CurrentEmail
	if current == nil {
		return "No email is currently open. Open an email first, then reply."
	}
	draft := model.ReplyDraft(*current)
	draft.Body = args.String("body")
	s.store.SetView(model.ViewCompose)
	s.store.SetDraft(draft)
	return fmt.Sprintf("Reply draft created. To: %s, Subject: %s. The user can review and send.", draft.To, draft.Subject)
}

func (s *Surface) updateDraft(_ context.Context, args Args) string {
	s.store.SetDraftBody(args.String("body"))
	return "Draft updated with new body."
}

func (s *Surface) openEmail(ctx context.Context, args Args) string {
	term := args.String("searchTerm")
	st := s.store.Snapshot()
	candidates := st.Inbox
	if len(candidates) == 0 {
		candidates = st.SearchResults
	}
	match, ok := findEmail(candidates, term)
	if !ok {
		return fmt.Sprintf("No email found matching %q in the current inbox list. Try a different search term.", term)
	}
	slog.Debug("openEmail matched", "message_id", match.Id, "sender", match.Sender)
	email := s.fetcher.FetchEmailDetail(ctx, match.Id)
	if email == nil {
		return "Found a match but failed to load the email detail."
	}
	return fmt.Sprintf("Opened email: %q from %s <%s>\nDate: %s\nTo: %s\n\nBody:\n%s",
		email.Subject, email.Sender, email.SenderEmail, email.Date, email.To, truncate(email.PlainBody(), bodyPreviewLen))
}

// findEmail returns the first email whose sender, sender address or subject
// contains term, ignoring case.
func findEmail(emails []model.EmailSummary, term string) (model.EmailSummary, bool) {
	term = strings.ToLower(term)
	for _, e := range emails {
		if strings.Contains(strings.ToLower(e.Sender), term) ||
			strings.Contains(strings.ToLower(e.SenderEmail), term) ||
			strings.Contains(strings.ToLower(e.Subject), term) {
			return e, true
		}
	}
	return model.EmailSummary{}, false
}

func (s *Surface) displaySearchResults(_ context.Context, args Args) string {
	objects := args.Objects("emails")
	emails := make([]model.EmailSummary, 0, len(objects))
	for _, obj := range objects {
		email, err := toSummary(obj)
		if err != nil {
			return fmt.Sprintf("Invalid arguments for displaySearchResults: %v", err)
		}
		emails = append(emails, email)
	}
	s.store.SetSearchResults(emails)
	s.store.SetView(model.ViewSearch)
	return fmt.Sprintf("Displaying %d search results in the mail UI", len(emails))
}

func toSummary(obj map[string]any) (model.EmailSummary, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return model.EmailSummary{}, err
	}
	var email model.EmailSummary
	if err := json.Unmarshal(data, &email); err != nil {
		return model.EmailSummary{}, err
	}
	if email.Labels == nil {
		email.Labels = []string{}
	}
	return email, nil
}

func (s *Surface) setFilters(ctx context.Context, args Args) string {
	filters := model.EmailFilters{
		Sender:     args.String("sender"),
		DateFrom:   args.String("dateFrom"),
		DateTo:     args.String("dateTo"),
		Keyword:    args.String("keyword"),
		UnreadOnly: args.Bool("unreadOnly"),
	}
	s.store.SetFilters(filters)
	query, err := model.BuildFilterQuery(constants.AgentFilterBase, filters)
	if err != nil {
		slog.Warn("Failed to build filter query", "error", err)
		return "Failed to apply filters"
	}
	results, err := s.fetcher.FilterInbox(ctx, query)
	if err != nil {
		return "Failed to apply filters"
	}
	top := results
	if len(top) > filterPreviewLen {
		top = top[:filterPreviewLen]
	}
	lines := make([]string, 0, len(top))
	for _, e := range top {
		lines = append(lines, fmt.Sprintf("- %s: %q", e.Sender, e.Subject))
	}
	return fmt.Sprintf("Found %d emails. Inbox updated. Top results:\n%s\n\nTo open one, call openEmail with a search term like the sender name or subject keyword.",
		len(results), strings.Join(lines, "\n"))
}

func (s *Surface) sendEmail(ctx context.Context, _ Args) string {
	draft := s.store.Snapshot().Draft
	if !draft.IsComplete() {
		return noDraftMessage
	}
	if _, err := s.fetcher.SendEmail(ctx, draft); err != nil {
		return fmt.Sprintf("Failed to send email: %v", err)
	}
	s.store.ResetDraft()
	s.store.SetView(model.ViewInbox)
	if err := s.fetcher.FetchInbox(ctx); err != nil {
		slog.Warn("Inbox refresh after send failed", "error", err)
	}
	return "Email sent successfully!"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func viewNames() string {
	names := make([]string, 0, len(model.Views))
	for _, v := range model.Views {
		names = append(names, string(v))
	}
	return strings.Join(names, ", ")
}
