package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jyothri/mailpilot/model"
)

const senderWidth = 24

func (m Model) emails(view model.View) []model.EmailSummary {
	switch view {
	case model.ViewSent:
		return m.state.Sent
	case model.ViewSearch:
		return m.state.SearchResults
	default:
		return m.state.Inbox
	}
}

func (m Model) selected() (model.EmailSummary, bool) {
	emails := m.emails(m.state.View)
	i := m.cursors[m.state.View]
	if i < 0 || i >= len(emails) {
		return model.EmailSummary{}, false
	}
	return emails[i], true
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.state.View
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursors[view] < len(m.emails(view))-1 {
			m.cursors[view]++
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursors[view] > 0 {
			m.cursors[view]--
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		email, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.openEmail(email)

	case key.Matches(msg, m.keys.LoadMore):
		switch view {
		case model.ViewInbox:
			return m, m.run("loadMoreInbox", m.client.LoadMoreInbox)
		case model.ViewSent:
			return m, m.run("loadMoreSent", m.client.LoadMoreSent)
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		switch view {
		case model.ViewInbox:
			m.newMail = false
			return m, m.refetchInbox()
		case model.ViewSent:
			return m, m.run("fetchSent", m.client.FetchSent)
		}
		return m, nil
	}

	if view != model.ViewInbox {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Filter):
		m.filter = newFilterPanel(m.state.Filters, m.layout.Width)
		m.mode = modeFilter
		return m, m.filter.form.Init()

	case key.Matches(msg, m.keys.UndoFilter):
		active := m.state.Filters.Active()
		if len(active) == 0 {
			return m, nil
		}
		last := active[len(active)-1]
		return m, m.run("removeFilter", func(ctx context.Context) error {
			return m.client.RemoveFilter(ctx, last)
		})

	case key.Matches(msg, m.keys.ClearFilters):
		if m.state.Filters.IsEmpty() {
			return m, nil
		}
		return m, m.run("clearFilters", m.client.ClearFilters)
	}
	return m, nil
}

// openEmail loads the detail and marks it read on the server.
func (m Model) openEmail(email model.EmailSummary) tea.Cmd {
	ctx := m.ctx
	client := m.client
	return func() tea.Msg {
		detail := client.FetchEmailDetail(ctx, email.Id)
		if detail == nil {
			return opDoneMsg{op: "open", err: errOpenFailed}
		}
		if !detail.IsRead {
			if err := client.MarkRead(ctx, detail.Id); err != nil {
				return opDoneMsg{op: "mark read", err: err}
			}
		}
		return opDoneMsg{op: "open"}
	}
}

func (m Model) renderList(view model.View) string {
	var b strings.Builder
	if view == model.ViewInbox {
		if chips := renderChips(m.state.Filters); chips != "" {
			b.WriteString(chips + "\n")
		}
		if m.newMail {
			b.WriteString(bannerStyle.Render("New mail has arrived. Press r to refresh.") + "\n")
		}
	}

	emails := m.emails(view)
	if len(emails) == 0 {
		b.WriteString(dimmedStyle.Render("  No emails"))
		return b.String()
	}

	height := max(m.layout.ContentHeight()-lipgloss.Height(b.String())-1, 1)
	cursor := m.cursors[view]
	start := 0
	if cursor >= height {
		start = cursor - height + 1
	}
	end := min(start+height, len(emails))
	width := max(m.layout.Width-4, 20)
	for i := start; i < end; i++ {
		line := formatRow(emails[i], width)
		if !emails[i].IsRead {
			line = unreadStyle.Render(line)
		}
		if i == cursor {
			line = selectedItemStyle.Render(line)
		} else {
			line = listItemStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	if m.hasMore(view) {
		b.WriteString(dimmedStyle.Render("  more available, press m"))
	}
	return b.String()
}

func (m Model) hasMore(view model.View) bool {
	switch view {
	case model.ViewInbox:
		return m.state.InboxPageToken != ""
	case model.ViewSent:
		return m.state.SentPageToken != ""
	}
	return false
}

func formatRow(e model.EmailSummary, width int) string {
	marker := " "
	if !e.IsRead {
		marker = "●"
	}
	sender := fit(e.Sender, senderWidth)
	rest := max(width-senderWidth-4, 10)
	subject := e.Subject
	if e.Snippet != "" {
		subject += " - " + e.Snippet
	}
	return fmt.Sprintf("%s %s  %s", marker, sender, truncateWidth(subject, rest))
}

func renderChips(f model.EmailFilters) string {
	active := f.Active()
	if len(active) == 0 {
		return ""
	}
	chips := make([]string, 0, len(active))
	for _, k := range active {
		chips = append(chips, chipStyle.Render(chipLabel(f, k)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

func chipLabel(f model.EmailFilters, key string) string {
	switch key {
	case "sender":
		return "from: " + f.Sender
	case "keyword":
		return "keyword: " + f.Keyword
	case "unreadOnly":
		return "unread"
	case "dateFrom":
		return "after: " + f.DateFrom
	case "dateTo":
		return "until: " + f.DateTo
	}
	return key
}

// fit pads or cuts s to exactly n cells.
func fit(s string, n int) string {
	s = truncateWidth(s, n)
	if w := lipgloss.Width(s); w < n {
		s += strings.Repeat(" ", n-w)
	}
	return s
}

func truncateWidth(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
