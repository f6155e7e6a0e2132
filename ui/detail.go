package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jyothri/mailpilot/model"
)

func (m *Model) syncDetail() {
	e := m.state.CurrentEmail
	if e == nil {
		m.detailId = ""
		m.detail.SetContent("")
		return
	}
	if e.Id == m.detailId {
		return
	}
	m.detailId = e.Id
	m.detail.SetContent(detailContent(*e, m.detail.Width))
	m.detail.GotoTop()
}

func detailContent(e model.EmailDetail, width int) string {
	var b strings.Builder
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s%s\n", labelStyle.Render(label), value)
		}
	}
	field("From", fmt.Sprintf("%s <%s>", e.Sender, e.SenderEmail))
	field("To", e.To)
	field("Cc", e.Cc)
	field("Date", e.Date)
	field("Subject", e.Subject)
	b.WriteString("\n")

	body := e.PlainBody()
	if body == "" {
		body = dimmedStyle.Render("(no content)")
	}
	if width > 0 {
		body = lipgloss.NewStyle().Width(width).Render(body)
	}
	b.WriteString(body)
	return b.String()
}

func (m Model) renderDetail() string {
	if m.state.CurrentEmail == nil {
		return dimmedStyle.Render("  No email is open")
	}
	return detailPanelStyle.Render(m.detail.View())
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.store.SetView(m.lastList)
		m.sync()
		return m, nil

	case key.Matches(msg, m.keys.Reply):
		if e := m.state.CurrentEmail; e != nil {
			m.store.SetDraft(model.ReplyDraft(*e))
			m.store.SetView(model.ViewCompose)
			m.sync()
			cmd := m.compose.focusAt(fieldBody)
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, m.keys.Forward):
		if e := m.state.CurrentEmail; e != nil {
			m.store.SetDraft(model.ForwardDraft(*e))
			m.store.SetView(model.ViewCompose)
			m.sync()
			cmd := m.compose.focusAt(fieldTo)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}
