package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jyothri/mailpilot/model"
	"github.com/jyothri/mailpilot/store"
)

const (
	fieldTo = iota
	fieldSubject
	fieldBody
	fieldCount
)

// composeForm edits the store's draft. synced is the draft the inputs were
// last loaded from or pushed to; a store draft that differs from it was
// written by someone else and replaces the inputs.
type composeForm struct {
	to      textinput.Model
	subject textinput.Model
	body    textarea.Model
	focus   int
	synced  model.ComposeData
}

func newComposeForm() composeForm {
	to := textinput.New()
	to.Placeholder = "recipient@example.com"
	to.Prompt = ""

	subject := textinput.New()
	subject.Placeholder = "Subject"
	subject.Prompt = ""

	body := textarea.New()
	body.Placeholder = "Write your message..."
	body.ShowLineNumbers = false
	body.CharLimit = 0

	return composeForm{to: to, subject: subject, body: body}
}

func (c *composeForm) setSize(width, height int) {
	c.to.Width = max(width-12, 10)
	c.subject.Width = max(width-12, 10)
	c.body.SetWidth(max(width-2, 10))
	c.body.SetHeight(max(height-4, 3))
}

func (c *composeForm) syncFrom(draft model.ComposeData) {
	if draft == c.synced {
		return
	}
	c.to.SetValue(draft.To)
	c.subject.SetValue(draft.Subject)
	c.body.SetValue(draft.Body)
	c.synced = draft
}

func (c *composeForm) focusFirst() tea.Cmd {
	return c.focusAt(fieldTo)
}

func (c *composeForm) focusAt(field int) tea.Cmd {
	c.focus = field
	c.to.Blur()
	c.subject.Blur()
	c.body.Blur()
	switch field {
	case fieldSubject:
		return c.subject.Focus()
	case fieldBody:
		return c.body.Focus()
	default:
		return c.to.Focus()
	}
}

func (c *composeForm) focusCurrent() {
	if !c.to.Focused() && !c.subject.Focused() && !c.body.Focused() {
		c.focusAt(c.focus)
	}
}

func (c *composeForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch c.focus {
	case fieldSubject:
		c.subject, cmd = c.subject.Update(msg)
	case fieldBody:
		c.body, cmd = c.body.Update(msg)
	default:
		c.to, cmd = c.to.Update(msg)
	}
	return cmd
}

func (c *composeForm) view() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("To") + c.to.View() + "\n")
	b.WriteString(labelStyle.Render("Subject") + c.subject.View() + "\n")
	if c.synced.IsReply() {
		b.WriteString(dimmedStyle.Render("Replying in thread "+c.synced.ThreadId) + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString(c.body.View())
	return b.String()
}

// pushDraft writes edited inputs back to the store.
func (m *Model) pushDraft() {
	to, subject, body := m.compose.to.Value(), m.compose.subject.Value(), m.compose.body.Value()
	s := m.compose.synced
	if to == s.To && subject == s.Subject && body == s.Body {
		return
	}
	m.store.EditDraft(store.ComposePatch{To: &to, Subject: &subject, Body: &body})
	m.compose.synced.To = to
	m.compose.synced.Subject = subject
	m.compose.synced.Body = body
}

func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.store.ResetDraft()
		m.store.SetView(m.lastList)
		m.sync()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		m.pushDraft()
		draft := m.store.Snapshot().Draft
		if !draft.IsComplete() {
			m.setError("To and subject are required")
			return m, nil
		}
		ctx := m.ctx
		client := m.client
		m.setStatus("Sending...")
		return m, func() tea.Msg {
			_, err := client.SendEmail(ctx, draft)
			return sentMsg{err: err}
		}

	case key.Matches(msg, m.keys.NextField):
		cmd := m.compose.focusAt((m.compose.focus + 1) % fieldCount)
		return m, cmd

	case key.Matches(msg, m.keys.PrevField):
		cmd := m.compose.focusAt((m.compose.focus + fieldCount - 1) % fieldCount)
		return m, cmd
	}

	cmd := m.compose.update(msg)
	m.pushDraft()
	return m, cmd
}

