package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/jyothri/mailpilot/model"
)

// filterPanel is heap allocated so the form's value pointers stay valid
// while the Model is copied around.
type filterPanel struct {
	sender     string
	dateFrom   string
	dateTo     string
	keyword    string
	unreadOnly bool
	form       *huh.Form
}

func newFilterPanel(current model.EmailFilters, width int) *filterPanel {
	p := &filterPanel{
		sender:     current.Sender,
		dateFrom:   current.DateFrom,
		dateTo:     current.DateTo,
		keyword:    current.Keyword,
		unreadOnly: current.UnreadOnly,
	}
	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Sender").
				Description("Name or address").
				Value(&p.sender),
			huh.NewInput().
				Title("From date").
				Placeholder("YYYY-MM-DD").
				Value(&p.dateFrom).
				Validate(validateDate),
			huh.NewInput().
				Title("To date").
				Placeholder("YYYY-MM-DD").
				Value(&p.dateTo).
				Validate(validateDate),
			huh.NewInput().
				Title("Keyword").
				Value(&p.keyword),
			huh.NewConfirm().
				Title("Unread only").
				Value(&p.unreadOnly),
		),
	).WithWidth(max(width-4, 30)).WithShowHelp(false)
	return p
}

func validateDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("use YYYY-MM-DD")
	}
	return nil
}

func (p *filterPanel) filters() model.EmailFilters {
	return model.EmailFilters{
		Sender:     p.sender,
		DateFrom:   p.dateFrom,
		DateTo:     p.dateTo,
		Keyword:    p.keyword,
		UnreadOnly: p.unreadOnly,
	}
}

func (p *filterPanel) update(msg tea.Msg) tea.Cmd {
	mdl, cmd := p.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		p.form = f
	}
	return cmd
}

func (p *filterPanel) view() string {
	return p.form.View()
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.mode = modeBrowse
		m.filter = nil
		return m, nil
	}

	cmd := m.filter.update(msg)
	switch m.filter.form.State {
	case huh.StateCompleted:
		filters := m.filter.filters()
		m.mode = modeBrowse
		m.filter = nil
		return m, m.run("applyFilters", func(ctx context.Context) error {
			return m.client.ApplyFilters(ctx, filters)
		})
	case huh.StateAborted:
		m.mode = modeBrowse
		m.filter = nil
		return m, nil
	}
	return m, cmd
}
