package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Down key.Binding
	Up   key.Binding
	Open key.Binding
	Back key.Binding
	Quit key.Binding

	Inbox   key.Binding
	Sent    key.Binding
	Results key.Binding

	LoadMore     key.Binding
	Refresh      key.Binding
	Search       key.Binding
	Filter       key.Binding
	UndoFilter   key.Binding
	ClearFilters key.Binding

	Compose key.Binding
	Reply   key.Binding
	Forward key.Binding

	NextField key.Binding
	PrevField key.Binding
	Send      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Down:         key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Up:           key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Open:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Inbox:        key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "inbox")),
		Sent:         key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "sent")),
		Results:      key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "results")),
		LoadMore:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more")),
		Refresh:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Search:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Filter:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		UndoFilter:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "drop filter")),
		ClearFilters: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear filters")),
		Compose:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "compose")),
		Reply:        key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reply")),
		Forward:      key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "forward")),
		NextField:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Send:         key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "send")),
	}
}

func hints(bindings ...key.Binding) string {
	out := ""
	for i, b := range bindings {
		if i > 0 {
			out += "  "
		}
		h := b.Help()
		out += h.Key + " " + h.Desc
	}
	return out
}
