// Package ui is the terminal mail client. It renders the client store and
// turns key presses into fetch operations and store mutations.
package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jyothri/mailpilot/fetch"
	"github.com/jyothri/mailpilot/model"
	"github.com/jyothri/mailpilot/realtime"
	"github.com/jyothri/mailpilot/store"
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeSearch
	modeFilter
)

// storeChangedMsg is delivered after the store signals a mutation.
type storeChangedMsg struct{}

type opDoneMsg struct {
	op  string
	err error
}

type sentMsg struct {
	err error
}

var errOpenFailed = errors.New("could not load the email")

type Model struct {
	ctx     context.Context
	client  *fetch.Client
	store   *store.Store
	changes <-chan struct{}
	keys    KeyMap
	layout  Layout
	ready   bool

	state    store.State
	cursors  map[model.View]int
	lastList model.View

	mode    inputMode
	search  textinput.Model
	filter  *filterPanel
	compose composeForm
	detail  viewport.Model
	// detailId is the email the viewport currently shows.
	detailId string
	spinner  spinner.Model

	status    string
	statusErr bool
	// newMail is set when the server reported mail the view did not refetch.
	newMail     bool
	seenRefresh uint64
}

func New(ctx context.Context, client *fetch.Client, changes <-chan struct{}) Model {
	si := textinput.New()
	si.Placeholder = "search mail (Gmail syntax)"
	si.Prompt = "/ "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	st := client.Store().Snapshot()
	m := Model{
		ctx:         ctx,
		client:      client,
		store:       client.Store(),
		changes:     changes,
		keys:        DefaultKeyMap(),
		layout:      NewLayout(80, 24),
		state:       st,
		cursors:     map[model.View]int{},
		lastList:    model.ViewInbox,
		search:      si,
		compose:     newComposeForm(),
		detail:      viewport.New(80, 20),
		spinner:     sp,
		seenRefresh: st.RefreshCount,
	}
	return m
}

// Run starts the realtime sync and the terminal program, and blocks until
// the user quits or ctx ends.
func Run(ctx context.Context, client *fetch.Client, sync *realtime.Sync) error {
	changes, cancel := client.Store().Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	go sync.Run(ctx)

	p := tea.NewProgram(New(ctx, client, changes), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running terminal ui: %w", err)
	}
	return nil
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.changes),
		m.spinner.Tick,
		m.run("fetchInbox", m.client.FetchInbox),
	)
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		return m, nil

	case storeChangedMsg:
		m.sync()
		return m, tea.Batch(waitForChange(m.changes), m.onRefresh())

	case opDoneMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("%s failed: %v", msg.op, msg.err))
		}
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Failed to send email: %v", msg.err))
			return m, nil
		}
		m.store.ResetDraft()
		m.store.SetView(model.ViewInbox)
		m.sync()
		m.setStatus("Email sent")
		return m, m.run("fetchInbox", m.client.FetchInbox)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.status = ""
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

// updateFocused forwards non-key messages, such as cursor blinks, to the
// component that has focus.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.mode == modeSearch:
		m.search, cmd = m.search.Update(msg)
	case m.mode == modeFilter && m.filter != nil:
		cmd = m.filter.update(msg)
	case m.state.View == model.ViewCompose:
		cmd = m.compose.update(msg)
	}
	return m, cmd
}

func (m *Model) resize() {
	width := m.layout.Width
	height := m.layout.ContentHeight()
	m.search.Width = width - 4
	m.compose.setSize(width, height)
	m.detail.Width = width - 2
	m.detail.Height = max(height-2, 1)
}

// sync pulls a fresh snapshot and brings the detail viewport and compose form
// in line with it.
func (m *Model) sync() {
	m.state = m.store.Snapshot()
	if isListView(m.state.View) {
		m.lastList = m.state.View
	}
	for _, view := range []model.View{model.ViewInbox, model.ViewSent, model.ViewSearch} {
		n := len(m.emails(view))
		if m.cursors[view] >= n {
			m.cursors[view] = max(n-1, 0)
		}
	}
	m.syncDetail()
	m.compose.syncFrom(m.state.Draft)
	if m.state.View == model.ViewCompose && m.mode == modeBrowse {
		m.compose.focusCurrent()
	}
}

// onRefresh reacts to a bump of the refresh counter. A first inbox page that
// is idle is refetched at once; a paginated or busy view would lose its
// appended pages, so it only shows a banner until the user refreshes.
func (m *Model) onRefresh() tea.Cmd {
	if m.state.RefreshCount == m.seenRefresh {
		return nil
	}
	m.seenRefresh = m.state.RefreshCount
	if m.canAutoRefresh() {
		m.newMail = false
		return m.refetchInbox()
	}
	m.newMail = true
	return nil
}

func (m *Model) canAutoRefresh() bool {
	return m.state.View == model.ViewInbox &&
		!m.state.IsLoading &&
		int64(len(m.state.Inbox)) <= m.client.PageSize()
}

func (m *Model) refetchInbox() tea.Cmd {
	if query := m.state.InboxQuery; query != "" {
		return m.run("filterInbox", func(ctx context.Context) error {
			_, err := m.client.FilterInbox(ctx, query)
			return err
		})
	}
	return m.run("fetchInbox", m.client.FetchInbox)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeFilter:
		return m.handleFilterKey(msg)
	}

	switch m.state.View {
	case model.ViewCompose:
		return m.handleComposeKey(msg)
	case model.ViewDetail:
		if next, cmd, ok := m.handleGlobalKey(msg); ok {
			return next, cmd
		}
		return m.handleDetailKey(msg)
	default:
		if next, cmd, ok := m.handleGlobalKey(msg); ok {
			return next, cmd
		}
		return m.handleListKey(msg)
	}
}

// handleGlobalKey covers the keys shared by the list and detail views.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Inbox):
		m.store.SetView(model.ViewInbox)
		m.sync()
		if len(m.state.Inbox) == 0 {
			return m, m.run("fetchInbox", m.client.FetchInbox), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Sent):
		m.store.SetView(model.ViewSent)
		m.sync()
		if len(m.state.Sent) == 0 {
			return m, m.run("fetchSent", m.client.FetchSent), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Results):
		m.store.SetView(model.ViewSearch)
		m.sync()
		return m, nil, true

	case key.Matches(msg, m.keys.Compose):
		m.store.ResetDraft()
		m.store.SetView(model.ViewCompose)
		m.sync()
		cmd := m.compose.focusFirst()
		return m, cmd, true

	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.search.Reset()
		cmd := m.search.Focus()
		return m, cmd, true
	}
	return m, nil, false
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeBrowse
		m.search.Blur()
		query := m.search.Value()
		if query == "" {
			return m, nil
		}
		ctx := m.ctx
		client := m.client
		return m, func() tea.Msg {
			client.SearchEmails(ctx, query)
			return opDoneMsg{op: "search"}
		}
	case "esc":
		m.mode = modeBrowse
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := m.layout.RenderHeader(m.title(), m.headerStatus())

	var content string
	switch {
	case m.mode == modeFilter && m.filter != nil:
		content = m.filter.view()
	case m.state.View == model.ViewCompose:
		content = m.compose.view()
	case m.state.View == model.ViewDetail:
		content = m.renderDetail()
	default:
		content = m.renderList(m.state.View)
	}
	if m.mode == modeSearch {
		content = m.search.View() + "\n" + content
	}

	return m.layout.RenderWithFrame(header, content, m.layout.RenderStatusBar(m.statusLine()))
}

func (m Model) title() string {
	switch m.state.View {
	case model.ViewSent:
		return "mailpilot · Sent"
	case model.ViewSearch:
		return "mailpilot · Search"
	case model.ViewDetail:
		return "mailpilot · Email"
	case model.ViewCompose:
		return "mailpilot · Compose"
	default:
		return "mailpilot · Inbox"
	}
}

func (m Model) headerStatus() string {
	if m.state.IsLoading {
		return m.spinner.View() + " loading"
	}
	if isListView(m.state.View) {
		return fmt.Sprintf("%d emails", len(m.emails(m.state.View)))
	}
	return ""
}

func (m Model) statusLine() string {
	if m.status != "" {
		if m.statusErr {
			return errorStyle.Render(m.status)
		}
		return successStyle.Render(m.status)
	}
	k := m.keys
	switch {
	case m.mode == modeSearch:
		return "enter search  esc cancel"
	case m.mode == modeFilter:
		return "enter next/apply  esc cancel"
	case m.state.View == model.ViewCompose:
		return hints(k.NextField, k.Send, k.Back)
	case m.state.View == model.ViewDetail:
		return hints(k.Reply, k.Forward, k.Back, k.Quit)
	case m.state.View == model.ViewInbox:
		return hints(k.Open, k.LoadMore, k.Refresh, k.Search, k.Filter, k.Compose, k.Sent, k.Quit)
	default:
		return hints(k.Open, k.LoadMore, k.Inbox, k.Search, k.Compose, k.Quit)
	}
}

func isListView(v model.View) bool {
	return v == model.ViewInbox || v == model.ViewSent || v == model.ViewSearch
}
