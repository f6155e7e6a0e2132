package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jyothri/mailpilot/fetch"
	"github.com/jyothri/mailpilot/model"
	"github.com/jyothri/mailpilot/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApi struct {
	mu       sync.Mutex
	queries  []string
	modified []string
	sent     int

	failModify bool
}

func (f *fakeApi) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/gmail/messages":
		q := r.URL.Query().Get("q")
		f.queries = append(f.queries, q)
		json.NewEncoder(w).Encode(fetch.Page{Messages: []model.EmailSummary{{Id: "r1", Sender: "Result", Subject: "for " + q}}})
	case r.URL.Path == "/api/gmail/messages/u1":
		json.NewEncoder(w).Encode(model.EmailDetail{
			Id: "u1", ThreadId: "t1", Sender: "Uber Receipts", SenderEmail: "noreply@uber.com",
			Subject: "Your trip", Body: "Thanks for riding", IsRead: false,
		})
	case strings.HasSuffix(r.URL.Path, "/modify") && f.failModify:
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"code": "UPSTREAM", "message": "gmail unavailable"})
	case strings.HasSuffix(r.URL.Path, "/modify"):
		f.modified = append(f.modified, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/api/gmail/send":
		f.sent++
		json.NewEncoder(w).Encode(fetch.SendResult{Id: "s1"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestModel(t *testing.T, pageSize int64) (Model, *store.Store, *fakeApi) {
	t.Helper()
	api := &fakeApi{}
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)
	st := store.New()
	client := fetch.NewClient(fetch.NewAPI(ts.URL, "key"), st, pageSize)
	m := New(context.Background(), client, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), st, api
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEscape}
	ctrlS = tea.KeyMsg{Type: tea.KeyCtrlS}
)

func changed(m Model) Model {
	next, _ := m.Update(storeChangedMsg{})
	return next.(Model)
}

var inbox = []model.EmailSummary{
	{Id: "a1", Sender: "Alice", Subject: "Lunch", IsRead: true},
	{Id: "u1", Sender: "Uber Receipts", Subject: "Your trip"},
}

func TestOpenSelectedEmail(t *testing.T) {
	m, st, api := newTestModel(t, 100)
	st.ReplaceInbox(inbox, "", "")
	m = changed(m)
	assert.Contains(t, m.View(), "Uber Receipts")

	m, cmd := press(t, m, runes("j"), enter)
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, opDoneMsg{op: "open"}, msg)

	snap := st.Snapshot()
	assert.Equal(t, model.ViewDetail, snap.View)
	require.NotNil(t, snap.CurrentEmail)
	assert.Equal(t, "u1", snap.CurrentEmail.Id)
	assert.Equal(t, []string{"/api/gmail/messages/u1/modify"}, api.modified)

	m = changed(m)
	assert.Contains(t, m.View(), "Thanks for riding")

	m, _ = press(t, m, esc)
	assert.Equal(t, model.ViewInbox, st.Snapshot().View)
}

func TestOpenEmailReportsMarkReadFailure(t *testing.T) {
	m, st, api := newTestModel(t, 100)
	api.mu.Lock()
	api.failModify = true
	api.mu.Unlock()
	st.ReplaceInbox(inbox, "", "")
	m = changed(m)

	m, cmd := press(t, m, runes("j"), enter)
	require.NotNil(t, cmd)
	msg, ok := cmd().(opDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "mark read", msg.op)
	assert.Error(t, msg.err)
	assert.Empty(t, api.modified)

	snap := st.Snapshot()
	assert.Equal(t, model.ViewDetail, snap.View, "the email stays open")

	next, _ := m.Update(msg)
	m = next.(Model)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "mark read failed")
}

func TestRefreshBump(t *testing.T) {
	m, st, _ := newTestModel(t, 100)
	st.ReplaceInbox(inbox, "next", "")
	m = changed(m)

	st.TriggerRefresh()
	m.sync()
	assert.NotNil(t, m.onRefresh(), "a first page refetches")
	assert.False(t, m.newMail)
	assert.Nil(t, m.onRefresh(), "one bump, one refetch")

	m, st, _ = newTestModel(t, 1)
	st.ReplaceInbox(inbox, "", "")
	st.TriggerRefresh()
	m.sync()
	assert.Nil(t, m.onRefresh(), "appended pages are kept")
	assert.True(t, m.newMail)
	assert.Contains(t, m.View(), "New mail has arrived")

	_, cmd := press(t, m, runes("r"))
	assert.NotNil(t, cmd)
}

func TestRefreshBumpOutsideInbox(t *testing.T) {
	m, st, _ := newTestModel(t, 100)
	st.SetView(model.ViewSent)
	st.TriggerRefresh()
	m.sync()
	assert.Nil(t, m.onRefresh())
	assert.True(t, m.newMail)
}

func TestComposeFollowsStoreDraft(t *testing.T) {
	m, st, _ := newTestModel(t, 100)

	st.SetView(model.ViewCompose)
	st.SetDraft(model.ComposeData{To: "jane@x.com", Subject: "Re: Report", Body: "hi", InReplyTo: "m1", ThreadId: "t1"})
	m = changed(m)
	assert.Equal(t, "jane@x.com", m.compose.to.Value())
	assert.Equal(t, "Re: Report", m.compose.subject.Value())
	assert.Equal(t, "hi", m.compose.body.Value())
	assert.Contains(t, m.View(), "Replying in thread t1")
}

func TestComposeTypingEditsDraft(t *testing.T) {
	m, st, api := newTestModel(t, 100)

	m, _ = press(t, m, runes("c"))
	assert.Equal(t, model.ViewCompose, st.Snapshot().View)

	m, _ = press(t, m, runes("a@b.c"))
	assert.Equal(t, "a@b.c", st.Snapshot().Draft.To)

	m, cmd := press(t, m, ctrlS)
	assert.Nil(t, cmd)
	assert.True(t, m.statusErr)
	assert.Equal(t, 0, api.sent)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab}, runes("Hello"))
	assert.Equal(t, "Hello", st.Snapshot().Draft.Subject)

	m, cmd = press(t, m, ctrlS)
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, 1, api.sent)
	snap := st.Snapshot()
	assert.Equal(t, model.ComposeData{}, snap.Draft)
	assert.Equal(t, model.ViewInbox, snap.View)
	assert.Equal(t, "Email sent", m.status)
}

func TestSearchPrompt(t *testing.T) {
	m, st, api := newTestModel(t, 100)

	m, _ = press(t, m, runes("/"))
	assert.Equal(t, modeSearch, m.mode)
	m, cmd := press(t, m, runes("invoice"), enter)
	assert.Equal(t, modeBrowse, m.mode)
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []string{"invoice"}, api.queries)
	snap := st.Snapshot()
	assert.Equal(t, model.ViewSearch, snap.View)
	require.Len(t, snap.SearchResults, 1)
}

func TestUndoFilter(t *testing.T) {
	m, st, api := newTestModel(t, 100)
	st.SetFilters(model.EmailFilters{Sender: "uber", UnreadOnly: true})
	st.ReplaceInbox(inbox, "", "in:inbox category:primary from:uber is:unread")
	m = changed(m)
	assert.Contains(t, m.View(), "from: uber")

	_, cmd := press(t, m, runes("u"))
	require.NotNil(t, cmd)
	assert.Equal(t, opDoneMsg{op: "removeFilter"}, cmd())
	assert.Equal(t, []string{"in:inbox category:primary from:uber"}, api.queries)
	assert.Equal(t, model.EmailFilters{Sender: "uber"}, st.Snapshot().Filters)
}

func TestDetailRendersHtmlOnlyMail(t *testing.T) {
	html := "<p>Hello&amp;bye</p><div>see you</div>"
	content := detailContent(model.EmailDetail{Id: "h1", Sender: "Shop", Body: html, BodyHtml: html}, 0)
	assert.Contains(t, content, "Hello&bye\nsee you")
	assert.NotContains(t, content, "<p>")
}

func TestFormatRow(t *testing.T) {
	row := formatRow(model.EmailSummary{Sender: "A very long sender name that overflows", Subject: "Hi"}, 80)
	assert.True(t, strings.HasPrefix(row, "● "))
	assert.Contains(t, row, "…")
	assert.Contains(t, row, "Hi")
}
