// Package store holds the client's mailbox state. All changes go through the
// named mutators below; none of them performs I/O.
package store

import (
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jyothri/mailpilot/model"
)

// State is a point-in-time copy of the client state.
type State struct {
	View model.View

	Inbox          []model.EmailSummary
	InboxPageToken string
	// InboxQuery is the query the inbox was last listed under; empty for the
	// plain label listing. Load-more continues under it.
	InboxQuery string

	Sent          []model.EmailSummary
	SentPageToken string

	SearchResults []model.EmailSummary

	CurrentEmail *model.EmailDetail
	Draft        model.ComposeData
	Filters      model.EmailFilters

	IsLoading bool
	// InFlight names the operations currently loading, sorted.
	InFlight []string

	// RefreshCount only grows. A bump means the server saw new mail.
	RefreshCount uint64
	// Version grows on every mutation.
	Version uint64
}

type LoadToken string

// ComposePatch edits the user-editable draft fields. A nil field is left
// unchanged. Reply context cannot be edited through a patch.
type ComposePatch struct {
	To      *string
	Subject *string
	Body    *string
}

type Store struct {
	mu          sync.Mutex
	state       State
	loading     map[LoadToken]string
	subscribers map[int]chan struct{}
	nextSub     int
}

func New() *Store {
	return &Store{
		state:       State{View: model.ViewInbox},
		loading:     make(map[LoadToken]string),
		subscribers: make(map[int]chan struct{}),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe returns a channel that receives a signal after mutations and a
// func that stops the subscription. Signals coalesce: a slow reader sees one
// pending signal, not one per mutation.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.state.Version++
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) SetView(view model.View) {
	s.update(func(st *State) { st.View = view })
}

// ReplaceInbox swaps the whole inbox list, its cursor and the query it was
// listed under.
func (s *Store) ReplaceInbox(emails []model.EmailSummary, pageToken, query string) {
	emails = cloneSummaries(emails)
	s.update(func(st *State) {
		st.Inbox = emails
		st.InboxPageToken = pageToken
		st.InboxQuery = query
	})
}

// AppendInbox adds a further page and advances the cursor. The active query
// is kept.
func (s *Store) AppendInbox(emails []model.EmailSummary, pageToken string) {
	emails = cloneSummaries(emails)
	s.update(func(st *State) {
		st.Inbox = append(st.Inbox, emails...)
		st.InboxPageToken = pageToken
	})
}

func (s *Store) ReplaceSent(emails []model.EmailSummary, pageToken string) {
	emails = cloneSummaries(emails)
	s.update(func(st *State) {
		st.Sent = emails
		st.SentPageToken = pageToken
	})
}

func (s *Store) AppendSent(emails []model.EmailSummary, pageToken string) {
	emails = cloneSummaries(emails)
	s.update(func(st *State) {
		st.Sent = append(st.Sent, emails...)
		st.SentPageToken = pageToken
	})
}

func (s *Store) SetSearchResults(emails []model.EmailSummary) {
	emails = cloneSummaries(emails)
	s.update(func(st *State) { st.SearchResults = emails })
}

// SetCurrentEmail replaces the open email; nil closes it.
func (s *Store) SetCurrentEmail(email *model.EmailDetail) {
	email = cloneDetail(email)
	s.update(func(st *State) { st.CurrentEmail = email })
}

// SetDraft replaces the draft, reply context included. Reply context is kept
// only when both InReplyTo and ThreadId are present.
func (s *Store) SetDraft(draft model.ComposeData) {
	if !draft.IsReply() {
		draft.InReplyTo = ""
		draft.ThreadId = ""
	}
	s.update(func(st *State) { st.Draft = draft })
}

func (s *Store) EditDraft(patch ComposePatch) {
	s.update(func(st *State) {
		if patch.To != nil {
			st.Draft.To = *patch.To
		}
		if patch.Subject != nil {
			st.Draft.Subject = *patch.Subject
		}
		if patch.Body != nil {
			st.Draft.Body = *patch.Body
		}
	})
}

func (s *Store) SetDraftBody(body string) {
	s.EditDraft(ComposePatch{Body: &body})
}

func (s *Store) ResetDraft() {
	s.update(func(st *State) { st.Draft = model.ComposeData{} })
}

func (s *Store) SetFilters(filters model.EmailFilters) {
	s.update(func(st *State) { st.Filters = filters })
}

func (s *Store) ResetFilters() {
	s.update(func(st *State) { st.Filters = model.EmailFilters{} })
}

// BeginLoading marks op as in flight until EndLoading is called with the
// returned token.
func (s *Store) BeginLoading(op string) LoadToken {
	token := LoadToken(uuid.NewString())
	s.update(func(st *State) {
		s.loading[token] = op
		s.syncLoading(st)
	})
	return token
}

// EndLoading clears a token. Unknown or already ended tokens are ignored.
func (s *Store) EndLoading(token LoadToken) {
	s.update(func(st *State) {
		delete(s.loading, token)
		s.syncLoading(st)
	})
}

func (s *Store) syncLoading(st *State) {
	ops := make([]string, 0, len(s.loading))
	for _, op := range s.loading {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	st.InFlight = ops
	st.IsLoading = len(ops) > 0
}

func (s *Store) TriggerRefresh() {
	s.update(func(st *State) { st.RefreshCount++ })
}

func (st State) clone() State {
	c := st
	c.Inbox = cloneSummaries(st.Inbox)
	c.Sent = cloneSummaries(st.Sent)
	c.SearchResults = cloneSummaries(st.SearchResults)
	c.CurrentEmail = cloneDetail(st.CurrentEmail)
	c.InFlight = slices.Clone(st.InFlight)
	return c
}

func cloneSummaries(emails []model.EmailSummary) []model.EmailSummary {
	if emails == nil {
		return nil
	}
	c := make([]model.EmailSummary, len(emails))
	for i, e := range emails {
		e.Labels = slices.Clone(e.Labels)
		c[i] = e
	}
	return c
}

func cloneDetail(email *model.EmailDetail) *model.EmailDetail {
	if email == nil {
		return nil
	}
	c := *email
	c.Labels = slices.Clone(email.Labels)
	return &c
}
