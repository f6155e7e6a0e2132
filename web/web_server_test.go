package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jyothri/mailpilot/db"
	"github.com/jyothri/mailpilot/mailbox"
	"github.com/jyothri/mailpilot/model"
	"github.com/jyothri/mailpilot/notification"
	"github.com/stretchr/testify/require"
)

const testSessionKey = "session-key-0123456789ab"

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]db.Session
	watches  map[string]db.Watch
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: map[string]db.Session{
			testSessionKey: {ClientKey: testSessionKey, RefreshToken: "refresh", Email: "jane.doe@example.com", DisplayName: "jan****oe@example.com"},
		},
		watches: map[string]db.Watch{},
	}
}

func (f *fakeSessions) SaveSession(ctx context.Context, session db.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ClientKey] = session
	return nil
}

func (f *fakeSessions) GetSession(ctx context.Context, clientKey string) (db.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[clientKey]
	if !ok {
		return db.Session{}, db.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessions) DeleteSession(ctx context.Context, clientKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[clientKey]; !ok {
		return db.ErrSessionNotFound
	}
	delete(f.sessions, clientKey)
	delete(f.watches, clientKey)
	return nil
}

func (f *fakeSessions) SaveWatch(ctx context.Context, watch db.Watch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches[watch.ClientKey] = watch
	return nil
}

func (f *fakeSessions) GetWatch(ctx context.Context, clientKey string) (db.Watch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.watches[clientKey]
	if !ok {
		return db.Watch{}, db.ErrWatchNotFound
	}
	return w, nil
}

func (f *fakeSessions) ExpiringWatches(ctx context.Context, before time.Time) ([]db.Watch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var watches []db.Watch
	for _, w := range f.watches {
		if w.Expiration.Before(before) {
			watches = append(watches, w)
		}
	}
	return watches, nil
}

type modifyCall struct {
	id          string
	add, remove []string
}

type fakeMailbox struct {
	mu         sync.Mutex
	listResult mailbox.ListResult
	listErr    error
	lastList   mailbox.ListOptions
	details    map[string]model.EmailDetail
	sent       []mailbox.OutgoingMessage
	sendErr    error
	modified   []modifyCall
	topics     []string
	identity   string
}

func (f *fakeMailbox) List(ctx context.Context, opts mailbox.ListOptions) (mailbox.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = opts
	return f.listResult, f.listErr
}

func (f *fakeMailbox) Get(ctx context.Context, id string) (model.EmailDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	detail, ok := f.details[id]
	if !ok {
		return model.EmailDetail{}, mailbox.ErrNotFound
	}
	return detail, nil
}

func (f *fakeMailbox) Send(ctx context.Context, msg mailbox.OutgoingMessage) (mailbox.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return mailbox.SendResult{}, f.sendErr
	}
	f.sent = append(f.sent, msg)
	threadId := msg.ThreadId
	if threadId == "" {
		threadId = "thread-new"
	}
	return mailbox.SendResult{Id: "sent-1", ThreadId: threadId}, nil
}

func (f *fakeMailbox) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified = append(f.modified, modifyCall{id: id, add: add, remove: remove})
	return nil
}

func (f *fakeMailbox) Watch(ctx context.Context, topic string) (mailbox.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return mailbox.Subscription{HistoryId: 4242, Expiration: time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeMailbox) Identity(ctx context.Context) (string, error) {
	return f.identity, nil
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	sessions *fakeSessions
	mailbox  *fakeMailbox
	hub      *notification.Hub
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		sessions: newFakeSessions(),
		mailbox:  &fakeMailbox{details: map[string]model.EmailDetail{}, identity: "new.user@example.com"},
		hub:      notification.NewHub(),
	}
	env.server = NewServer(opts, env.sessions, env.hub, func(ctx context.Context, session db.Session) (mailbox.Mailbox, error) {
		return env.mailbox, nil
	})
	env.handler = env.server.Handler()
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testSessionKey)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func dbWatch(clientKey, topic string, expiration time.Time) db.Watch {
	return db.Watch{ClientKey: clientKey, Topic: topic, Expiration: expiration}
}
