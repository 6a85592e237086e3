package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/supportdesk/internal/db"
	"github.com/tOgg1/supportdesk/internal/history"
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/models"
)

func msg(id, role, content, at string) models.Message {
	return models.Message{ID: models.ID(id), Role: models.Role(role), Content: content, CreatedAt: at}
}

func frame(t *testing.T, m models.Message) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"message": m})
	require.NoError(t, err)
	return raw
}

type fakeFetcher struct {
	mu           sync.Mutex
	conversation models.Conversation
	messages     []models.Message
	err          error
	calls        int
}

func (f *fakeFetcher) FetchConversation(ctx context.Context, id models.ID) (models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.Conversation{}, f.err
	}
	c := f.conversation
	c.ID = id
	return c, nil
}

func (f *fakeFetcher) FetchMessages(ctx context.Context, id models.ID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Message(nil), f.messages...), nil
}

func (f *fakeFetcher) set(messages ...models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = messages
}

type sendCall struct {
	id      models.ID
	content string
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
}

func (s *fakeSender) SendMessage(ctx context.Context, id models.ID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sendCall{id: id, content: content})
	return s.err
}

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, f, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu        sync.Mutex
	endpoints []string
	fail      error
	conns     chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint string) (live.Conn, error) {
	d.mu.Lock()
	d.endpoints = append(d.endpoints, endpoint)
	fail := d.fail
	d.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.endpoints...)
}

func (d *fakeDialer) accept(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection dialed")
	}
	return nil
}

type memoryDrafts struct {
	drafts map[models.ID]string
}

func (m *memoryDrafts) Get(_ context.Context, id models.ID) (db.Draft, error) {
	content, ok := m.drafts[id]
	if !ok {
		return db.Draft{}, db.ErrDraftNotFound
	}
	return db.Draft{ConversationID: id, Content: content}, nil
}

func (m *memoryDrafts) Save(_ context.Context, id models.ID, content string) error {
	if content == "" {
		delete(m.drafts, id)
		return nil
	}
	m.drafts[id] = content
	return nil
}

func (m *memoryDrafts) Delete(_ context.Context, id models.ID) error {
	delete(m.drafts, id)
	return nil
}

type fixedPolicy struct {
	delay time.Duration
	max   int
}

func (p fixedPolicy) Next(attempt int) (time.Duration, bool) {
	return p.delay, attempt <= p.max
}

type harness struct {
	session *Session
	fetcher *fakeFetcher
	sender  *fakeSender
	dialer  *fakeDialer
	drafts  *memoryDrafts
}

func newHarness(t *testing.T, policy live.ReconnectPolicy) *harness {
	t.Helper()
	h := &harness{
		fetcher: &fakeFetcher{conversation: models.Conversation{StudentName: "Anna Rossi", StudentPhone: "+39 333 1234567"}},
		sender:  &fakeSender{},
		dialer:  newFakeDialer(),
		drafts:  &memoryDrafts{drafts: map[models.ID]string{}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.session = New(ctx, Deps{
		Fetcher:   h.fetcher,
		Sender:    h.sender,
		Dialer:    h.dialer,
		LiveBase:  "ws://desk.test",
		Reconnect: policy,
		Drafts:    h.drafts,
	})
	t.Cleanup(h.session.Close)
	return h
}

// step applies the next event of the current pump.
func (h *harness) step(t *testing.T) Update {
	t.Helper()
	events := h.session.LiveEvents()
	require.NotNil(t, events, "no live channel")
	select {
	case ev, ok := <-events:
		require.True(t, ok, "live events closed")
		return h.session.ApplyEvent(ev)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live event")
	}
	return Update{}
}

// open mounts id, waits for the channel to open and returns its conn and the
// pending history load.
func (h *harness) open(t *testing.T, id models.ID) (*fakeConn, func() history.Result) {
	t.Helper()
	load, err := h.session.Open(id)
	require.NoError(t, err)
	conn := h.dialer.accept(t)
	up := h.step(t)
	require.True(t, up.StateChanged)
	require.Equal(t, live.StateOpen, h.session.Snapshot().Live.State)
	return conn, load
}

func ids(messages []models.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID.String()
	}
	return out
}
