package desktui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/supportdesk/internal/conversation"
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/models"
)

type stubFetcher struct {
	conversation models.Conversation
	messages     []models.Message
	err          error
}

func (f *stubFetcher) FetchConversation(ctx context.Context, id models.ID) (models.Conversation, error) {
	if f.err != nil {
		return models.Conversation{}, f.err
	}
	c := f.conversation
	c.ID = id
	return c, nil
}

func (f *stubFetcher) FetchMessages(ctx context.Context, id models.ID) ([]models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Message(nil), f.messages...), nil
}

type stubSender struct {
	mu       sync.Mutex
	contents []string
	err      error
}

func (s *stubSender) SendMessage(ctx context.Context, id models.ID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents = append(s.contents, content)
	return s.err
}

func (s *stubSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.contents...)
}

type stubConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *stubConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, f, nil
	case <-c.closed:
		return 0, nil, errors.New("closed")
	}
}

func (c *stubConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type stubDialer struct {
	conns chan *stubConn
}

func (d *stubDialer) Dial(ctx context.Context, endpoint string) (live.Conn, error) {
	c := &stubConn{frames: make(chan []byte, 8), closed: make(chan struct{})}
	d.conns <- c
	return c, nil
}

func (d *stubDialer) accept(t *testing.T) *stubConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection dialed")
	}
	return nil
}

type stubLister struct {
	items []models.ConversationSummary
	err   error
}

func (l *stubLister) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	return l.items, l.err
}

type tuiHarness struct {
	model   *Model
	fetcher *stubFetcher
	sender  *stubSender
	dialer  *stubDialer
	lister  *stubLister
	msgs    chan tea.Msg
}

func newTUIHarness(t *testing.T, cfg Config) *tuiHarness {
	t.Helper()
	h := &tuiHarness{
		fetcher: &stubFetcher{conversation: models.Conversation{StudentName: "Anna Rossi", StudentPhone: "+39 333 1234567"}},
		sender:  &stubSender{},
		dialer:  &stubDialer{conns: make(chan *stubConn, 4)},
		lister:  &stubLister{},
		msgs:    make(chan tea.Msg, 64),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg.Session = conversation.New(ctx, conversation.Deps{
		Fetcher:  h.fetcher,
		Sender:   h.sender,
		Dialer:   h.dialer,
		LiveBase: "ws://desk.test",
	})
	if cfg.Lister == nil {
		cfg.Lister = h.lister
	}
	model, err := NewModel(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, model.Close())
	})
	h.model = model
	h.update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

func (h *tuiHarness) update(msg tea.Msg) tea.Cmd {
	_, cmd := h.model.Update(msg)
	return cmd
}

// send delivers msg like the program loop would and schedules the commands
// it returns.
func (h *tuiHarness) send(msg tea.Msg) {
	h.dispatch(h.update(msg))
}

func (h *tuiHarness) dispatch(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, sub := range batch {
				h.dispatch(sub)
			}
			return
		}
		if msg != nil {
			h.msgs <- msg
		}
	}()
}

// until runs the update loop until cond holds.
func (h *tuiHarness) until(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case msg := <-h.msgs:
			h.send(msg)
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		}
	}
}

func (h *tuiHarness) snapshot() conversation.View {
	return h.model.session.Snapshot()
}

func chatFrame(t *testing.T, m models.Message) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"message": m})
	require.NoError(t, err)
	return raw
}

func runeKeys(text string) []tea.KeyMsg {
	keys := make([]tea.KeyMsg, 0, len(text))
	for _, r := range text {
		keys = append(keys, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return keys
}
