package live

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/supportdesk/internal/models"
)

func nextEvent(t *testing.T, p *Pump) Event {
	t.Helper()
	select {
	case ev, ok := <-p.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func drained(t *testing.T, p *Pump) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not exit")
	}
	for ev := range p.Events() {
		t.Fatalf("unexpected event after close: %+v", ev)
	}
}

type liveServer struct {
	*httptest.Server
	paths chan string
	auth  chan string
	conns chan *websocket.Conn
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	s := &liveServer{
		paths: make(chan string, 4),
		auth:  make(chan string, 4),
		conns: make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.paths <- r.URL.Path
		s.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *liveServer) endpoint(t *testing.T, id string) string {
	t.Helper()
	base, err := BaseFromAPI(s.URL + "/api")
	require.NoError(t, err)
	endpoint, err := Endpoint(base, models.ID(id))
	require.NoError(t, err)
	return endpoint
}

func (s *liveServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket connection")
	}
	return nil
}

func TestPumpWebsocketRoundTrip(t *testing.T) {
	srv := newLiveServer(t)
	dialer := NewWebsocketDialer(WebsocketConfig{Token: "secret-token"})

	p := StartPump(context.Background(), dialer, srv.endpoint(t, "42"), 7, 0)
	defer p.Close()

	conn := srv.accept(t)
	require.Equal(t, "/ws/conversations/42", <-srv.paths)
	require.Equal(t, "Bearer secret-token", <-srv.auth)

	ev := nextEvent(t, p)
	require.Equal(t, EventOpen, ev.Kind)
	require.Equal(t, uint64(7), ev.Generation)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(chatFrame)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))

	ev = nextEvent(t, p)
	require.Equal(t, EventFrame, ev.Kind)
	require.JSONEq(t, chatFrame, string(ev.Frame))
	ev = nextEvent(t, p)
	require.Equal(t, EventFrame, ev.Kind)
	require.Equal(t, "garbage", string(ev.Frame))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	ev = nextEvent(t, p)
	require.Equal(t, EventClose, ev.Kind)
	require.NoError(t, ev.Err)
	drained(t, p)
}

func TestPumpDrivesMachine(t *testing.T) {
	srv := newLiveServer(t)
	p := StartPump(context.Background(), NewWebsocketDialer(WebsocketConfig{}), srv.endpoint(t, "42"), 1, 0)
	defer p.Close()
	conn := srv.accept(t)

	m := NewMachine("42", srv.endpoint(t, "42"))
	require.NoError(t, m.Start())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(chatFrame)))
	_ = conn.Close()

	var got []string
	for ev := range p.Events() {
		if msg, ok := m.Handle(ev); ok {
			got = append(got, msg.ID.String())
		}
	}
	require.Equal(t, []string{"1"}, got)
	require.Equal(t, StateClosed, m.State())
	require.Equal(t, ReasonError, m.Stats().Reason)
}

func TestPumpDialFailure(t *testing.T) {
	srv := newLiveServer(t)
	endpoint := srv.endpoint(t, "42")
	srv.Close()

	p := StartPump(context.Background(), NewWebsocketDialer(WebsocketConfig{HandshakeTimeout: time.Second}), endpoint, 3, 0)
	ev := nextEvent(t, p)
	require.Equal(t, EventError, ev.Kind)
	require.Error(t, ev.Err)
	require.Equal(t, EventClose, nextEvent(t, p).Kind)
	drained(t, p)
}

func TestPumpCloseStopsEvents(t *testing.T) {
	srv := newLiveServer(t)
	p := StartPump(context.Background(), NewWebsocketDialer(WebsocketConfig{}), srv.endpoint(t, "42"), 1, 0)
	conn := srv.accept(t)
	require.Equal(t, EventOpen, nextEvent(t, p).Kind)

	p.Close()
	p.Close()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(chatFrame))
	drained(t, p)
}

type blockingDialer struct {
	started chan struct{}
}

func (d blockingDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	close(d.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPumpCloseDuringDialEmitsNothing(t *testing.T) {
	d := blockingDialer{started: make(chan struct{})}
	p := StartPump(context.Background(), d, "ws://unused/ws/conversations/1", 1, 0)
	<-d.started
	p.Close()
	drained(t, p)
}

type scriptedConn struct {
	mu     sync.Mutex
	frames []string
	err    error
	closed bool
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return 0, nil, c.err
	}
	next := c.frames[0]
	c.frames = c.frames[1:]
	return websocket.TextMessage, []byte(next), nil
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type staticDialer struct{ conn Conn }

func (d staticDialer) Dial(context.Context, string) (Conn, error) { return d.conn, nil }

func TestPumpReportsReadErrorBeforeClose(t *testing.T) {
	conn := &scriptedConn{frames: []string{"a", "b"}, err: errors.New("connection reset")}
	p := StartPump(context.Background(), staticDialer{conn: conn}, "ws://x", 9, 0)

	var kinds []string
	for ev := range p.Events() {
		require.Equal(t, uint64(9), ev.Generation)
		kinds = append(kinds, ev.Kind.String())
	}
	require.Equal(t, "open,frame,frame,error,close", strings.Join(kinds, ","))
}

func TestPumpCleanEOFHasNoError(t *testing.T) {
	conn := &scriptedConn{err: io.EOF}
	p := StartPump(context.Background(), staticDialer{conn: conn}, "ws://x", 1, 0)

	var kinds []string
	for ev := range p.Events() {
		kinds = append(kinds, ev.Kind.String())
	}
	require.Equal(t, []string{"open", "close"}, kinds)
}
