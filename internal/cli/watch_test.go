package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tOgg1/supportdesk/internal/api"
	"github.com/tOgg1/supportdesk/internal/conversation"
	"github.com/tOgg1/supportdesk/internal/desktui"
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/models"
)

// backend serves conversation 42 over REST and streams frames on its live
// channel, then closes normally unless hold is set.
type backend struct {
	*httptest.Server
	frames [][]byte
	hold   bool
}

func newBackend(t *testing.T, frames [][]byte, hold bool) *backend {
	t.Helper()
	b := &backend{frames: frames, hold: hold}
	upgrader := websocket.Upgrader{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/conversations/42":
			writeData(w, models.Conversation{ID: "42", StudentName: "Anna Rossi", StudentPhone: "+39 333 1234567"})
		case "/api/conversations/42/messages":
			writeData(w, []map[string]any{
				{"id": 2, "role": "assistant", "content": "hello there", "created_at": "2024-03-01T10:00:05Z"},
				{"id": 1, "role": "user", "content": "ciao", "created_at": "2024-03-01T10:00:00Z"},
			})
		case "/ws/conversations/42":
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			for _, frame := range b.frames {
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			}
			if b.hold {
				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						return
					}
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		default:
			http.Error(w, "conversation not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(b.Close)
	return b
}

func writeData(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func newTestSession(t *testing.T, b *backend) *conversation.Session {
	t.Helper()
	client, err := api.NewClient(api.Config{BaseURL: b.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	liveBase, err := live.BaseFromAPI(b.URL)
	if err != nil {
		t.Fatalf("live base: %v", err)
	}
	return conversation.New(context.Background(), conversation.Deps{
		Fetcher:  client,
		Sender:   client,
		Dialer:   live.NewWebsocketDialer(live.WebsocketConfig{HandshakeTimeout: 2 * time.Second}),
		LiveBase: liveBase,
	})
}

func watch(t *testing.T, b *backend, id models.ID, cfg WatchConfig) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	watcher := NewWatcher(newTestSession(t, b), &buf, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := watcher.Watch(ctx, id)
	if ctx.Err() != nil {
		t.Fatalf("watch did not finish: %v", ctx.Err())
	}
	return buf.String(), err
}

func TestWatcherPrintsHistoryThenLive(t *testing.T) {
	b := newBackend(t, [][]byte{
		[]byte(`{"message":{"id":3,"role":"teacher","content":"I'm here","created_at":"2024-03-01T10:01:00Z"}}`),
		[]byte(`{"message":{"id":2,"role":"assistant","content":"hello there","created_at":"2024-03-01T10:00:05Z"}}`),
		[]byte(`not json`),
	}, false)

	out, err := watch(t, b, "42", WatchConfig{Locale: desktui.LocaleEnglish, Follow: true})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	want := strings.Join([]string{
		"# Anna Rossi (+39 333 1234567)",
		"[01 Mar 2024 10:00] Student: ciao",
		"[01 Mar 2024 10:00] Assistant: hello there",
		"[01 Mar 2024 10:01] Operator: I'm here",
		"",
	}, "\n")
	if out != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", out, want)
	}
}

func TestWatcherNoFollowWritesJSONL(t *testing.T) {
	b := newBackend(t, nil, true)

	out, err := watch(t, b, "42", WatchConfig{Locale: desktui.LocaleItalian, JSONL: true})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	var first messageRecord
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if first.ID != "1" || first.Label != "Studente" || first.ConversationID != "42" {
		t.Fatalf("unexpected first record: %+v", first)
	}
}

func TestWatcherReportsLoadFailure(t *testing.T) {
	b := newBackend(t, nil, false)

	out, err := watch(t, b, "404", WatchConfig{Follow: true})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "conversation not found") {
		t.Fatalf("error should carry the server message, got %v", err)
	}
	if out != "" {
		t.Fatalf("nothing should be printed, got %q", out)
	}
}

func TestResolveConversation(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	if _, err := resolveConversation(nil); err == nil {
		t.Fatal("expected an error without a remembered conversation")
	}

	id, err := resolveConversation([]string{"77"})
	if err != nil || id != "77" {
		t.Fatalf("resolveConversation(77) = %q, %v", id, err)
	}
}

func TestClosedError(t *testing.T) {
	if err := closedError(live.Stats{Reason: live.ReasonRemote}); err != nil {
		t.Fatalf("remote close is not an error: %v", err)
	}
	if err := closedError(live.Stats{Reason: live.ReasonDialFailed}); err == nil {
		t.Fatal("dial failure should be reported")
	}
}
