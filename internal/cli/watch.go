package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/supportdesk/internal/config"
	"github.com/tOgg1/supportdesk/internal/conversation"
	"github.com/tOgg1/supportdesk/internal/desktui"
	"github.com/tOgg1/supportdesk/internal/history"
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/models"
)

var watchNoFollow bool

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchNoFollow, "no-follow", false, "print the history and exit")
}

var watchCmd = &cobra.Command{
	Use:   "watch [conversation-id]",
	Short: "Stream a conversation to stdout",
	Long: `Print a conversation's history and then every new message as it arrives
on the live channel. Defaults to the last conversation opened in the dashboard.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := resolveConversation(args)
		if err != nil {
			return err
		}

		cfg := GetConfig()
		rt, err := openRuntime(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		session := conversation.New(ctx, rt.sessionDeps())
		watcher := NewWatcher(session, os.Stdout, WatchConfig{
			Locale: desktui.Locale(cfg.UI.Locale),
			JSONL:  IsJSONOutput(),
			Follow: !watchNoFollow,
		})
		return watcher.Watch(ctx, id)
	},
}

// resolveConversation picks the id argument or the remembered context.
func resolveConversation(args []string) (models.ID, error) {
	if len(args) > 0 {
		id := models.ID(args[0])
		if id.IsZero() {
			return "", models.ErrEmptyID
		}
		return id, nil
	}
	last, err := config.NewContextStore("").Load()
	if err != nil {
		return "", fmt.Errorf("load context: %w", err)
	}
	if last.IsEmpty() {
		return "", fmt.Errorf("no conversation given and none opened before")
	}
	return last.ConversationID, nil
}

// WatchConfig configures headless conversation output.
type WatchConfig struct {
	Locale desktui.Locale
	// JSONL writes one JSON object per message.
	JSONL bool
	// Follow keeps streaming live messages after the history is printed.
	Follow bool
}

// Watcher renders a conversation session as lines of text. It owns the
// session: every Apply call happens on the Watch goroutine.
type Watcher struct {
	session *conversation.Session
	out     io.Writer
	config  WatchConfig
	logger  func(string, ...any)

	printed map[models.ID]bool
	header  bool
}

// NewWatcher creates a watcher writing to out.
func NewWatcher(session *conversation.Session, out io.Writer, config WatchConfig) *Watcher {
	return &Watcher{
		session: session,
		out:     out,
		config:  config,
		printed: make(map[models.ID]bool),
		logger: func(format string, args ...any) {
			if IsVerbose() {
				fmt.Fprintf(os.Stderr, format+"\n", args...)
			}
		},
	}
}

type messageRecord struct {
	ConversationID models.ID   `json:"conversation_id"`
	ID             models.ID   `json:"id"`
	Role           models.Role `json:"role"`
	Label          string      `json:"label"`
	Content        string      `json:"content"`
	CreatedAt      string      `json:"created_at"`
}

// Watch streams id until the context is cancelled, the live channel closes
// for good, or, without Follow, the history has been printed.
// Returns nil on graceful shutdown (Ctrl+C).
func (w *Watcher) Watch(ctx context.Context, id models.ID) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			w.logger("Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	load, err := w.session.Open(id)
	if err != nil {
		return err
	}
	defer w.session.Close()

	results := make(chan history.Result, 1)
	runLoad := func(load func() history.Result) {
		go func() {
			res := load()
			select {
			case results <- res:
			case <-ctx.Done():
			}
		}()
	}
	runLoad(load)

	events := w.session.LiveEvents()
	var (
		retry      <-chan time.Time
		retryToken uint64
		// set once the channel closed for good while history was pending
		closed   bool
		closeErr error
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case res := <-results:
			if !w.session.ApplyHistory(res) {
				continue
			}
			snap := w.session.Snapshot()
			if snap.LoadErr != nil {
				return fmt.Errorf("load conversation %s: %w", id, snap.LoadErr)
			}
			if err := w.flush(snap); err != nil {
				return err
			}
			if !w.config.Follow || closed {
				return closeErr
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			up := w.session.ApplyEvent(ev)
			snap := w.session.Snapshot()
			if up.StateChanged {
				w.logger("live channel %s", snap.Live.State)
			}
			if up.Added && !snap.Loading {
				if err := w.write(snap.ConversationID, up.Message); err != nil {
					return err
				}
			}
			if snap.Live.State != live.StateClosed {
				continue
			}
			events = nil
			if !w.config.Follow {
				continue
			}
			if up.Reconnect {
				w.logger("reconnecting in %s", up.ReconnectIn)
				retry = time.After(up.ReconnectIn)
				retryToken = up.Token
				continue
			}
			closeErr = closedError(snap.Live)
			if snap.Loading {
				closed = true
				continue
			}
			return closeErr

		case <-retry:
			retry = nil
			if load := w.session.Reconnect(retryToken); load != nil {
				events = w.session.LiveEvents()
				runLoad(load)
			}
		}
	}
}

// flush prints the timeline messages not printed yet, in order.
func (w *Watcher) flush(snap conversation.View) error {
	if !w.header && !w.config.JSONL {
		w.header = true
		title := snap.Title()
		if phone := snap.Conversation.StudentPhone; phone != "" && phone != title {
			title += " (" + phone + ")"
		}
		if _, err := fmt.Fprintf(w.out, "# %s\n", title); err != nil {
			return err
		}
	}
	for _, msg := range snap.Messages {
		if err := w.write(snap.ConversationID, msg); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) write(conversationID models.ID, msg models.Message) error {
	if w.printed[msg.ID] {
		return nil
	}
	w.printed[msg.ID] = true

	label := desktui.RoleLabel(w.config.Locale, msg.Role)
	if w.config.JSONL {
		data, err := json.Marshal(messageRecord{
			ConversationID: conversationID,
			ID:             msg.ID,
			Role:           msg.Role,
			Label:          label,
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w.out, string(data))
		return err
	}
	_, err := fmt.Fprintf(w.out, "[%s] %s: %s\n", desktui.FormatTimestamp(w.config.Locale, msg.CreatedAt), label, msg.Content)
	return err
}

func closedError(stats live.Stats) error {
	switch stats.Reason {
	case live.ReasonRemote, live.ReasonTeardown:
		return nil
	}
	if stats.LastError != nil {
		return fmt.Errorf("live channel closed (%s): %w", stats.Reason, stats.LastError)
	}
	return fmt.Errorf("live channel closed (%s)", stats.Reason)
}
