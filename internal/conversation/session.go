// Package conversation is the mounted conversation view: one timeline, one
// live channel and one composer per open conversation id.
//
// A Session is owned by a single goroutine (the Bubble Tea update loop or the
// watch loop). I/O happens in the closures it hands out; their results come
// back through the Apply* methods, which drop anything produced for an older
// session.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/supportdesk/internal/compose"
	"github.com/tOgg1/supportdesk/internal/db"
	"github.com/tOgg1/supportdesk/internal/history"
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/logging"
	"github.com/tOgg1/supportdesk/internal/metrics"
	"github.com/tOgg1/supportdesk/internal/models"
	"github.com/tOgg1/supportdesk/internal/timeline"
)

const draftTimeout = 2 * time.Second

// ErrNotOpen is returned by operations that need an open conversation.
var ErrNotOpen = errors.New("no conversation open")

// Drafts persists unsent composer text.
type Drafts interface {
	Get(ctx context.Context, id models.ID) (db.Draft, error)
	Save(ctx context.Context, id models.ID, content string) error
	Delete(ctx context.Context, id models.ID) error
}

// Deps are the collaborators of a Session.
type Deps struct {
	Fetcher history.Fetcher
	Sender  compose.Sender
	Dialer  live.Dialer
	// LiveBase is the ws(s) origin endpoints are derived from.
	LiveBase string
	// Reconnect defaults to live.NoReconnect.
	Reconnect live.ReconnectPolicy
	// Drafts is optional.
	Drafts      Drafts
	EventBuffer int
}

// SendResult is the outcome of a submitted message.
type SendResult struct {
	ConversationID models.ID
	Generation     uint64
	Err            error
}

// Update describes what a live event did.
type Update struct {
	// Message is set when a new message entered the timeline.
	Message models.Message
	Added   bool
	// StateChanged is set when the connection moved to a new state.
	StateChanged bool
	// Reconnect is set when a dropped channel should be reopened after
	// ReconnectIn by calling Session.Reconnect with Token.
	Reconnect   bool
	ReconnectIn time.Duration
	Token       uint64
}

// Session is the state of the conversation view.
type Session struct {
	deps   Deps
	parent context.Context
	logger zerolog.Logger

	// seq feeds both generation and liveGen so the two never collide.
	seq        uint64
	generation uint64
	liveGen    uint64

	ctx    context.Context
	cancel context.CancelFunc

	id              models.ID
	conversation    models.Conversation
	hasConversation bool
	timeline        *timeline.Store
	machine         *live.Machine
	pump            *live.Pump
	composer        compose.Composer

	loading          bool
	loadErr          error
	alert            error
	reconnectAttempt int
}

// New returns a session with nothing open. parent bounds all I/O.
func New(parent context.Context, deps Deps) *Session {
	if deps.Reconnect == nil {
		deps.Reconnect = live.NoReconnect{}
	}
	return &Session{
		deps:     deps,
		parent:   parent,
		logger:   logging.Component("conversation"),
		timeline: timeline.New(),
	}
}

// Open tears down the current conversation, if any, and mounts id: a fresh
// timeline, loading set, and a live channel connecting. The caller runs the
// returned history load and feeds its result to ApplyHistory.
func (s *Session) Open(id models.ID) (func() history.Result, error) {
	if id.IsZero() {
		return nil, models.ErrEmptyID
	}
	endpoint, err := live.Endpoint(s.deps.LiveBase, id)
	if err != nil {
		return nil, err
	}
	s.Close()

	s.seq++
	s.generation = s.seq
	s.ctx, s.cancel = context.WithCancel(s.parent)
	s.id = id
	s.conversation = models.Conversation{}
	s.hasConversation = false
	s.timeline = timeline.New()
	s.composer = compose.Composer{}
	s.loading = true
	s.loadErr = nil
	s.alert = nil
	s.reconnectAttempt = 0
	s.logger = logging.WithConversation("conversation", id.String())
	metrics.StoreMessages.Set(0)

	s.restoreDraft()
	s.connect(endpoint)
	s.logger.Info().Uint64("generation", s.generation).Msg("conversation opened")

	return s.historyTask(), nil
}

func (s *Session) connect(endpoint string) {
	s.seq++
	s.liveGen = s.seq
	s.machine = live.NewMachine(s.id, endpoint)
	_ = s.machine.Start()
	s.pump = live.StartPump(s.ctx, s.deps.Dialer, endpoint, s.liveGen, s.deps.EventBuffer)
}

func (s *Session) historyTask() func() history.Result {
	ctx, fetcher, id, generation := s.ctx, s.deps.Fetcher, s.id, s.generation
	return func() history.Result {
		return history.Load(ctx, fetcher, id, generation)
	}
}

// Close tears the conversation down: the live channel is closed
// synchronously, in-flight results become stale and a non-blank composer is
// saved as a draft. Closing with nothing open is a no-op.
func (s *Session) Close() {
	if !s.IsOpen() {
		return
	}
	if s.pump != nil {
		s.pump.Close()
		s.pump = nil
	}
	if s.machine != nil {
		s.machine.Close(live.ReasonTeardown)
	}
	s.saveDraft()
	s.cancel()
	s.logger.Info().Uint64("generation", s.generation).Msg("conversation closed")

	s.seq++
	s.generation = s.seq
	s.liveGen = 0
	s.id = ""
	s.loading = false
	s.timeline = timeline.New()
	metrics.StoreMessages.Set(0)
}

// IsOpen reports whether a conversation is mounted.
func (s *Session) IsOpen() bool {
	return !s.id.IsZero()
}

// ConversationID is the mounted conversation.
func (s *Session) ConversationID() models.ID {
	return s.id
}

// Generation identifies the mounted conversation instance.
func (s *Session) Generation() uint64 {
	return s.generation
}

// LiveEvents is the current pump's event stream, or nil. The channel is
// closed when the connection goroutine exits.
func (s *Session) LiveEvents() <-chan live.Event {
	if s.pump == nil {
		return nil
	}
	return s.pump.Events()
}

// LiveGeneration is the generation stamped on events of the current pump.
func (s *Session) LiveGeneration() uint64 {
	return s.liveGen
}

// ApplyHistory merges a history result. It returns false for a stale result.
// A failed initial load is recorded for the error indicator; a failed resync
// is only logged.
func (s *Session) ApplyHistory(res history.Result) bool {
	if res.Generation != s.generation || res.ConversationID != s.id || !s.IsOpen() {
		metrics.HistoryLoads.WithLabelValues("stale").Inc()
		return false
	}
	initial := s.loading
	s.loading = false

	if res.Err != nil {
		metrics.HistoryLoads.WithLabelValues("error").Inc()
		if initial {
			s.loadErr = res.Err
		} else {
			s.logger.Warn().Err(res.Err).Msg("history resync failed")
		}
		return true
	}

	metrics.HistoryLoads.WithLabelValues("ok").Inc()
	s.conversation = res.Conversation
	s.hasConversation = true
	s.loadErr = nil
	added := s.timeline.Seed(res.Messages)
	metrics.StoreMessages.Set(float64(s.timeline.Len()))
	s.logger.Debug().
		Int("received", len(res.Messages)).
		Int("added", added).
		Bool("resync", !initial).
		Msg("history applied")
	return true
}

// ApplyEvent feeds a live event to the state machine and the timeline.
// Events from a previous connection or conversation are ignored.
func (s *Session) ApplyEvent(ev live.Event) Update {
	var up Update
	if s.machine == nil || ev.Generation != s.liveGen || s.liveGen == 0 {
		return up
	}
	before := s.machine.State()
	msg, ok := s.machine.Handle(ev)
	after := s.machine.State()
	up.StateChanged = before != after

	if ok && s.timeline.Apply(msg) {
		up.Message = msg
		up.Added = true
		metrics.StoreMessages.Set(float64(s.timeline.Len()))
	}

	switch {
	case after == live.StateOpen && before != live.StateOpen:
		s.reconnectAttempt = 0
	case after == live.StateClosed && before != live.StateClosed:
		s.pump = nil
		s.reconnectAttempt++
		if delay, retry := s.deps.Reconnect.Next(s.reconnectAttempt); retry {
			up.Reconnect = true
			up.ReconnectIn = delay
			up.Token = s.liveGen
			metrics.LiveReconnects.Inc()
			s.logger.Info().
				Int("attempt", s.reconnectAttempt).
				Dur("delay", delay).
				Msg("scheduling live reconnect")
		}
	}
	return up
}

// Reconnect opens a fresh live channel after a drop and returns a background
// history resync. It returns nil when token no longer matches the dropped
// connection, e.g. because the conversation was closed meanwhile.
func (s *Session) Reconnect(token uint64) func() history.Result {
	if !s.IsOpen() || token == 0 || token != s.liveGen || s.machine == nil || s.machine.State() != live.StateClosed {
		return nil
	}
	s.connect(s.machine.Endpoint())
	return s.historyTask()
}

// SetInput replaces the composer text.
func (s *Session) SetInput(text string) {
	s.composer.SetInput(text)
}

// Input returns the composer text.
func (s *Session) Input() string {
	return s.composer.Input()
}

// Submit starts a send of the composer text. Blank input or a send in flight
// return compose.ErrBlankInput or compose.ErrSendInFlight with no state
// change. The caller runs the returned request and passes its result to
// ApplySend. Nothing is added to the timeline; the message arrives through
// the live channel.
func (s *Session) Submit() (func() SendResult, error) {
	if !s.IsOpen() {
		return nil, ErrNotOpen
	}
	req, err := s.composer.Begin(s.id)
	if err != nil {
		return nil, err
	}
	ctx, sender, generation := s.ctx, s.deps.Sender, s.generation
	return func() SendResult {
		err := sender.SendMessage(ctx, req.ConversationID, req.Content)
		return SendResult{ConversationID: req.ConversationID, Generation: generation, Err: err}
	}, nil
}

// ApplySend records a send outcome. It returns false for a stale result.
func (s *Session) ApplySend(res SendResult) bool {
	if res.Generation != s.generation || res.ConversationID != s.id || !s.IsOpen() {
		metrics.Sends.WithLabelValues("stale").Inc()
		return false
	}
	s.composer.Finish(res.Err)
	if res.Err != nil {
		metrics.Sends.WithLabelValues("error").Inc()
		s.alert = res.Err
		s.logger.Warn().Err(res.Err).Msg("send failed")
		return true
	}
	metrics.Sends.WithLabelValues("ok").Inc()
	s.deleteDraft()
	return true
}

// DismissAlert clears the blocking send-failure notification.
func (s *Session) DismissAlert() {
	s.alert = nil
}

// Snapshot returns everything the renderer needs.
func (s *Session) Snapshot() View {
	v := View{
		ConversationID:  s.id,
		Conversation:    s.conversation,
		HasConversation: s.hasConversation,
		Messages:        s.timeline.Messages(),
		Version:         s.timeline.Version(),
		Loading:         s.loading,
		LoadErr:         s.loadErr,
		Sending:         s.composer.Sending(),
		Input:           s.composer.Input(),
		Alert:           s.alert,
	}
	if s.machine != nil {
		v.Live = s.machine.Stats()
	}
	return v
}

func (s *Session) restoreDraft() {
	if s.deps.Drafts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.parent, draftTimeout)
	defer cancel()
	draft, err := s.deps.Drafts.Get(ctx, s.id)
	if err != nil {
		if !errors.Is(err, db.ErrDraftNotFound) {
			s.logger.Warn().Err(err).Msg("failed to load draft")
		}
		return
	}
	s.composer.SetInput(draft.Content)
}

func (s *Session) saveDraft() {
	if s.deps.Drafts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.parent, draftTimeout)
	defer cancel()
	if err := s.deps.Drafts.Save(ctx, s.id, s.composer.Input()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to save draft")
	}
}

func (s *Session) deleteDraft() {
	if s.deps.Drafts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.parent, draftTimeout)
	defer cancel()
	if err := s.deps.Drafts.Delete(ctx, s.id); err != nil {
		s.logger.Warn().Err(err).Msg("failed to delete draft")
	}
}
