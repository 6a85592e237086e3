// Package live manages the per-conversation push connection: a transport pump
// that turns socket callbacks into events, and a state machine that consumes
// them on the view goroutine.
package live

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/supportdesk/internal/logging"
	"github.com/tOgg1/supportdesk/internal/metrics"
	"github.com/tOgg1/supportdesk/internal/models"
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CloseReason explains a transition into StateClosed.
type CloseReason string

const (
	ReasonNone       CloseReason = ""
	ReasonRemote     CloseReason = "remote"
	ReasonError      CloseReason = "error"
	ReasonDialFailed CloseReason = "dial_failed"
	ReasonTeardown   CloseReason = "teardown"
)

// EventKind tags a transport event.
type EventKind int

const (
	EventOpen EventKind = iota + 1
	EventFrame
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventFrame:
		return "frame"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one transport callback. Generation identifies the session that
// opened the connection.
type Event struct {
	Generation uint64
	Kind       EventKind
	Frame      []byte
	Err        error
}

// ErrNotIdle is returned by Start on a machine that already left StateIdle.
var ErrNotIdle = errors.New("live channel already started")

// Stats is the observable health of one connection.
type Stats struct {
	State     State
	Reason    CloseReason
	Frames    int
	Messages  int
	Dropped   int
	LastError error
	OpenedAt  time.Time
	ClosedAt  time.Time
}

// Machine is the Idle -> Connecting -> Open -> Closed state machine for one
// connection. Closed is terminal; a reconnect uses a new Machine.
type Machine struct {
	conversationID models.ID
	endpoint       string
	stats          Stats
	logger         zerolog.Logger
	now            func() time.Time
}

// NewMachine returns an idle machine for the conversation's endpoint.
func NewMachine(conversationID models.ID, endpoint string) *Machine {
	metrics.LiveConnections.WithLabelValues(StateIdle.String()).Inc()
	return &Machine{
		conversationID: conversationID,
		endpoint:       endpoint,
		stats:          Stats{State: StateIdle},
		logger:         logging.Component("live").With().Str("conversation_id", conversationID.String()).Logger(),
		now:            time.Now,
	}
}

// ConversationID is the conversation this connection is scoped to.
func (m *Machine) ConversationID() models.ID {
	return m.conversationID
}

// Endpoint is the target address derived from the conversation id.
func (m *Machine) Endpoint() string {
	return m.endpoint
}

// State returns the current state.
func (m *Machine) State() State {
	return m.stats.State
}

// Stats returns a snapshot of the connection health.
func (m *Machine) Stats() Stats {
	return m.stats
}

// Start moves Idle -> Connecting.
func (m *Machine) Start() error {
	if m.stats.State != StateIdle {
		return ErrNotIdle
	}
	m.transition(StateConnecting, ReasonNone)
	m.logger.Debug().Str("endpoint", logging.Redact(m.endpoint)).Msg("connecting")
	return nil
}

// Handle applies a transport event. It returns the decoded message when the
// event is a well-formed chat frame received while Open. Malformed frames are
// counted and dropped; they never change the state.
func (m *Machine) Handle(ev Event) (models.Message, bool) {
	switch ev.Kind {
	case EventOpen:
		if m.stats.State == StateConnecting {
			m.stats.OpenedAt = m.now()
			m.transition(StateOpen, ReasonNone)
			m.logger.Info().Msg("live channel open")
		}
	case EventFrame:
		if m.stats.State != StateOpen {
			return models.Message{}, false
		}
		m.stats.Frames++
		msg, err := DecodeFrame(ev.Frame)
		if err != nil {
			m.stats.Dropped++
			metrics.LiveFrames.WithLabelValues(frameResult(err)).Inc()
			m.logger.Debug().Err(err).Msg("dropping live frame")
			return models.Message{}, false
		}
		m.stats.Messages++
		metrics.LiveFrames.WithLabelValues("message").Inc()
		return msg, true
	case EventError:
		if m.stats.State == StateClosed {
			return models.Message{}, false
		}
		m.stats.LastError = ev.Err
		if m.stats.State == StateConnecting {
			m.close(ReasonDialFailed)
		}
	case EventClose:
		switch m.stats.State {
		case StateConnecting:
			if m.stats.LastError != nil {
				m.close(ReasonDialFailed)
			} else {
				m.close(ReasonRemote)
			}
		case StateOpen:
			if m.stats.LastError != nil {
				m.close(ReasonError)
			} else {
				m.close(ReasonRemote)
			}
		}
	}
	return models.Message{}, false
}

// Close forces the machine into Closed. It returns false when already closed.
func (m *Machine) Close(reason CloseReason) bool {
	if m.stats.State == StateClosed {
		return false
	}
	m.close(reason)
	return true
}

func (m *Machine) close(reason CloseReason) {
	m.stats.ClosedAt = m.now()
	m.transition(StateClosed, reason)
	event := m.logger.Info()
	if m.stats.LastError != nil && reason != ReasonTeardown {
		event = m.logger.Warn().Err(m.stats.LastError)
	}
	event.Str("reason", string(reason)).Msg("live channel closed")
}

func (m *Machine) transition(next State, reason CloseReason) {
	metrics.LiveConnections.WithLabelValues(m.stats.State.String()).Dec()
	m.stats.State = next
	m.stats.Reason = reason
	metrics.LiveConnections.WithLabelValues(next.String()).Inc()
	if next == StateClosed {
		metrics.LiveCloses.WithLabelValues(string(reason)).Inc()
	}
}

func frameResult(err error) string {
	if errors.Is(err, ErrNoPayload) {
		return "no_payload"
	}
	return "malformed"
}
