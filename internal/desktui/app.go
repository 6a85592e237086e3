// Package desktui is the Bubble Tea front end: a dashboard list and the
// conversation view.
package desktui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/tOgg1/supportdesk/internal/config"
	"github.com/tOgg1/supportdesk/internal/conversation"
	"github.com/tOgg1/supportdesk/internal/desktui/styles"
	"github.com/tOgg1/supportdesk/internal/logging"
	"github.com/tOgg1/supportdesk/internal/models"
)

type ViewID string

const (
	ViewDashboard    ViewID = "dashboard"
	ViewConversation ViewID = "conversation"
)

type Config struct {
	Session *conversation.Session
	Lister  ConversationLister
	// Contexts remembers the last opened conversation. Optional.
	Contexts *config.ContextStore
	Theme    string
	Locale   string
	// ConversationID opens a conversation right away.
	ConversationID models.ID
}

type Model struct {
	session  *conversation.Session
	contexts *config.ContextStore
	renderer Renderer
	logger   zerolog.Logger
	initial  models.ID

	width    int
	height   int
	showHelp bool

	viewStack    []ViewID
	views        map[ViewID]viewModel
	conversation *conversationView
}

type viewModel interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int) string
}

type popViewMsg struct{}

func popViewCmd() tea.Cmd {
	return func() tea.Msg {
		return popViewMsg{}
	}
}

func NewModel(cfg Config) (*Model, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("conversation session is required")
	}
	if _, ok := styles.Themes[cfg.Theme]; !ok && strings.TrimSpace(cfg.Theme) != "" {
		return nil, fmt.Errorf("invalid theme %q", cfg.Theme)
	}

	renderer := NewRenderer(styles.Lookup(cfg.Theme), Locale(cfg.Locale))
	m := &Model{
		session:   cfg.Session,
		contexts:  cfg.Contexts,
		renderer:  renderer,
		logger:    logging.Component("tui"),
		initial:   cfg.ConversationID,
		viewStack: []ViewID{ViewDashboard},
		views:     make(map[ViewID]viewModel),
	}

	var preselect models.ID
	if m.contexts != nil {
		// Non-fatal: a missing or unreadable context only loses the preselection.
		if last, err := m.contexts.Load(); err == nil {
			preselect = last.ConversationID
		} else {
			m.logger.Debug().Err(err).Msg("no saved context")
		}
	}

	m.conversation = newConversationView(cfg.Session, renderer)
	m.views[ViewDashboard] = newDashboardView(cfg.Lister, renderer, preselect)
	m.views[ViewConversation] = m.conversation
	return m, nil
}

func Run(cfg Config) error {
	model, err := NewModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = program.Run()
	return err
}

// Close tears down the open conversation, saving its draft.
func (m *Model) Close() error {
	if m == nil || m.conversation == nil {
		return nil
	}
	m.conversation.Close()
	return nil
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{}
	if view := m.activeView(); view != nil {
		cmds = append(cmds, view.Init())
	}
	if !m.initial.IsZero() {
		cmds = append(cmds, openConversationCmd(m.initial, ""))
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.conversation.Resize(m.width, m.contentHeight())
		return m, nil
	case openConversationMsg:
		m.pushView(ViewConversation)
		m.rememberConversation(typed.id, typed.title)
		return m, m.conversation.Open(typed.id)
	case popViewMsg:
		m.popView()
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case historyLoadedMsg, liveEventMsg, liveDrainedMsg, sendResultMsg, reconnectMsg:
		// Session results are routed regardless of the active view; stale
		// ones are dropped by the session.
		return m, m.conversation.Update(msg)
	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(typed); handled {
			return m, cmd
		}
	}

	if active := m.activeView(); active != nil {
		return m, active.Update(msg)
	}
	return m, nil
}

func (m *Model) View() string {
	active := m.activeView()
	if active == nil {
		return "no active view"
	}
	footer := m.renderFooter()
	body := active.View(m.width, m.contentHeight())
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

func (m *Model) contentHeight() int {
	h := m.height - lipgloss.Height(m.renderFooter())
	if h < 0 {
		return 0
	}
	return h
}

func (m *Model) renderFooter() string {
	var hint string
	switch m.activeViewID() {
	case ViewConversation:
		hint = "enter send · esc back · pgup/pgdown scroll · ctrl+c quit"
	default:
		hint = "↑/↓ select · enter open · r refresh · ? help · q quit"
	}
	if m.showHelp {
		hint += "\n" + helpText(m.renderer.Locale)
	}
	return m.renderer.Theme.FooterStyle().Render(hint)
}

func helpText(locale Locale) string {
	if locale == LocaleEnglish {
		return "Messages you send appear once the server echoes them on the live channel."
	}
	return "I messaggi inviati compaiono quando il server li rimanda sul canale live."
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return tea.Quit, true
	}
	if capturer, ok := m.activeView().(interface{ capturesText() bool }); ok && capturer.capturesText() {
		return nil, false
	}
	switch msg.String() {
	case "q":
		return tea.Quit, true
	case "?":
		m.showHelp = !m.showHelp
		m.conversation.Resize(m.width, m.contentHeight())
		return nil, true
	}
	return nil, false
}

func (m *Model) rememberConversation(id models.ID, title string) {
	if m.contexts == nil {
		return
	}
	ctx := &config.Context{}
	ctx.SetConversation(id, title)
	if err := m.contexts.Save(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to save context")
	}
}

func (m *Model) activeView() viewModel {
	return m.views[m.activeViewID()]
}

func (m *Model) activeViewID() ViewID {
	if len(m.viewStack) == 0 {
		return ViewDashboard
	}
	return m.viewStack[len(m.viewStack)-1]
}

func (m *Model) pushView(id ViewID) {
	if _, ok := m.views[id]; !ok {
		return
	}
	if m.activeViewID() == id {
		return
	}
	m.viewStack = append(m.viewStack, id)
}

func (m *Model) popView() {
	if len(m.viewStack) <= 1 {
		return
	}
	m.viewStack = m.viewStack[:len(m.viewStack)-1]
}
