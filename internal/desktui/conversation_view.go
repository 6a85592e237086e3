package desktui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/supportdesk/internal/conversation"
	"github.com/tOgg1/supportdesk/internal/history"
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/models"
)

const composerCharLimit = 4000

type historyLoadedMsg struct {
	result history.Result
}

type liveEventMsg struct {
	events <-chan live.Event
	event  live.Event
}

type liveDrainedMsg struct{}

type sendResultMsg struct {
	result conversation.SendResult
}

type reconnectMsg struct {
	token uint64
}

// conversationView mounts a conversation.Session: it runs the session's I/O
// as commands and feeds the results back on the update loop.
type conversationView struct {
	session  *conversation.Session
	renderer Renderer

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width   int
	height  int
	version uint64
	loading bool
	openErr error
}

func newConversationView(session *conversation.Session, renderer Renderer) *conversationView {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "..."
	input.CharLimit = composerCharLimit

	sp := spinner.New()
	sp.Spinner = spinner.Points

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true

	return &conversationView{
		session:  session,
		renderer: renderer,
		input:    input,
		viewport: vp,
		spinner:  sp,
	}
}

func (v *conversationView) Init() tea.Cmd {
	return nil
}

// Open mounts id, replacing whatever was open.
func (v *conversationView) Open(id models.ID) tea.Cmd {
	load, err := v.session.Open(id)
	if err != nil {
		v.openErr = err
		return nil
	}
	v.openErr = nil
	v.version = 0
	v.input.SetValue(v.session.Input())
	v.input.CursorEnd()
	v.refresh()
	return tea.Batch(
		historyCmd(load),
		waitForLiveCmd(v.session.LiveEvents()),
		v.spinner.Tick,
		v.input.Focus(),
	)
}

// Close tears the session down.
func (v *conversationView) Close() {
	v.session.Close()
	v.input.Reset()
}

func (v *conversationView) capturesText() bool {
	return true
}

func (v *conversationView) Resize(width, height int) {
	v.width = width
	v.height = height
	v.input.Width = maxInt(10, width-4)
	v.refresh()
}

func (v *conversationView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case historyLoadedMsg:
		if v.session.ApplyHistory(typed.result) {
			v.refresh()
		}
		return nil
	case liveEventMsg:
		return v.applyLive(typed)
	case liveDrainedMsg:
		return nil
	case reconnectMsg:
		load := v.session.Reconnect(typed.token)
		if load == nil {
			return nil
		}
		v.refresh()
		return tea.Batch(historyCmd(load), waitForLiveCmd(v.session.LiveEvents()))
	case sendResultMsg:
		if v.session.ApplySend(typed.result) {
			v.input.SetValue(v.session.Input())
			v.input.CursorEnd()
			v.refresh()
		}
		return nil
	case spinner.TickMsg:
		if !v.loading {
			return nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(typed)
		v.refresh()
		return cmd
	case tea.MouseMsg:
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(typed)
		return cmd
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *conversationView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.session.Snapshot().Alert != nil {
		switch msg.String() {
		case "enter", "esc":
			v.session.DismissAlert()
			v.refresh()
		}
		return nil
	}

	switch msg.String() {
	case "esc":
		v.Close()
		return popViewCmd()
	case "enter":
		v.session.SetInput(v.input.Value())
		send, err := v.session.Submit()
		if err != nil {
			return nil
		}
		v.refresh()
		return sendCmd(send)
	case "pgup", "pgdown", "up", "down", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	v.session.SetInput(v.input.Value())
	return cmd
}

func (v *conversationView) applyLive(msg liveEventMsg) tea.Cmd {
	up := v.session.ApplyEvent(msg.event)
	if up.Added || up.StateChanged {
		v.refresh()
	}
	var cmds []tea.Cmd
	if current := v.session.LiveEvents(); current != nil && current == msg.events {
		cmds = append(cmds, waitForLiveCmd(current))
	}
	if up.Reconnect {
		token := up.Token
		cmds = append(cmds, tea.Tick(up.ReconnectIn, func(time.Time) tea.Msg {
			return reconnectMsg{token: token}
		}))
	}
	return tea.Batch(cmds...)
}

// refresh re-renders the scroll area and follows the latest message whenever
// the timeline changed.
func (v *conversationView) refresh() {
	snap := v.session.Snapshot()
	wasLoading := v.loading
	v.loading = snap.Loading

	chrome := lipgloss.Height(v.renderer.Header(snap, v.width)) +
		lipgloss.Height(v.renderer.Composer(snap, v.input.View(), v.width))
	if alert := v.renderer.Alert(snap, v.width); alert != "" {
		chrome += lipgloss.Height(alert)
	}
	v.viewport.Width = maxInt(0, v.width)
	v.viewport.Height = maxInt(1, v.height-chrome)
	v.viewport.SetContent(v.renderer.Body(snap, v.viewport.Width, v.spinner.View()))

	if snap.Version != v.version || wasLoading != snap.Loading {
		v.version = snap.Version
		v.viewport.GotoBottom()
	}
}

func (v *conversationView) View(width, height int) string {
	if v.openErr != nil {
		return v.renderer.Theme.ErrorStyle().Render(v.openErr.Error())
	}
	snap := v.session.Snapshot()
	parts := []string{v.renderer.Header(snap, width), v.viewport.View()}
	if alert := v.renderer.Alert(snap, width); alert != "" {
		parts = append(parts, alert)
	}
	parts = append(parts, v.renderer.Composer(snap, v.input.View(), width))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func historyCmd(load func() history.Result) tea.Cmd {
	return func() tea.Msg {
		return historyLoadedMsg{result: load()}
	}
}

func sendCmd(send func() conversation.SendResult) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{result: send()}
	}
}

// waitForLiveCmd blocks for the next event of one pump. Each delivered event
// schedules the next wait, so at most one read is outstanding per pump.
func waitForLiveCmd(events <-chan live.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return liveDrainedMsg{}
		}
		return liveEventMsg{events: events, event: ev}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
