package desktui

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/supportdesk/internal/config"
	"github.com/tOgg1/supportdesk/internal/models"
)

func summaries() []models.ConversationSummary {
	return []models.ConversationSummary{
		{ID: "a", StudentName: "Anna Rossi", StudentPhone: "+39 333 1234567", UpdatedAt: "2024-03-01T10:00:00Z"},
		{ID: "b", StudentPhone: "+39 320 7654321", Status: "open", UpdatedAt: "2024-03-01T09:00:00Z"},
		{ID: "c"},
	}
}

func TestDashboardPreselectsLastConversation(t *testing.T) {
	store := config.NewContextStore(filepath.Join(t.TempDir(), "context.yaml"))
	last := &config.Context{}
	last.SetConversation("b", "+39 320 7654321")
	require.NoError(t, store.Save(last))

	h := newTUIHarness(t, Config{Contexts: store, Locale: "en"})
	h.lister.items = summaries()
	h.dispatch(h.model.Init())

	dash := h.model.views[ViewDashboard].(*dashboardView)
	h.until(t, func() bool { return !dash.loading })
	require.Equal(t, 1, dash.cursor)

	out := h.model.View()
	require.Contains(t, out, "Conversations")
	require.Contains(t, out, "▸ +39 320 7654321  [open]")
	require.Contains(t, out, "#c")

	h.send(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, 0, dash.cursor)
	h.send(tea.KeyMsg{Type: tea.KeyEnter})
	h.until(t, func() bool { return h.model.activeViewID() == ViewConversation })
	h.dialer.accept(t)
	h.until(t, func() bool { return !h.snapshot().Loading })
	require.Equal(t, models.ID("a"), h.snapshot().ConversationID)

	saved, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, models.ID("a"), saved.ConversationID)
	require.Equal(t, "Anna Rossi", saved.Title)
}

func TestDashboardShowsListError(t *testing.T) {
	h := newTUIHarness(t, Config{})
	h.lister.err = errors.New("401 Unauthorized")
	h.dispatch(h.model.Init())

	dash := h.model.views[ViewDashboard].(*dashboardView)
	h.until(t, func() bool { return !dash.loading })
	require.Contains(t, h.model.View(), "401 Unauthorized")

	h.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewDashboard, h.model.activeViewID())
}

func TestLastActivity(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	items := summaries()

	require.Equal(t, "2 hours ago", LastActivity(items[0], now))
	require.Equal(t, "3 hours ago", LastActivity(items[1], now))
	require.Equal(t, "-", LastActivity(items[2], now))
	require.Equal(t, "now", LastActivity(items[0], now.Add(-time.Hour*3)))
}

func TestGlobalKeys(t *testing.T) {
	h := newTUIHarness(t, Config{})

	cmd := h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	require.Nil(t, cmd)
	require.True(t, h.model.showHelp)

	cmd = h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	require.True(t, ok)

	cmd = h.update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok = cmd().(tea.QuitMsg)
	require.True(t, ok)
}

func TestNewModelRejectsInvalidTheme(t *testing.T) {
	_, err := NewModel(Config{Session: newTUIHarness(t, Config{}).model.session, Theme: "matrix"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid theme")
}

func TestInitialConversationOpensDirectly(t *testing.T) {
	h := newTUIHarness(t, Config{ConversationID: "42"})
	h.dispatch(h.model.Init())
	h.until(t, func() bool { return h.model.activeViewID() == ViewConversation })
	h.dialer.accept(t)
	h.until(t, func() bool { return !h.snapshot().Loading })
	require.Equal(t, models.ID("42"), h.snapshot().ConversationID)
}
