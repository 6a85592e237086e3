package desktui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/tOgg1/supportdesk/internal/models"
)

const dashboardLoadTimeout = 15 * time.Second

// ConversationLister provides the dashboard list.
type ConversationLister interface {
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
}

type conversationsLoadedMsg struct {
	items []models.ConversationSummary
	err   error
}

type openConversationMsg struct {
	id    models.ID
	title string
}

func openConversationCmd(id models.ID, title string) tea.Cmd {
	return func() tea.Msg {
		return openConversationMsg{id: id, title: title}
	}
}

type dashboardView struct {
	lister   ConversationLister
	renderer Renderer
	spinner  spinner.Model
	now      func() time.Time

	items     []models.ConversationSummary
	cursor    int
	loading   bool
	err       error
	preselect models.ID
}

func newDashboardView(lister ConversationLister, renderer Renderer, preselect models.ID) *dashboardView {
	sp := spinner.New()
	sp.Spinner = spinner.Points
	return &dashboardView{
		lister:    lister,
		renderer:  renderer,
		spinner:   sp,
		now:       time.Now,
		preselect: preselect,
	}
}

func (v *dashboardView) Init() tea.Cmd {
	v.loading = true
	return tea.Batch(v.loadCmd(), v.spinner.Tick)
}

func (v *dashboardView) loadCmd() tea.Cmd {
	lister := v.lister
	return func() tea.Msg {
		if lister == nil {
			return conversationsLoadedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), dashboardLoadTimeout)
		defer cancel()
		items, err := lister.ListConversations(ctx)
		return conversationsLoadedMsg{items: items, err: err}
	}
}

func (v *dashboardView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case conversationsLoadedMsg:
		v.loading = false
		v.err = typed.err
		if typed.err != nil {
			return nil
		}
		v.setItems(typed.items)
		return nil
	case spinner.TickMsg:
		if !v.loading {
			return nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(typed)
		return cmd
	case tea.KeyMsg:
		switch typed.String() {
		case "up", "k":
			if v.cursor > 0 {
				v.cursor--
			}
		case "down", "j":
			if v.cursor < len(v.items)-1 {
				v.cursor++
			}
		case "r":
			return v.Init()
		case "enter":
			if item, ok := v.selected(); ok {
				v.preselect = item.ID
				return openConversationCmd(item.ID, item.Title())
			}
		}
	}
	return nil
}

func (v *dashboardView) setItems(items []models.ConversationSummary) {
	selected := v.preselect
	if item, ok := v.selected(); ok && selected.IsZero() {
		selected = item.ID
	}
	v.items = items
	v.cursor = 0
	for i, item := range items {
		if item.ID == selected {
			v.cursor = i
			break
		}
	}
}

func (v *dashboardView) selected() (models.ConversationSummary, bool) {
	if v.cursor < 0 || v.cursor >= len(v.items) {
		return models.ConversationSummary{}, false
	}
	return v.items[v.cursor], true
}

func (v *dashboardView) View(width, height int) string {
	theme := v.renderer.Theme
	var b strings.Builder
	b.WriteString(theme.HeaderStyle().Render(dashboardTitle(v.renderer.Locale)))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.items) == 0:
		b.WriteString(theme.MutedStyle().Render(v.spinner.View()))
		return b.String()
	case v.err != nil:
		b.WriteString(theme.ErrorStyle().Render("✖ " + v.err.Error()))
		return b.String()
	case len(v.items) == 0:
		b.WriteString(theme.MutedStyle().Render("-"))
		return b.String()
	}

	now := v.now()
	rows := height - 2
	start := 0
	if rows > 0 && v.cursor >= rows {
		start = v.cursor - rows + 1
	}
	for i := start; i < len(v.items); i++ {
		if rows > 0 && i-start >= rows {
			break
		}
		line := formatSummary(v.items[i], now)
		if i == v.cursor {
			b.WriteString(theme.SelectedStyle().Render("▸ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func dashboardTitle(locale Locale) string {
	if normalizeLocale(locale) == LocaleEnglish {
		return "Conversations"
	}
	return "Conversazioni"
}

func formatSummary(item models.ConversationSummary, now time.Time) string {
	title := item.Title()
	if title == "" {
		title = "#" + item.ID.String()
	}
	parts := []string{title}
	if phone := strings.TrimSpace(item.StudentPhone); phone != "" && phone != title {
		parts = append(parts, phone)
	}
	if status := strings.TrimSpace(item.Status); status != "" {
		parts = append(parts, "["+status+"]")
	}
	parts = append(parts, LastActivity(item, now))
	return strings.Join(parts, "  ")
}

// LastActivity renders a summary's update time relative to now, or "-".
func LastActivity(item models.ConversationSummary, now time.Time) string {
	at, ok := item.LastActivity()
	if !ok {
		return "-"
	}
	if at.After(now) {
		return "now"
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

