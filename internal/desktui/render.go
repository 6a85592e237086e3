package desktui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/supportdesk/internal/conversation"
	"github.com/tOgg1/supportdesk/internal/desktui/styles"
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/models"
)

type phrase int

const (
	phraseLoading phrase = iota
	phraseLoadFailed
	phraseEmpty
	phraseSending
	phraseAlert
	phraseDismiss
	phraseLive
	phraseConnecting
	phraseOffline
)

var phrases = map[Locale]map[phrase]string{
	LocaleItalian: {
		phraseLoading:    "Caricamento conversazione...",
		phraseLoadFailed: "Impossibile caricare la conversazione",
		phraseEmpty:      "Nessun messaggio",
		phraseSending:    "Invio in corso...",
		phraseAlert:      "Invio non riuscito",
		phraseDismiss:    "invio/esc per chiudere",
		phraseLive:       "in diretta",
		phraseConnecting: "connessione",
		phraseOffline:    "disconnesso",
	},
	LocaleEnglish: {
		phraseLoading:    "Loading conversation...",
		phraseLoadFailed: "Could not load the conversation",
		phraseEmpty:      "No messages yet",
		phraseSending:    "Sending...",
		phraseAlert:      "Message not sent",
		phraseDismiss:    "enter/esc to dismiss",
		phraseLive:       "live",
		phraseConnecting: "connecting",
		phraseOffline:    "offline",
	},
}

// Renderer turns session snapshots into text. It keeps no state besides
// styles, so the same View always renders the same way.
type Renderer struct {
	Theme    styles.Theme
	Messages styles.MessageStyles
	Locale   Locale
}

// NewRenderer builds a renderer for theme and locale.
func NewRenderer(theme styles.Theme, locale Locale) Renderer {
	return Renderer{
		Theme:    theme,
		Messages: styles.NewMessageStyles(theme),
		Locale:   normalizeLocale(locale),
	}
}

func (r Renderer) text(p phrase) string {
	return phrases[r.Locale][p]
}

// Header renders the conversation title, the contact handle and the
// connection badge on one line.
func (r Renderer) Header(v conversation.View, width int) string {
	left := r.Theme.HeaderStyle().Render(v.Title())
	if phone := strings.TrimSpace(v.Conversation.StudentPhone); phone != "" && phone != v.Title() {
		left += r.Theme.MutedStyle().Render("  " + phone)
	}
	badge := r.Badge(v.Live)
	gap := width - lipgloss.Width(left) - lipgloss.Width(badge)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + badge
}

// Badge renders the live connection state.
func (r Renderer) Badge(stats live.Stats) string {
	var color, label string
	switch stats.State {
	case live.StateOpen:
		color, label = r.Theme.Status.Open, r.text(phraseLive)
	case live.StateClosed:
		color, label = r.Theme.Status.Closed, r.text(phraseOffline)
		if stats.Reason != "" {
			label += " (" + string(stats.Reason) + ")"
		}
	default:
		color, label = r.Theme.Status.Connecting, r.text(phraseConnecting)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("● " + label)
}

// Body renders what goes in the scrollable area: the loading placeholder, the
// load error indicator, or the timeline.
func (r Renderer) Body(v conversation.View, width int, spinner string) string {
	switch {
	case v.Loading:
		return r.Theme.MutedStyle().Render(strings.TrimSpace(spinner + " " + r.text(phraseLoading)))
	case v.LoadErr != nil:
		return r.Theme.ErrorStyle().Render("✖ "+r.text(phraseLoadFailed)) + "\n" +
			r.Theme.MutedStyle().Render(v.LoadErr.Error())
	case len(v.Messages) == 0:
		return r.Theme.MutedStyle().Render(r.text(phraseEmpty))
	}
	return r.Timeline(v.Messages, width)
}

// Timeline renders messages in order, one bubble each.
func (r Renderer) Timeline(messages []models.Message, width int) string {
	rendered := make([]string, 0, len(messages))
	for _, msg := range messages {
		rendered = append(rendered, r.Message(msg, width))
	}
	return strings.Join(rendered, "\n")
}

// Message renders one message. Student messages sit on the left, everyone
// else on the right.
func (r Renderer) Message(msg models.Message, width int) string {
	role := msg.Role.Normalize()
	return r.Messages.RenderBubble(
		string(role),
		RoleLabel(r.Locale, msg.Role),
		FormatTimestamp(r.Locale, msg.CreatedAt),
		msg.Content,
		width,
		role == models.RoleUser,
	)
}

// Composer renders the input line, with the sending hint below it while a
// send is in flight.
func (r Renderer) Composer(v conversation.View, input string, width int) string {
	box := lipgloss.NewStyle().
		Border(r.Theme.Border(), true, false, false, false).
		BorderForeground(lipgloss.Color(r.Theme.Base.Border))
	if width > 0 {
		box = box.Width(width)
	}
	line := input
	if v.Sending {
		line += "\n" + r.Theme.MutedStyle().Render(r.text(phraseSending))
	}
	return box.Render(line)
}

// Alert renders the blocking send-failure notification, or "" without one.
func (r Renderer) Alert(v conversation.View, width int) string {
	if v.Alert == nil {
		return ""
	}
	box := lipgloss.NewStyle().
		Border(r.Theme.Border()).
		BorderForeground(lipgloss.Color(r.Theme.Base.Error)).
		Padding(0, 1)
	inner := styles.BubbleWidth(width) - 4
	if inner > 0 {
		box = box.Width(inner)
	}
	content := r.Theme.ErrorStyle().Render(r.text(phraseAlert)) + "\n" +
		v.Alert.Error() + "\n" +
		r.Theme.MutedStyle().Render(r.text(phraseDismiss))
	return box.Render(content)
}
