package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const (
	bubbleShare    = 0.75
	minBubbleWidth = 16
	// border plus horizontal padding
	bubbleChrome = 4
)

// MessageStyles contains pre-built styles for message rendering.
type MessageStyles struct {
	Theme Theme

	Label     lipgloss.Style
	Timestamp lipgloss.Style
	Body      lipgloss.Style
	Bubble    lipgloss.Style
}

// NewMessageStyles builds a reusable style set for messages.
func NewMessageStyles(theme Theme) MessageStyles {
	return MessageStyles{
		Theme:     theme,
		Label:     lipgloss.NewStyle().Bold(true),
		Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Muted)),
		Body:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Foreground)),
		Bubble:    lipgloss.NewStyle().Border(theme.Border()).Padding(0, 1),
	}
}

// RoleColor is the accent color for a message role. Unknown roles get the
// unknown color.
func (s MessageStyles) RoleColor(role string) lipgloss.Color {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return lipgloss.Color(s.Theme.Role.User)
	case "assistant":
		return lipgloss.Color(s.Theme.Role.Assistant)
	case "teacher":
		return lipgloss.Color(s.Theme.Role.Teacher)
	case "system":
		return lipgloss.Color(s.Theme.Role.System)
	default:
		return lipgloss.Color(s.Theme.Role.Unknown)
	}
}

// RenderHeader renders "label timestamp" in the role color.
func (s MessageStyles) RenderHeader(role, label, timestamp string) string {
	labelText := s.Label.Foreground(s.RoleColor(role)).Render(label)
	if strings.TrimSpace(timestamp) == "" {
		return labelText
	}
	return labelText + " " + s.Timestamp.Render(timestamp)
}

// RenderBody renders wrapped body text.
func (s MessageStyles) RenderBody(body string, width int) string {
	return s.Body.Render(wrapMessageBody(body, width))
}

// RenderBubble renders one message as a bordered bubble placed against the
// left or right edge of a line width cells wide.
func (s MessageStyles) RenderBubble(role, label, timestamp, body string, width int, left bool) string {
	inner := BubbleWidth(width) - bubbleChrome
	if inner < 1 {
		inner = 1
	}
	content := s.RenderHeader(role, label, timestamp)
	if body != "" {
		content += "\n" + s.RenderBody(body, inner)
	}
	bubble := s.Bubble.BorderForeground(s.RoleColor(role)).Render(content)
	if width <= 0 {
		return bubble
	}
	pos := lipgloss.Right
	if left {
		pos = lipgloss.Left
	}
	return lipgloss.PlaceHorizontal(width, pos, bubble)
}

// BubbleWidth is the widest a bubble may grow within a line of width cells.
func BubbleWidth(width int) int {
	if width <= 0 {
		return minBubbleWidth
	}
	w := int(float64(width) * bubbleShare)
	if w < minBubbleWidth {
		w = minBubbleWidth
	}
	if w > width {
		w = width
	}
	return w
}

func wrapMessageBody(body string, width int) string {
	if width <= 0 {
		return body
	}

	parts := strings.Split(body, "\n")
	for i := range parts {
		parts[i] = wordwrap.String(parts[i], width)
	}
	return strings.Join(parts, "\n")
}
