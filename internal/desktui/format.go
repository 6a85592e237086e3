package desktui

import (
	"fmt"
	"strings"

	"github.com/tOgg1/supportdesk/internal/models"
)

// Locale selects role labels and month names.
type Locale string

const (
	LocaleItalian Locale = "it"
	LocaleEnglish Locale = "en"
)

var roleLabels = map[Locale]map[models.Role]string{
	LocaleItalian: {
		models.RoleUser:      "Studente",
		models.RoleAssistant: "Bot",
		models.RoleTeacher:   "Docente",
		models.RoleSystem:    "Sistema",
	},
	LocaleEnglish: {
		models.RoleUser:      "Student",
		models.RoleAssistant: "Assistant",
		models.RoleTeacher:   "Operator",
		models.RoleSystem:    "System",
	},
}

var monthNames = map[Locale][12]string{
	LocaleItalian: {"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"},
	LocaleEnglish: {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
}

func normalizeLocale(locale Locale) Locale {
	switch Locale(strings.ToLower(strings.TrimSpace(string(locale)))) {
	case LocaleEnglish:
		return LocaleEnglish
	default:
		return LocaleItalian
	}
}

// RoleLabel is the display label of role. Unknown roles render as given.
func RoleLabel(locale Locale, role models.Role) string {
	if label, ok := roleLabels[normalizeLocale(locale)][role.Normalize()]; ok {
		return label
	}
	return string(role)
}

// FormatTimestamp renders raw as "dd MMM yyyy HH:mm" in the timestamp's own
// offset. Unparseable input is returned unchanged.
func FormatTimestamp(locale Locale, raw string) string {
	t, ok := models.ParseTimestamp(raw)
	if !ok {
		return raw
	}
	month := monthNames[normalizeLocale(locale)][t.Month()-1]
	return fmt.Sprintf("%02d %s %d %02d:%02d", t.Day(), month, t.Year(), t.Hour(), t.Minute())
}
