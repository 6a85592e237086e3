package models

import "strings"

// Role is the speaker kind of a message.
type Role string

const (
	// RoleUser is the student.
	RoleUser Role = "user"
	// RoleAssistant is the automated assistant.
	RoleAssistant Role = "assistant"
	// RoleTeacher is the human operator answering from the dashboard.
	RoleTeacher Role = "teacher"
	// RoleSystem marks system-generated messages.
	RoleSystem Role = "system"
)

// KnownRoles lists the fixed set of roles in display order.
var KnownRoles = []Role{RoleUser, RoleAssistant, RoleTeacher, RoleSystem}

// Normalize lowercases and trims the role.
func (r Role) Normalize() Role {
	return Role(strings.ToLower(strings.TrimSpace(string(r))))
}

// IsKnown reports whether r is one of KnownRoles.
func (r Role) IsKnown() bool {
	switch r.Normalize() {
	case RoleUser, RoleAssistant, RoleTeacher, RoleSystem:
		return true
	}
	return false
}
