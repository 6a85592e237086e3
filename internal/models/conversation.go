package models

import (
	"strings"
	"time"
)

// Conversation is the metadata of one student thread.
type Conversation struct {
	ID           ID     `json:"id"`
	StudentName  string `json:"student_name"`
	StudentPhone string `json:"student_phone"`
}

// Title is the display name, falling back to the contact handle.
func (c Conversation) Title() string {
	if name := strings.TrimSpace(c.StudentName); name != "" {
		return name
	}
	return strings.TrimSpace(c.StudentPhone)
}

// ConversationSummary is one row of the dashboard list.
type ConversationSummary struct {
	ID           ID     `json:"id"`
	StudentName  string `json:"student_name"`
	StudentPhone string `json:"student_phone"`
	Status       string `json:"status,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// Title mirrors Conversation.Title.
func (s ConversationSummary) Title() string {
	return Conversation{StudentName: s.StudentName, StudentPhone: s.StudentPhone}.Title()
}

// LastActivity parses UpdatedAt.
func (s ConversationSummary) LastActivity() (time.Time, bool) {
	return ParseTimestamp(s.UpdatedAt)
}
