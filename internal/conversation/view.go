package conversation

import (
	"github.com/tOgg1/supportdesk/internal/live"
	"github.com/tOgg1/supportdesk/internal/models"
)

// View is a render-ready copy of session state.
type View struct {
	ConversationID  models.ID
	Conversation    models.Conversation
	HasConversation bool
	Messages        []models.Message
	// Version changes whenever the timeline gains a message.
	Version uint64
	Loading bool
	LoadErr error
	Sending bool
	Input   string
	// Alert is a send failure awaiting dismissal.
	Alert error
	Live  live.Stats
}

// Title is the header title, falling back to the conversation id.
func (v View) Title() string {
	if title := v.Conversation.Title(); title != "" {
		return title
	}
	return "#" + v.ConversationID.String()
}
