package live

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tOgg1/supportdesk/internal/models"
)

// Frame decoding errors. Both are recoverable: the frame is dropped and the
// connection stays open.
var (
	ErrMalformedFrame = errors.New("malformed live frame")
	ErrNoPayload      = errors.New("live frame carries no message")
)

type frameEnvelope struct {
	Message *framePayload `json:"message"`
}

type framePayload struct {
	ID        models.ID   `json:"id"`
	Role      models.Role `json:"role"`
	Content   *string     `json:"content"`
	CreatedAt string      `json:"created_at"`
}

// DecodeFrame extracts the chat message from a live frame of the form
// {"message": {"id", "role", "content", "created_at"}}. Extra fields are
// ignored.
func DecodeFrame(raw []byte) (models.Message, error) {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Message == nil {
		return models.Message{}, ErrNoPayload
	}
	payload := env.Message
	if payload.Content == nil {
		return models.Message{}, fmt.Errorf("%w: content: missing", ErrMalformedFrame)
	}
	msg := models.Message{
		ID:        payload.ID,
		Role:      payload.Role.Normalize(),
		Content:   *payload.Content,
		CreatedAt: payload.CreatedAt,
	}
	if err := msg.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return msg, nil
}
