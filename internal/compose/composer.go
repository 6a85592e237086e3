// Package compose implements the guarded send path of the conversation view.
package compose

import (
	"context"
	"errors"
	"strings"

	"github.com/tOgg1/supportdesk/internal/models"
)

// Composer errors. Both mean nothing was sent and no flag changed.
var (
	ErrBlankInput   = errors.New("message is blank")
	ErrSendInFlight = errors.New("a send is already in flight")
)

// Sender submits operator messages. The acknowledgement is ignored; the
// message reaches the timeline only through the live channel.
type Sender interface {
	SendMessage(ctx context.Context, id models.ID, content string) error
}

// Request is one accepted submission.
type Request struct {
	ConversationID models.ID
	Content        string
}

// Composer holds the input text and the sending flag. It is not safe for
// concurrent use; the view goroutine owns it.
type Composer struct {
	input   string
	sending bool
}

// SetInput replaces the input text. It is allowed while sending.
func (c *Composer) SetInput(text string) {
	c.input = text
}

// Input returns the raw input text.
func (c *Composer) Input() string {
	return c.input
}

// Sending reports whether a submission is in flight.
func (c *Composer) Sending() bool {
	return c.sending
}

// CanSubmit reports whether Begin would accept the current input.
func (c *Composer) CanSubmit() bool {
	return !c.sending && strings.TrimSpace(c.input) != ""
}

// Begin validates the input and marks a send in flight. On error the composer
// is untouched.
func (c *Composer) Begin(id models.ID) (Request, error) {
	if id.IsZero() {
		return Request{}, models.ErrEmptyID
	}
	if c.sending {
		return Request{}, ErrSendInFlight
	}
	content := strings.TrimSpace(c.input)
	if content == "" {
		return Request{}, ErrBlankInput
	}
	c.sending = true
	return Request{ConversationID: id, Content: content}, nil
}

// Finish records the outcome of the request started by Begin: success clears
// the input, failure keeps it. Sending is cleared either way.
func (c *Composer) Finish(err error) {
	c.sending = false
	if err == nil {
		c.input = ""
	}
}

// Submit runs Begin, the request and Finish in one call for callers without
// an event loop.
func (c *Composer) Submit(ctx context.Context, sender Sender, id models.ID) error {
	req, err := c.Begin(id)
	if err != nil {
		return err
	}
	err = sender.SendMessage(ctx, req.ConversationID, req.Content)
	c.Finish(err)
	return err
}
