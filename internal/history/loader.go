// Package history fetches the metadata and prior messages of a conversation.
package history

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/supportdesk/internal/logging"
	"github.com/tOgg1/supportdesk/internal/metrics"
	"github.com/tOgg1/supportdesk/internal/models"
)

// Fetcher is the request/response collaborator.
type Fetcher interface {
	FetchConversation(ctx context.Context, id models.ID) (models.Conversation, error)
	FetchMessages(ctx context.Context, id models.ID) ([]models.Message, error)
}

// Result is the outcome of one load. Err is set when either request failed;
// Conversation and Messages are then zero.
type Result struct {
	ConversationID models.ID
	Generation     uint64
	Conversation   models.Conversation
	Messages       []models.Message
	Err            error
	Elapsed        time.Duration
}

// OK reports whether the load succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Load issues both requests concurrently and waits for both. The first
// failure cancels the other request. Messages that fail validation are
// skipped rather than failing the load.
func Load(ctx context.Context, fetcher Fetcher, id models.ID, generation uint64) Result {
	result := Result{ConversationID: id, Generation: generation}
	if id.IsZero() {
		result.Err = models.ErrEmptyID
		return result
	}

	logger := logging.WithConversation("history", id.String())
	start := time.Now()

	var (
		conversation models.Conversation
		messages     []models.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := fetcher.FetchConversation(gctx, id)
		if err != nil {
			return fmt.Errorf("fetch conversation: %w", err)
		}
		conversation = c
		return nil
	})
	g.Go(func() error {
		m, err := fetcher.FetchMessages(gctx, id)
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}
		messages = m
		return nil
	})
	err := g.Wait()
	result.Elapsed = time.Since(start)
	metrics.HistoryLoadSeconds.Observe(result.Elapsed.Seconds())

	if err != nil {
		result.Err = err
		logger.Warn().Err(err).Dur("elapsed", result.Elapsed).Msg("history load failed")
		return result
	}

	result.Conversation = conversation
	result.Messages = make([]models.Message, 0, len(messages))
	skipped := 0
	for _, msg := range messages {
		msg.Role = msg.Role.Normalize()
		if err := msg.Validate(); err != nil {
			skipped++
			logger.Debug().Err(err).Msg("skipping invalid history message")
			continue
		}
		result.Messages = append(result.Messages, msg)
	}
	logger.Debug().
		Int("messages", len(result.Messages)).
		Int("skipped", skipped).
		Dur("elapsed", result.Elapsed).
		Msg("history loaded")
	return result
}
