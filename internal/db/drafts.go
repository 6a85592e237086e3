package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tOgg1/supportdesk/internal/models"
)

// ErrDraftNotFound is returned when a conversation has no saved draft.
var ErrDraftNotFound = errors.New("draft not found")

// Draft is unsent composer text for one conversation.
type Draft struct {
	ConversationID models.ID
	Content        string
	UpdatedAt      time.Time
}

// DraftRepository persists drafts.
type DraftRepository struct {
	db  *DB
	now func() time.Time
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(db *DB) *DraftRepository {
	return &DraftRepository{db: db, now: time.Now}
}

// Get returns the saved draft for id.
func (r *DraftRepository) Get(ctx context.Context, id models.ID) (Draft, error) {
	if id.IsZero() {
		return Draft{}, models.ErrEmptyID
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT conversation_id, content, updated_at
		FROM drafts
		WHERE conversation_id = ?
	`, id.String())
	return scanDraft(row)
}

// Save stores content for id. Blank content deletes the draft instead.
func (r *DraftRepository) Save(ctx context.Context, id models.ID, content string) error {
	if id.IsZero() {
		return models.ErrEmptyID
	}
	if strings.TrimSpace(content) == "" {
		return r.Delete(ctx, id)
	}
	updatedAt := r.now().UTC().Format(time.RFC3339Nano)
	return r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drafts (conversation_id, content, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(conversation_id) DO UPDATE SET
				content = excluded.content,
				updated_at = excluded.updated_at
		`, id.String(), content, updatedAt)
		if err != nil {
			return fmt.Errorf("failed to save draft: %w", err)
		}
		return nil
	})
}

// Delete removes the draft for id. Deleting a missing draft is not an error.
func (r *DraftRepository) Delete(ctx context.Context, id models.ID) error {
	if id.IsZero() {
		return models.ErrEmptyID
	}
	return withRetry(ctx, defaultRetryAttempts, defaultRetryBackoff, func() error {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE conversation_id = ?`, id.String()); err != nil {
			return fmt.Errorf("failed to delete draft: %w", err)
		}
		return nil
	})
}

// List returns all drafts, most recently updated first.
func (r *DraftRepository) List(ctx context.Context) ([]Draft, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, content, updated_at
		FROM drafts
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}
	return drafts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (Draft, error) {
	var (
		draft     Draft
		id        string
		updatedAt string
	)
	if err := row.Scan(&id, &draft.Content, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Draft{}, ErrDraftNotFound
		}
		return Draft{}, fmt.Errorf("failed to scan draft: %w", err)
	}
	draft.ConversationID = models.ID(id)
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		draft.UpdatedAt = ts
	}
	return draft, nil
}
