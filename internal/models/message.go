package models

import (
	"errors"
	"strings"
	"time"
)

// Message validation errors.
var (
	ErrMissingID        = errors.New("id is required")
	ErrMissingRole      = errors.New("role is required")
	ErrMissingCreatedAt = errors.New("created_at is required")
)

// Message is a single chat entry.
type Message struct {
	ID        ID     `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Time parses CreatedAt.
func (m Message) Time() (time.Time, bool) {
	return ParseTimestamp(m.CreatedAt)
}

// Validate checks the fields required for a message to enter a timeline.
func (m Message) Validate() error {
	validation := &ValidationErrors{}
	if m.ID.IsZero() {
		validation.Add("id", ErrMissingID)
	}
	if strings.TrimSpace(string(m.Role)) == "" {
		validation.Add("role", ErrMissingRole)
	}
	if strings.TrimSpace(m.CreatedAt) == "" {
		validation.Add("created_at", ErrMissingCreatedAt)
	}
	return validation.Err()
}

// CompareMessages is the timeline order: creation time, then id. Messages with
// an unparseable timestamp sort before parsed ones, by raw value.
func CompareMessages(a, b Message) int {
	at, aok := a.Time()
	bt, bok := b.Time()
	return compareKeys(at, aok, a.CreatedAt, a.ID, bt, bok, b.CreatedAt, b.ID)
}

// SortKey is a precomputed CompareMessages key.
type SortKey struct {
	At     time.Time
	Parsed bool
	Raw    string
	ID     ID
}

// KeyOf builds the sort key for m.
func KeyOf(m Message) SortKey {
	at, ok := m.Time()
	return SortKey{At: at, Parsed: ok, Raw: m.CreatedAt, ID: m.ID}
}

// Compare orders two keys like CompareMessages.
func (k SortKey) Compare(other SortKey) int {
	return compareKeys(k.At, k.Parsed, k.Raw, k.ID, other.At, other.Parsed, other.Raw, other.ID)
}

func compareKeys(at time.Time, aok bool, araw string, aid ID, bt time.Time, bok bool, braw string, bid ID) int {
	switch {
	case aok && bok:
		if c := at.Compare(bt); c != 0 {
			return c
		}
	case aok:
		return 1
	case bok:
		return -1
	default:
		if c := strings.Compare(araw, braw); c != 0 {
			return c
		}
	}
	return CompareIDs(aid, bid)
}
