// Package timeline holds the ordered, deduplicated message list of a single
// conversation.
package timeline

import (
	"slices"

	"github.com/tOgg1/supportdesk/internal/models"
)

type entry struct {
	key models.SortKey
	msg models.Message
}

// Store is the timeline of one conversation. Entries stay sorted by
// (created_at, id) and ids are unique: a message whose id is already present is
// ignored. Store is not safe for concurrent use; it is owned by the goroutine
// that drives the view.
type Store struct {
	entries []entry
	ids     map[models.ID]struct{}
	version uint64
}

// New returns an empty timeline.
func New() *Store {
	return &Store{ids: make(map[models.ID]struct{})}
}

// Apply inserts msg at its sorted position. It returns false when the message
// has no id or its id is already stored.
func (s *Store) Apply(msg models.Message) bool {
	if msg.ID.IsZero() {
		return false
	}
	if _, ok := s.ids[msg.ID]; ok {
		return false
	}

	e := entry{key: models.KeyOf(msg), msg: msg}
	n := len(s.entries)
	if n == 0 || s.entries[n-1].key.Compare(e.key) < 0 {
		s.entries = append(s.entries, e)
	} else {
		idx, _ := slices.BinarySearchFunc(s.entries, e.key, func(have entry, want models.SortKey) int {
			return have.key.Compare(want)
		})
		s.entries = slices.Insert(s.entries, idx, e)
	}
	s.ids[msg.ID] = struct{}{}
	s.version++
	return true
}

// Seed merges a bulk history result. Live messages that arrived first are kept;
// duplicates collapse to the stored entry. It returns the number inserted.
func (s *Store) Seed(msgs []models.Message) int {
	added := 0
	for _, msg := range msgs {
		if s.Apply(msg) {
			added++
		}
	}
	return added
}

// Messages returns a copy of the ordered timeline.
func (s *Store) Messages() []models.Message {
	out := make([]models.Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

// Len is the number of stored messages.
func (s *Store) Len() int {
	return len(s.entries)
}

// Contains reports whether id is stored.
func (s *Store) Contains(id models.ID) bool {
	_, ok := s.ids[id]
	return ok
}

// Last returns the latest message.
func (s *Store) Last() (models.Message, bool) {
	if len(s.entries) == 0 {
		return models.Message{}, false
	}
	return s.entries[len(s.entries)-1].msg, true
}

// Version increments on every successful insert. Renderers compare it to
// detect timeline changes.
func (s *Store) Version() uint64 {
	return s.version
}
