package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tOgg1/supportdesk/internal/models"
)

// Context remembers the last conversation the operator opened so the
// dashboard can preselect it and `watch` can default to it.
type Context struct {
	ConversationID models.ID `yaml:"conversation,omitempty"`
	// Title is the display title at the time it was opened.
	Title     string    `yaml:"title,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no conversation is remembered.
func (c *Context) IsEmpty() bool {
	return c.ConversationID.IsZero()
}

// SetConversation records id as the last opened conversation.
func (c *Context) SetConversation(id models.ID, title string) {
	c.ConversationID = id
	c.Title = title
	c.UpdatedAt = time.Now()
}

// String returns a human-readable representation of the context.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no conversation)"
	}
	if c.Title == "" {
		return fmt.Sprintf("conversation %s", c.ConversationID)
	}
	return fmt.Sprintf("conversation %s (%s)", c.ConversationID, c.Title)
}

// ContextStore loads and saves the context file.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a store at path, defaulting to StateDir()/context.yaml.
func NewContextStore(path string) *ContextStore {
	if path == "" {
		path = filepath.Join(StateDir(), "context.yaml")
	}
	return &ContextStore{path: path}
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk. A missing file yields an empty context.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}
	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}
	return ctx, nil
}

// Save writes the context to disk.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}
	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}
	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}
