// Package api is the HTTP client for the support backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/supportdesk/internal/logging"
	"github.com/tOgg1/supportdesk/internal/models"
)

const (
	defaultTimeout = 15 * time.Second
	apiPrefix      = "/api"
	maxErrorBody   = 4 << 10
)

// StatusError is a non-2xx response. Its message is the response body, or
// the status text when the body is empty.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	if text := http.StatusText(e.Status); text != "" {
		return text
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin; "/api" is appended unless already present.
	BaseURL string
	// Token is sent as a bearer Authorization header when set.
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the REST API.
type Client struct {
	base       *url.URL
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https, got %q", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("api base url %q has no host", cfg.BaseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	if !strings.HasSuffix(base.Path, apiPrefix) {
		base.Path += apiPrefix
	}
	base.RawQuery = ""
	base.Fragment = ""

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:       base,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
		logger:     logging.Component("api"),
	}, nil
}

// BaseURL is the resolved API root including the /api prefix.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// FetchConversation returns the conversation metadata.
func (c *Client) FetchConversation(ctx context.Context, id models.ID) (models.Conversation, error) {
	var conv models.Conversation
	if id.IsZero() {
		return conv, models.ErrEmptyID
	}
	if err := c.do(ctx, http.MethodGet, conversationPath(id), nil, &conv); err != nil {
		return models.Conversation{}, err
	}
	if conv.ID.IsZero() {
		conv.ID = id
	}
	return conv, nil
}

// FetchMessages returns the prior messages of a conversation in server order.
func (c *Client) FetchMessages(ctx context.Context, id models.ID) ([]models.Message, error) {
	if id.IsZero() {
		return nil, models.ErrEmptyID
	}
	var messages []models.Message
	if err := c.do(ctx, http.MethodGet, conversationPath(id)+"/messages", nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts operator content. The acknowledgement body is discarded.
func (c *Client) SendMessage(ctx context.Context, id models.ID, content string) error {
	if id.IsZero() {
		return models.ErrEmptyID
	}
	body := struct {
		Content string `json:"content"`
	}{Content: content}
	return c.do(ctx, http.MethodPost, conversationPath(id)+"/messages", body, nil)
}

// ListConversations returns the dashboard rows.
func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var rows []models.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func conversationPath(id models.ID) string {
	return "/conversations/" + url.PathEscape(id.String())
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := decodeEnvelope(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeEnvelope accepts both {"data": ...} and a bare payload.
func decodeEnvelope(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err == nil {
			if data, ok := env["data"]; ok {
				return json.Unmarshal(data, out)
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}
