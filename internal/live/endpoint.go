package live

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tOgg1/supportdesk/internal/models"
)

const conversationPath = "/ws/conversations/"

// BaseFromAPI derives the websocket origin from the HTTP API base: same host,
// http becomes ws and https becomes wss. The API path is dropped.
func BaseFromAPI(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(apiBase))
	if err != nil {
		return "", fmt.Errorf("parse api base: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api base %q has no host", apiBase)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String(), nil
}

// Endpoint is the live channel address for a conversation. It depends only on
// base and the id.
func Endpoint(base string, id models.ID) (string, error) {
	if id.IsZero() {
		return "", models.ErrEmptyID
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse live base: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("live base must be ws:// or wss://, got %q", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + conversationPath + url.PathEscape(id.String())
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
