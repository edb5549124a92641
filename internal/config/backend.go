package config

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Backend describes one Home Assistant instance the dashboard can talk
// to. Values are immutable once constructed; edits replace the whole
// record.
type Backend struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	URL     string `json:"url" yaml:"url"`
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// ConfigError reports a malformed backend configuration. It is raised at
// construction time and never mid-session.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid backend config: %s %s", e.Field, e.Reason)
}

// NewBackend builds an enabled backend with a fresh id, validating the
// URL before anything downstream can see it.
func NewBackend(name, rawURL, token string) (Backend, error) {
	backend := Backend{
		ID:      uuid.NewString(),
		Name:    name,
		URL:     rawURL,
		Token:   token,
		Enabled: true,
	}
	if err := backend.Validate(); err != nil {
		return Backend{}, err
	}
	return backend, nil
}

// Validate checks that the backend URL parses as http or https with a
// non-empty host and that an access token is present.
func (b Backend) Validate() error {
	if b.Token == "" {
		return &ConfigError{Field: "token", Reason: "is empty"}
	}
	parsed, err := url.Parse(b.URL)
	if err != nil {
		return &ConfigError{Field: "url", Reason: fmt.Sprintf("does not parse: %v", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ConfigError{Field: "url", Reason: fmt.Sprintf("scheme %q is not http or https", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return &ConfigError{Field: "url", Reason: "has no host"}
	}
	return nil
}

// WebsocketURL converts the backend's base URL to the ws/wss endpoint of
// the Home Assistant websocket API.
func (b Backend) WebsocketURL() string {
	parsed, err := url.Parse(b.URL)
	if err != nil {
		return b.URL
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	parsed.Path = "/api/websocket"
	return parsed.String()
}
