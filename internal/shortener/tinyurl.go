// Package shortener turns lobby join links into short HTTP links.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalnet/lobbybot/internal/fetch"
)

// ErrEmptyResponse is returned when the service answers without a link.
var ErrEmptyResponse = errors.New("shortener: empty response")

// DefaultBaseURL is the TinyURL creation endpoint
const DefaultBaseURL = "https://tinyurl.com/api-create.php"

// TinyURL is a client for the TinyURL creation API.
type TinyURL struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a TinyURL client.
func New(baseURL string, timeout time.Duration) *TinyURL {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TinyURL{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Shorten returns the short form of longURL.
func (t *TinyURL) Shorten(ctx context.Context, longURL string) (string, error) {
	params := url.Values{}
	params.Set("url", longURL)

	body, err := fetch.Get(ctx, t.httpClient, t.baseURL+"?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("shortener.Shorten: %w", err)
	}

	short := strings.TrimSpace(string(body))
	if short == "" {
		return "", ErrEmptyResponse
	}
	return short, nil
}
