// Package battlemetrics contains a minimal client for the BattleMetrics
// JSON:API used for player lookup, player search, server detail, and paged
// session history. An optional access token elevates rate limits and unlocks
// private session history; all methods work anonymously without it.
package battlemetrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// BaseURL is the production API endpoint. Tests point HTTPClient at a fake
// host via a rewriting transport instead of overriding this.
const BaseURL = "https://api.battlemetrics.com"

// Client provides the minimal methods needed by the bot and the correlator.
type Client struct {
	// Token is the optional elevated BattleMetrics access token.
	Token      string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// get issues a GET and decodes the JSON body into out. Non-200 responses are
// returned as errors carrying the status and a snippet of the body.
func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError is returned for non-200 API responses so callers can branch on
// the status code (the session fetcher downgrades on 401).
type StatusError struct {
	Status string
	Body   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("battlemetrics request failed: %s: %s", e.Status, e.Body)
}

// IsUnauthorized reports whether err wraps a 401 StatusError.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}
