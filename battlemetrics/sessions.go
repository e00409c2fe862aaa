package battlemetrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

// sessionPageSize matches the largest page the API allows for /sessions.
const sessionPageSize = 90

// Session is one contiguous recorded presence of a player on a server.
// Stop is nil while the session is still active.
type Session struct {
	Start    time.Time
	Stop     *time.Time
	PlayerID string
	ServerID string
}

// Sessions fetches the player's session history intersecting [start, end),
// following pagination links until the API reports no further pages.
//
// When the client carries an elevated token and the API rejects it with 401,
// the whole fetch is retried exactly once anonymously; a second failure is
// final. Records missing a start time or server reference are skipped.
func (c *Client) Sessions(ctx context.Context, playerID string, start, end time.Time) ([]Session, error) {
	if playerID == "" {
		return nil, fmt.Errorf("playerID empty")
	}
	sessions, err := c.fetchSessions(ctx, playerID, start, end, c.Token)
	if err != nil && c.Token != "" && IsUnauthorized(err) {
		slog.Warn("session fetch rejected elevated token; retrying anonymously", slog.String("player_id", playerID))
		sessions, err = c.fetchSessions(ctx, playerID, start, end, "")
	}
	if err != nil {
		return nil, fmt.Errorf("fetch sessions for %s: %w", playerID, err)
	}
	return sessions, nil
}

func (c *Client) fetchSessions(ctx context.Context, playerID string, start, end time.Time, token string) ([]Session, error) {
	q := url.Values{}
	q.Set("include", "server")
	q.Set("page[size]", strconv.Itoa(sessionPageSize))
	q.Set("filter[players]", playerID)
	if token != "" {
		q.Set("access_token", token)
	}
	next := BaseURL + "/sessions?" + q.Encode()

	var sessions []Session
	page := 0
	for next != "" {
		page++
		var body struct {
			Data []struct {
				ID         string `json:"id"`
				Attributes struct {
					Start string  `json:"start"`
					Stop  *string `json:"stop"`
				} `json:"attributes"`
				Relationships struct {
					Server struct {
						Data struct {
							ID string `json:"id"`
						} `json:"data"`
					} `json:"server"`
				} `json:"relationships"`
			} `json:"data"`
			Links struct {
				Next string `json:"next"`
			} `json:"links"`
		}
		if err := c.get(ctx, next, &body); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		for _, rec := range body.Data {
			s, ok := decodeSession(playerID, rec.ID, rec.Attributes.Start, rec.Attributes.Stop, rec.Relationships.Server.Data.ID)
			if !ok {
				continue
			}
			// Client-side window filter: drop sessions entirely outside the
			// correlation window. An open session always intersects.
			if !s.Start.Before(end) {
				continue
			}
			if s.Stop != nil && !s.Stop.After(start) {
				continue
			}
			sessions = append(sessions, s)
		}
		next = withToken(body.Links.Next, token)
	}
	return sessions, nil
}

// withToken re-appends the elevated token to a pagination link; the API does
// not echo access_token back in links.next.
func withToken(next, token string) string {
	if next == "" || token == "" {
		return next
	}
	u, err := url.Parse(next)
	if err != nil {
		return next
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// decodeSession validates a raw session record. Malformed records (missing
// start or server reference) are skipped rather than failing the whole fetch.
func decodeSession(playerID, recID, start string, stop *string, serverID string) (Session, bool) {
	if start == "" || serverID == "" {
		slog.Warn("skipping malformed session record",
			slog.String("player_id", playerID), slog.String("session_id", recID))
		return Session{}, false
	}
	st, err := time.Parse(time.RFC3339, start)
	if err != nil {
		slog.Warn("skipping session with unparseable start",
			slog.String("player_id", playerID), slog.String("session_id", recID), slog.Any("err", err))
		return Session{}, false
	}
	s := Session{PlayerID: playerID, ServerID: serverID, Start: st.UTC()}
	if stop != nil && *stop != "" {
		sp, err := time.Parse(time.RFC3339, *stop)
		if err != nil {
			slog.Warn("skipping session with unparseable stop",
				slog.String("player_id", playerID), slog.String("session_id", recID), slog.Any("err", err))
			return Session{}, false
		}
		u := sp.UTC()
		s.Stop = &u
	}
	return s, true
}
