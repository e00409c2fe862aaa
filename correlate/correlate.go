// Package correlate implements the session-overlap engine: given the session
// histories of several players it finds every window during which two or more
// of them were on the same server at the same time.
//
// The merge policy is deliberately exact-match only: two pairwise overlaps
// are the same event only when they share server id, start, and stop. Windows
// that overlap each other but differ in range stay separate records.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Session is a contiguous recorded presence of one player on one server.
// A nil Stop means the session is still active; overlap math substitutes the
// correlation window's end time.
type Session struct {
	Start    time.Time
	Stop     *time.Time
	PlayerID string
	ServerID string
}

// Overlap is one window during which all Players were concurrently on the
// same server. Players is de-duplicated; order carries no meaning.
type Overlap struct {
	Start    time.Time
	Stop     time.Time
	ServerID string
	Players  []string
	Duration time.Duration
}

// Window bounds one correlation request: [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// LastDays returns a window covering the last n days ending now.
func LastDays(n int) Window {
	end := time.Now().UTC()
	return Window{Start: end.AddDate(0, 0, -n), End: end}
}

// Fetcher produces a player's sessions intersecting the window. It is
// implemented by an adapter over the BattleMetrics client; tests supply fakes.
type Fetcher interface {
	Sessions(ctx context.Context, playerID string, w Window) ([]Session, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, playerID string, w Window) ([]Session, error)

func (f FetcherFunc) Sessions(ctx context.Context, playerID string, w Window) ([]Session, error) {
	return f(ctx, playerID, w)
}

// Correlator runs correlation requests against a session source.
type Correlator struct {
	Fetcher Fetcher
	// Concurrency caps parallel per-player fetches; 0 means one goroutine
	// per player.
	Concurrency int
}

// Correlate fetches every player's sessions concurrently and computes the
// overlaps. A fetch failure degrades that player to an empty session list
// instead of aborting; the failures are joined into the returned error while
// the returned overlaps remain valid for the players that did resolve.
func (c *Correlator) Correlate(ctx context.Context, playerIDs []string, w Window) ([]Overlap, error) {
	ids := dedupe(playerIDs)
	if len(ids) < 2 {
		// No pair is possible; not an error.
		return nil, nil
	}
	if !w.Start.Before(w.End) {
		return nil, fmt.Errorf("invalid window: start %v not before end %v", w.Start, w.End)
	}

	sessions := make(map[string][]Session, len(ids))
	var (
		mu        sync.Mutex
		fetchErrs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for _, id := range ids {
		id := id
		g.Go(func() error {
			got, err := c.Fetcher.Sessions(gctx, id, w)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Partial results are still meaningful; record and move on.
				slog.Warn("session fetch failed; player contributes no overlaps",
					slog.String("player_id", id), slog.Any("err", err))
				fetchErrs = append(fetchErrs, fmt.Errorf("player %s: %w", id, err))
				sessions[id] = nil
				return nil
			}
			sessions[id] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return overlaps(ids, sessions, w.End), errors.Join(fetchErrs...)
}

// overlapKey identifies one overlap event. Merge equality is exact on all
// three fields.
type overlapKey struct {
	start    int64
	stop     int64
	serverID string
}

// overlaps is the pure pairwise pass over already-fetched sessions. For every
// unordered player pair and every session pair on the same server it computes
// the intersection; identical (server, start, stop) windows merge into one
// record gaining participants.
func overlaps(ids []string, sessions map[string][]Session, windowEnd time.Time) []Overlap {
	var records []Overlap
	index := make(map[overlapKey]int)

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			for _, s1 := range sessions[ids[i]] {
				for _, s2 := range sessions[ids[j]] {
					if s1.ServerID == "" || s1.ServerID != s2.ServerID {
						continue
					}
					start := maxTime(s1.Start, s2.Start)
					stop := minTime(stopOr(s1, windowEnd), stopOr(s2, windowEnd))
					if !start.Before(stop) {
						// Touching intervals do not overlap.
						continue
					}
					key := overlapKey{serverID: s1.ServerID, start: start.UnixNano(), stop: stop.UnixNano()}
					if at, ok := index[key]; ok {
						records[at].Players = addPlayer(records[at].Players, ids[i])
						records[at].Players = addPlayer(records[at].Players, ids[j])
						continue
					}
					index[key] = len(records)
					records = append(records, Overlap{
						ServerID: s1.ServerID,
						Start:    start,
						Stop:     stop,
						Duration: stop.Sub(start),
						Players:  []string{ids[i], ids[j]},
					})
				}
			}
		}
	}
	return records
}

// stopOr treats an active session as stopping at the window end.
func stopOr(s Session, windowEnd time.Time) time.Time {
	if s.Stop == nil {
		return windowEnd
	}
	return *s.Stop
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func addPlayer(players []string, id string) []string {
	for _, p := range players {
		if p == id {
			return players
		}
	}
	return append(players, id)
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
