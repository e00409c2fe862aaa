package correlate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"testing"
	"time"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// at converts "minutes since base" into a timestamp, keeping cases readable.
func at(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

func atPtr(min int) *time.Time {
	t := at(min)
	return &t
}

// mapFetcher serves canned sessions per player.
type mapFetcher map[string][]Session

func (m mapFetcher) Sessions(_ context.Context, playerID string, _ Window) ([]Session, error) {
	return m[playerID], nil
}

func testWindow() Window { return Window{Start: at(0), End: at(100)} }

func run(t *testing.T, f Fetcher, players ...string) []Overlap {
	t.Helper()
	c := &Correlator{Fetcher: f}
	got, err := c.Correlate(context.Background(), players, testWindow())
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	return got
}

func TestCorrelateDifferentServersNeverOverlap(t *testing.T) {
	f := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(20)}},
		"b": {{PlayerID: "b", ServerID: "srv-2", Start: at(10), Stop: atPtr(20)}},
	}
	if got := run(t, f, "a", "b"); len(got) != 0 {
		t.Errorf("expected no overlaps across servers, got %+v", got)
	}
}

func TestCorrelateBasicPair(t *testing.T) {
	f := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(20)}},
		"b": {{PlayerID: "b", ServerID: "srv-1", Start: at(15), Stop: atPtr(25)}},
	}
	got := run(t, f, "a", "b")
	if len(got) != 1 {
		t.Fatalf("expected 1 overlap, got %d", len(got))
	}
	o := got[0]
	if !o.Start.Equal(at(15)) || !o.Stop.Equal(at(20)) {
		t.Errorf("overlap window = [%v, %v], want [15m, 20m]", o.Start, o.Stop)
	}
	if o.Duration != 5*time.Minute {
		t.Errorf("duration = %v, want 5m", o.Duration)
	}
	wantPlayers := []string{"a", "b"}
	gotPlayers := append([]string(nil), o.Players...)
	sort.Strings(gotPlayers)
	if !reflect.DeepEqual(gotPlayers, wantPlayers) {
		t.Errorf("players = %v, want %v", o.Players, wantPlayers)
	}
}

func TestCorrelateThirdPlayerJoinsIdenticalWindow(t *testing.T) {
	f := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(20)}},
		"b": {{PlayerID: "b", ServerID: "srv-1", Start: at(15), Stop: atPtr(25)}},
		// c spans exactly [15,20]; its pairwise windows with a and b are both
		// [15,20], identical to the a/b overlap, so all three merge.
		"c": {{PlayerID: "c", ServerID: "srv-1", Start: at(15), Stop: atPtr(20)}},
	}
	got := run(t, f, "a", "b", "c")
	if len(got) != 1 {
		t.Fatalf("expected 1 merged overlap, got %d: %+v", len(got), got)
	}
	if len(got[0].Players) != 3 {
		t.Errorf("participants = %v, want all three players", got[0].Players)
	}
}

func TestCorrelateDistinctWindowsStayDistinct(t *testing.T) {
	// Overlapping-but-not-identical windows do not merge into one maximal
	// interval; the exact-match policy keeps them separate.
	f := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(30)}},
		"b": {{PlayerID: "b", ServerID: "srv-1", Start: at(15), Stop: atPtr(25)}},
		"c": {{PlayerID: "c", ServerID: "srv-1", Start: at(20), Stop: atPtr(40)}},
	}
	got := run(t, f, "a", "b", "c")
	if len(got) != 3 {
		t.Fatalf("expected 3 distinct records (a/b, a/c, b/c), got %d: %+v", len(got), got)
	}
}

func TestCorrelateTouchingIntervals(t *testing.T) {
	f := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(20)}},
		"b": {{PlayerID: "b", ServerID: "srv-1", Start: at(20), Stop: atPtr(30)}},
	}
	if got := run(t, f, "a", "b"); len(got) != 0 {
		t.Errorf("touching intervals produced overlaps: %+v", got)
	}
}

func TestCorrelateActiveSessionUsesWindowEnd(t *testing.T) {
	active := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: nil}},
		"b": {{PlayerID: "b", ServerID: "srv-1", Start: at(50), Stop: nil}},
	}
	closed := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(100)}},
		"b": {{PlayerID: "b", ServerID: "srv-1", Start: at(50), Stop: atPtr(100)}},
	}
	gotActive := run(t, active, "a", "b")
	gotClosed := run(t, closed, "a", "b")
	if !reflect.DeepEqual(gotActive, gotClosed) {
		t.Errorf("active sessions differ from stop=windowEnd sessions:\nactive: %+v\nclosed: %+v", gotActive, gotClosed)
	}
	if len(gotActive) != 1 || !gotActive[0].Stop.Equal(at(100)) {
		t.Errorf("active overlap should stop at window end, got %+v", gotActive)
	}
}

func TestCorrelateSinglePlayer(t *testing.T) {
	f := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(20)}},
	}
	if got := run(t, f, "a"); got != nil {
		t.Errorf("single player correlation = %+v, want nil", got)
	}
	// Duplicated ids collapse to a single player as well.
	if got := run(t, f, "a", "a"); got != nil {
		t.Errorf("duplicate-id correlation = %+v, want nil", got)
	}
}

func TestCorrelatePlayerWithNoSessions(t *testing.T) {
	f := mapFetcher{
		"a": {{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(20)}},
		"b": nil,
	}
	if got := run(t, f, "a", "b"); len(got) != 0 {
		t.Errorf("player without sessions produced overlaps: %+v", got)
	}
}

func TestCorrelateIdempotent(t *testing.T) {
	f := mapFetcher{
		"a": {
			{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(30)},
			{PlayerID: "a", ServerID: "srv-2", Start: at(40), Stop: atPtr(60)},
		},
		"b": {
			{PlayerID: "b", ServerID: "srv-1", Start: at(20), Stop: atPtr(50)},
			{PlayerID: "b", ServerID: "srv-2", Start: at(45), Stop: nil},
		},
	}
	first := run(t, f, "a", "b")
	second := run(t, f, "a", "b")
	if !reflect.DeepEqual(sortOverlaps(first), sortOverlaps(second)) {
		t.Errorf("correlate is not idempotent:\nfirst: %+v\nsecond: %+v", first, second)
	}
}

func TestCorrelateFetchFailureIsPartial(t *testing.T) {
	boom := errors.New("provider down")
	f := FetcherFunc(func(_ context.Context, playerID string, _ Window) ([]Session, error) {
		switch playerID {
		case "broken":
			return nil, boom
		case "a":
			return []Session{{PlayerID: "a", ServerID: "srv-1", Start: at(10), Stop: atPtr(20)}}, nil
		default:
			return []Session{{PlayerID: "b", ServerID: "srv-1", Start: at(15), Stop: atPtr(25)}}, nil
		}
	})
	c := &Correlator{Fetcher: f}
	got, err := c.Correlate(context.Background(), []string{"a", "b", "broken"}, testWindow())
	if !errors.Is(err, boom) {
		t.Errorf("fetch failure not surfaced: err = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected partial result with 1 overlap, got %d", len(got))
	}
	if len(got[0].Players) != 2 {
		t.Errorf("broken player leaked into participants: %v", got[0].Players)
	}
}

func TestCorrelateInvalidWindow(t *testing.T) {
	c := &Correlator{Fetcher: mapFetcher{}}
	if _, err := c.Correlate(context.Background(), []string{"a", "b"}, Window{Start: at(10), End: at(10)}); err == nil {
		t.Error("expected error for empty window")
	}
}

func TestCorrelateConcurrencyLimit(t *testing.T) {
	// Many players with a bounded fetch limit should still produce the full
	// pairwise result set.
	f := FetcherFunc(func(_ context.Context, playerID string, _ Window) ([]Session, error) {
		return []Session{{PlayerID: playerID, ServerID: "srv-1", Start: at(10), Stop: atPtr(20)}}, nil
	})
	c := &Correlator{Fetcher: f, Concurrency: 2}
	ids := make([]string, 6)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
	}
	got, err := c.Correlate(context.Background(), ids, testWindow())
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected all identical windows merged into 1 record, got %d", len(got))
	}
	if len(got[0].Players) != len(ids) {
		t.Errorf("participants = %d, want %d", len(got[0].Players), len(ids))
	}
}

func TestLastDays(t *testing.T) {
	w := LastDays(30)
	if !w.Start.Before(w.End) {
		t.Fatalf("LastDays window inverted: %+v", w)
	}
	if d := w.End.Sub(w.Start); d < 29*24*time.Hour || d > 31*24*time.Hour {
		t.Errorf("LastDays(30) span = %v", d)
	}
}

func sortOverlaps(in []Overlap) []Overlap {
	out := append([]Overlap(nil), in...)
	for i := range out {
		sort.Strings(out[i].Players)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if out[i].ServerID != out[j].ServerID {
			return out[i].ServerID < out[j].ServerID
		}
		return out[i].Stop.Before(out[j].Stop)
	})
	return out
}
