package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sealldev/playerscope/correlate"
	"github.com/sealldev/playerscope/db"
	"github.com/sealldev/playerscope/testutil"
)

func correlateHandlers(f correlate.Fetcher) *Handlers {
	return NewHandlers(Deps{
		Correlator:  &correlate.Correlator{Fetcher: f},
		DefaultDays: 30,
		MaxPlayers:  10,
	})
}

func fixedSessions(server string, startOffset, stopOffset time.Duration) correlate.FetcherFunc {
	return func(_ context.Context, playerID string, w correlate.Window) ([]correlate.Session, error) {
		stop := w.End.Add(-stopOffset)
		return []correlate.Session{{
			PlayerID: playerID,
			ServerID: server,
			Start:    w.End.Add(-startOffset),
			Stop:     &stop,
		}}, nil
	}
}

func TestHandleCorrelate(t *testing.T) {
	h := correlateHandlers(fixedSessions("srv-1", 3*time.Hour, 1*time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/correlate?players=a,b&days=7", nil)
	w := httptest.NewRecorder()
	h.HandleCorrelate(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var out struct {
		Days     int      `json:"days"`
		Warnings []string `json:"warnings"`
		Overlaps []struct {
			ServerID        string   `json:"server_id"`
			DurationSeconds int      `json:"duration_seconds"`
			Players         []string `json:"players"`
		} `json:"overlaps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Days != 7 {
		t.Errorf("days = %d, want 7", out.Days)
	}
	if len(out.Overlaps) != 1 {
		t.Fatalf("overlaps = %+v, want 1", out.Overlaps)
	}
	o := out.Overlaps[0]
	if o.ServerID != "srv-1" || len(o.Players) != 2 {
		t.Errorf("unexpected overlap: %+v", o)
	}
	if o.DurationSeconds != int((2 * time.Hour).Seconds()) {
		t.Errorf("duration = %d, want 7200", o.DurationSeconds)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", out.Warnings)
	}
}

func TestHandleCorrelatePartialFailure(t *testing.T) {
	boom := errors.New("upstream 500")
	f := correlate.FetcherFunc(func(ctx context.Context, playerID string, w correlate.Window) ([]correlate.Session, error) {
		if playerID == "broken" {
			return nil, boom
		}
		return fixedSessions("srv-1", 3*time.Hour, 1*time.Hour)(ctx, playerID, w)
	})
	h := correlateHandlers(f)

	req := httptest.NewRequest(http.MethodGet, "/correlate?players=a,b,broken", nil)
	w := httptest.NewRecorder()
	h.HandleCorrelate(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for partial result", resp.StatusCode)
	}
	var out struct {
		Warnings []string          `json:"warnings"`
		Overlaps []json.RawMessage `json:"overlaps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Overlaps) != 1 {
		t.Errorf("expected remaining players' overlap, got %d", len(out.Overlaps))
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "broken") {
		t.Errorf("warnings = %v, want broken player surfaced", out.Warnings)
	}
}

func TestHandleCorrelateValidation(t *testing.T) {
	h := correlateHandlers(fixedSessions("srv-1", 2*time.Hour, 1*time.Hour))

	cases := []struct {
		name  string
		query string
	}{
		{"no players", "/correlate"},
		{"one player", "/correlate?players=a"},
		{"too many players", "/correlate?players=a,b,c,d,e,f,g,h,i,j,k"},
		{"bad days", "/correlate?players=a,b&days=zero"},
		{"days too large", "/correlate?players=a,b&days=9000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.query, nil)
			w := httptest.NewRecorder()
			h.HandleCorrelate(w, req)
			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Result().StatusCode)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/correlate?players=a,b", nil)
	w := httptest.NewRecorder()
	h.HandleCorrelate(w, req)
	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Result().StatusCode)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	database := testutil.SetupTestDB(t)
	handler := NewMux(context.Background(), Deps{DB: database})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Result().StatusCode)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing correlation id header")
	}
}

func TestReadyzReportsFailedCheck(t *testing.T) {
	database := testutil.SetupTestDB(t)
	handler := NewMux(context.Background(), Deps{
		DB:    database,
		Ready: func(context.Context) error { return errors.New("gateway not connected") },
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["failed_check"] != "discord" {
		t.Errorf("failed_check = %q, want discord", out["failed_check"])
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	database := testutil.SetupTestDB(t)
	handler := NewMux(context.Background(), Deps{DB: database})

	post := httptest.NewRequest(http.MethodPost, "/watchlist",
		strings.NewReader(`{"player_id":"wl-test-1","name":"shifty"}`))
	post.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, post)
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201", w.Result().StatusCode)
	}

	get := httptest.NewRequest(http.MethodGet, "/watchlist", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, get)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", w.Result().StatusCode)
	}
	var list struct {
		Players []struct {
			PlayerID string `json:"player_id"`
		} `json:"players"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, p := range list.Players {
		if p.PlayerID == "wl-test-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("added player missing from list: %+v", list.Players)
	}

	del := httptest.NewRequest(http.MethodDelete, "/watchlist?player_id=wl-test-1", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, del)
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d", w.Result().StatusCode)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/watchlist?player_id=wl-test-1", nil))
	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("double DELETE status = %d, want 404", w.Result().StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	database := testutil.SetupTestDB(t)
	if err := db.SetKV(context.Background(), database, "job_monitor_last", "2024-03-01T10:00:00Z"); err != nil {
		t.Fatalf("seed kv: %v", err)
	}
	handler := NewMux(context.Background(), Deps{DB: database, Version: "test"})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["version"] != "test" {
		t.Errorf("version = %v", out["version"])
	}
	if out["last_monitor_cycle"] != "2024-03-01T10:00:00Z" {
		t.Errorf("last_monitor_cycle = %v", out["last_monitor_cycle"])
	}
}
