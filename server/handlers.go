package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sealldev/playerscope/correlate"
	"github.com/sealldev/playerscope/db"
	"github.com/sealldev/playerscope/telemetry"
)

// Deps carries everything the HTTP handlers need.
type Deps struct {
	DB         *sql.DB
	Correlator *correlate.Correlator
	// DefaultDays is the correlation window when the request omits days.
	DefaultDays int
	// MaxPlayers caps the player count per correlation request.
	MaxPlayers int
	// Ready is an optional extra readiness check (the Discord gateway).
	Ready   func(ctx context.Context) error
	Version string
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	deps    Deps
	started time.Time
}

func NewHandlers(deps Deps) *Handlers {
	if deps.DefaultDays <= 0 {
		deps.DefaultDays = 30
	}
	if deps.MaxPlayers <= 0 {
		deps.MaxPlayers = 10
	}
	return &Handlers{deps: deps, started: time.Now().UTC()}
}

// HandleHealthz responds to liveness probes by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DB.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probes with per-dependency checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.deps.DB.PingContext(r.Context()) }},
		{"discord", func() error {
			if h.deps.Ready == nil {
				return nil
			}
			return h.deps.Ready(r.Context())
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports watchlist size, last monitor cycle, and build info.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	watched, err := db.ListWatch(ctx, h.deps.DB)
	if err != nil {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}
	lastCycle, _ := db.GetKV(ctx, h.deps.DB, "job_monitor_last")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"watchlist_size":     len(watched),
		"last_monitor_cycle": lastCycle,
		"version":            h.deps.Version,
		"uptime_seconds":     int(time.Since(h.started).Seconds()),
	})
}

type watchlistEntry struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	AddedAt  time.Time `json:"added_at"`
}

// HandleWatchlist serves GET (list), POST (add), and DELETE (remove). It is
// the same store the bot's /monitor and /monitorrm commands mutate.
func (h *Handlers) HandleWatchlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		watched, err := db.ListWatch(ctx, h.deps.DB)
		if err != nil {
			http.Error(w, "watchlist query failed", http.StatusInternalServerError)
			return
		}
		out := make([]watchlistEntry, 0, len(watched))
		for _, p := range watched {
			out = append(out, watchlistEntry{PlayerID: p.PlayerID, Name: p.Name, AddedAt: p.AddedAt})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"players": out})

	case http.MethodPost:
		var body struct {
			PlayerID string `json:"player_id"`
			Name     string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PlayerID == "" {
			http.Error(w, "player_id required", http.StatusBadRequest)
			return
		}
		if err := db.AddWatch(ctx, h.deps.DB, body.PlayerID, body.Name); err != nil {
			http.Error(w, "add failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "added", "player_id": body.PlayerID})

	case http.MethodDelete:
		playerID := r.URL.Query().Get("player_id")
		if playerID == "" {
			http.Error(w, "player_id required", http.StatusBadRequest)
			return
		}
		removed, err := db.RemoveWatch(ctx, h.deps.DB, playerID)
		if err != nil {
			http.Error(w, "remove failed", http.StatusInternalServerError)
			return
		}
		if !removed {
			http.Error(w, "not watched", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "removed", "player_id": playerID})

	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type overlapJSON struct {
	ServerID        string    `json:"server_id"`
	Start           time.Time `json:"start"`
	Stop            time.Time `json:"stop"`
	DurationSeconds int       `json:"duration_seconds"`
	Players         []string  `json:"players"`
}

// HandleCorrelate runs a correlation over comma-separated player ids. Partial
// upstream failures surface as warnings alongside the overlaps that did
// resolve.
func (h *Handlers) HandleCorrelate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.deps.Correlator == nil {
		http.Error(w, "correlator unavailable", http.StatusServiceUnavailable)
		return
	}

	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("players"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		http.Error(w, "at least two players required", http.StatusBadRequest)
		return
	}
	if len(ids) > h.deps.MaxPlayers {
		http.Error(w, fmt.Sprintf("at most %d players allowed", h.deps.MaxPlayers), http.StatusBadRequest)
		return
	}

	days := h.deps.DefaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			http.Error(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}
		days = n
	}

	if telemetry.CorrelationsStarted != nil {
		telemetry.CorrelationsStarted.Inc()
	}
	var (
		overlaps []correlate.Overlap
		corrErr  error
	)
	telemetry.TimeFunc(telemetry.CorrelationDuration, func() {
		overlaps, corrErr = h.deps.Correlator.Correlate(r.Context(), ids, correlate.LastDays(days))
	})

	// Per-player fetch failures degrade to warnings; the overlaps among the
	// players that resolved are still returned.
	var warnings []string
	if corrErr != nil {
		telemetry.LoggerWithCorr(r.Context()).Warn("correlation degraded", "err", corrErr)
		if telemetry.CorrelationsFailed != nil {
			telemetry.CorrelationsFailed.Inc()
		}
		warnings = append(warnings, corrErr.Error())
	} else if telemetry.CorrelationsSucceeded != nil {
		telemetry.CorrelationsSucceeded.Inc()
	}

	out := make([]overlapJSON, 0, len(overlaps))
	for _, o := range overlaps {
		out = append(out, overlapJSON{
			ServerID:        o.ServerID,
			Start:           o.Start,
			Stop:            o.Stop,
			DurationSeconds: int(o.Duration.Seconds()),
			Players:         o.Players,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"players":  ids,
		"days":     days,
		"overlaps": out,
		"warnings": warnings,
	})
}
