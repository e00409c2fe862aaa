// Package monitor runs the watchlist polling loop. Each cycle it asks the
// status source where every watched player currently is, compares against the
// last persisted state, and announces transitions through a Notifier.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/sealldev/playerscope/telemetry"
)

// EventKind classifies one status transition.
type EventKind int

const (
	EventOnline EventKind = iota
	EventOffline
	EventServerChange
)

func (k EventKind) String() string {
	switch k {
	case EventOnline:
		return "online"
	case EventOffline:
		return "offline"
	case EventServerChange:
		return "server_change"
	default:
		return "unknown"
	}
}

// Event is one announced transition. ServerID is empty for offline events.
type Event struct {
	Kind       EventKind
	PlayerID   string
	PlayerName string
	ServerID   string
}

// Watched is one watchlist entry.
type Watched struct {
	PlayerID string
	Name     string
}

// Status is the last known presence of a player.
type Status struct {
	Online   bool
	ServerID string
}

// Store persists the watchlist and each player's last known status. Persisted
// status keeps restarts from re-announcing players who never moved.
type Store interface {
	ListWatch(ctx context.Context) ([]Watched, error)
	GetStatus(ctx context.Context, playerID string) (Status, bool, error)
	SetStatus(ctx context.Context, playerID string, s Status) error
}

// Source reports where a player currently is. ok=false means offline.
type Source interface {
	OnlineServer(ctx context.Context, playerID string) (serverID string, ok bool, err error)
}

// Notifier receives transition events; the bot posts them as channel embeds.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Monitor drives the polling loop.
type Monitor struct {
	Store    Store
	Source   Source
	Notifier Notifier
	// Interval between cycles; defaults to 10s.
	Interval time.Duration
	// AfterCycle, when set, runs at the end of every cycle (job bookkeeping).
	AfterCycle func(ctx context.Context)
}

const defaultInterval = 10 * time.Second

// Run polls until ctx is cancelled. The first cycle runs immediately.
func (m *Monitor) Run(ctx context.Context) error {
	interval := m.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("monitor loop started", slog.String("component", "monitor"), slog.Duration("interval", interval))
	for {
		telemetry.TimeFunc(telemetry.MonitorCycleDuration, func() { m.Cycle(ctx) })
		select {
		case <-ctx.Done():
			slog.Info("monitor loop stopped", slog.String("component", "monitor"))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one pass over the watchlist. Failures for individual players are
// logged and skipped so one broken fetch cannot stall the rest.
func (m *Monitor) Cycle(ctx context.Context) {
	if telemetry.MonitorCycles != nil {
		telemetry.MonitorCycles.Inc()
	}
	watched, err := m.Store.ListWatch(ctx)
	if err != nil {
		slog.Error("monitor: list watchlist", slog.String("component", "monitor"), slog.Any("err", err))
		return
	}
	telemetry.SetWatchlistSize(len(watched))

	for _, w := range watched {
		if ctx.Err() != nil {
			return
		}
		if err := m.checkPlayer(ctx, w); err != nil {
			slog.Warn("monitor: player check failed",
				slog.String("component", "monitor"),
				slog.String("player_id", w.PlayerID),
				slog.Any("err", err))
		}
	}

	if m.AfterCycle != nil {
		m.AfterCycle(ctx)
	}
}

func (m *Monitor) checkPlayer(ctx context.Context, w Watched) error {
	serverID, online, err := m.Source.OnlineServer(ctx, w.PlayerID)
	if err != nil {
		return err
	}

	prev, known, err := m.Store.GetStatus(ctx, w.PlayerID)
	if err != nil {
		return err
	}
	if !known {
		// Never-seen players baseline as offline, so an online player
		// announces on the first cycle after being added.
		prev = Status{}
	}

	var ev *Event
	switch {
	case !prev.Online && online:
		ev = &Event{Kind: EventOnline, PlayerID: w.PlayerID, PlayerName: w.Name, ServerID: serverID}
	case prev.Online && !online:
		ev = &Event{Kind: EventOffline, PlayerID: w.PlayerID, PlayerName: w.Name}
	case online && prev.ServerID != serverID:
		ev = &Event{Kind: EventServerChange, PlayerID: w.PlayerID, PlayerName: w.Name, ServerID: serverID}
	}
	if ev == nil {
		return nil
	}

	// Persist before notifying; a failed announcement should not repeat on
	// every subsequent cycle.
	if err := m.Store.SetStatus(ctx, w.PlayerID, Status{Online: online, ServerID: serverID}); err != nil {
		return err
	}
	if telemetry.MonitorEvents != nil {
		telemetry.MonitorEvents.Inc()
	}
	if err := m.Notifier.Notify(ctx, *ev); err != nil {
		slog.Warn("monitor: notify failed",
			slog.String("component", "monitor"),
			slog.String("player_id", w.PlayerID),
			slog.String("event", ev.Kind.String()),
			slog.Any("err", err))
	}
	return nil
}
