package main

import (
	"context"
	"database/sql"

	"github.com/sealldev/playerscope/battlemetrics"
	"github.com/sealldev/playerscope/correlate"
	"github.com/sealldev/playerscope/db"
	"github.com/sealldev/playerscope/monitor"
	"github.com/sealldev/playerscope/telemetry"
)

// sessionFetcher adapts the BattleMetrics session endpoint to the correlator's
// Fetcher, recording fetch counts and latency.
func sessionFetcher(bm *battlemetrics.Client) correlate.Fetcher {
	return correlate.FetcherFunc(func(ctx context.Context, playerID string, w correlate.Window) ([]correlate.Session, error) {
		if telemetry.SessionFetches != nil {
			telemetry.SessionFetches.Inc()
		}
		var (
			raw []battlemetrics.Session
			err error
		)
		telemetry.TimeFunc(telemetry.SessionFetchDuration, func() {
			raw, err = bm.Sessions(ctx, playerID, w.Start, w.End)
		})
		if err != nil {
			if telemetry.SessionFetchFailures != nil {
				telemetry.SessionFetchFailures.Inc()
			}
			return nil, err
		}
		out := make([]correlate.Session, 0, len(raw))
		for _, s := range raw {
			out = append(out, correlate.Session{
				Start:    s.Start,
				Stop:     s.Stop,
				PlayerID: s.PlayerID,
				ServerID: s.ServerID,
			})
		}
		return out, nil
	})
}

// dbStore backs the monitor loop with the watchlist and player_status tables.
type dbStore struct {
	db *sql.DB
}

func (s dbStore) ListWatch(ctx context.Context) ([]monitor.Watched, error) {
	rows, err := db.ListWatch(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]monitor.Watched, 0, len(rows))
	for _, w := range rows {
		out = append(out, monitor.Watched{PlayerID: w.PlayerID, Name: w.Name})
	}
	return out, nil
}

func (s dbStore) GetStatus(ctx context.Context, playerID string) (monitor.Status, bool, error) {
	st, ok, err := db.GetStatus(ctx, s.db, playerID)
	if err != nil || !ok {
		return monitor.Status{}, ok, err
	}
	return monitor.Status{Online: st.Online, ServerID: st.ServerID}, true, nil
}

func (s dbStore) SetStatus(ctx context.Context, playerID string, st monitor.Status) error {
	return db.SetStatus(ctx, s.db, playerID, db.PlayerStatus{Online: st.Online, ServerID: st.ServerID})
}

// bmSource answers "where is this player right now" from the player profile's
// server list.
type bmSource struct {
	bm *battlemetrics.Client
}

func (s bmSource) OnlineServer(ctx context.Context, playerID string) (string, bool, error) {
	p, err := s.bm.Player(ctx, playerID)
	if err != nil {
		return "", false, err
	}
	srv, ok := p.OnlineServer()
	if !ok {
		return "", false, nil
	}
	return srv.ID, true, nil
}
