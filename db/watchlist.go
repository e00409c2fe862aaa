package db

import (
	"context"
	"database/sql"
	"time"
)

// WatchedPlayer is one row of the persistent watchlist. The list replaces the
// JSON file the old monitor script kept next to the binary.
type WatchedPlayer struct {
	AddedAt  time.Time
	PlayerID string
	Name     string
}

// AddWatch inserts a player into the watchlist; re-adding refreshes the name.
func AddWatch(ctx context.Context, dbx *sql.DB, playerID, name string) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO watchlist (player_id, name, added_at) VALUES ($1,$2,NOW())
		ON CONFLICT(player_id) DO UPDATE SET name=EXCLUDED.name`, playerID, name)
	return err
}

// RemoveWatch deletes a player from the watchlist and reports whether a row
// was actually removed.
func RemoveWatch(ctx context.Context, dbx *sql.DB, playerID string) (bool, error) {
	res, err := dbx.ExecContext(ctx, `DELETE FROM watchlist WHERE player_id=$1`, playerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	// Forget last known status so a future re-add announces fresh.
	_, _ = dbx.ExecContext(ctx, `DELETE FROM player_status WHERE player_id=$1`, playerID)
	return n > 0, nil
}

// ListWatch returns the watchlist ordered by when players were added.
func ListWatch(ctx context.Context, dbx *sql.DB) ([]WatchedPlayer, error) {
	rows, err := dbx.QueryContext(ctx, `SELECT player_id, COALESCE(name,''), COALESCE(added_at, NOW()) FROM watchlist ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WatchedPlayer
	for rows.Next() {
		var w WatchedPlayer
		if err := rows.Scan(&w.PlayerID, &w.Name, &w.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PlayerStatus is the last observed presence of a watched player.
type PlayerStatus struct {
	Online   bool
	ServerID string
}

// GetStatus returns the last recorded status for a player; ok=false when the
// player has never been observed.
func GetStatus(ctx context.Context, dbx *sql.DB, playerID string) (PlayerStatus, bool, error) {
	var st PlayerStatus
	err := dbx.QueryRowContext(ctx, `SELECT online, server_id FROM player_status WHERE player_id=$1`, playerID).Scan(&st.Online, &st.ServerID)
	if err == sql.ErrNoRows {
		return PlayerStatus{}, false, nil
	}
	if err != nil {
		return PlayerStatus{}, false, err
	}
	return st, true, nil
}

// SetStatus records the current status for a player.
func SetStatus(ctx context.Context, dbx *sql.DB, playerID string, st PlayerStatus) error {
	_, err := dbx.ExecContext(ctx, `INSERT INTO player_status (player_id, online, server_id, updated_at) VALUES ($1,$2,$3,NOW())
		ON CONFLICT(player_id) DO UPDATE SET online=EXCLUDED.online, server_id=EXCLUDED.server_id, updated_at=NOW()`,
		playerID, st.Online, st.ServerID)
	return err
}
