package storage

import (
	"context"
	"fmt"
	"time"
)

// MirrorStats holds aggregate statistics about the mirror.
type MirrorStats struct {
	TotalSlots  int64      `json:"total_slots"`
	TotalUsers  int64      `json:"total_users"`
	TotalWrites int64      `json:"total_writes"`
	LatestWrite *time.Time `json:"latest_write"`
	Users       []UserStat `json:"users"`
}

// UserStat summarizes one user's mirror activity.
type UserStat struct {
	ID        string    `json:"id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Writes    int64     `json:"writes"`
}

// StatsProvider is implemented by backends that can report mirror statistics.
type StatsProvider interface {
	GetMirrorStats(ctx context.Context) (*MirrorStats, error)
}

// GetMirrorStats returns aggregate statistics over every stored slot.
func (db *DB) GetMirrorStats(ctx context.Context) (*MirrorStats, error) {
	stats := &MirrorStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(updated_at) FROM mirror_slots`,
	).Scan(&stats.TotalSlots, &stats.LatestWrite)
	if err != nil {
		return nil, fmt.Errorf("counting slots: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(writes), 0) FROM users`,
	).Scan(&stats.TotalUsers, &stats.TotalWrites)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, first_seen, last_seen, writes
		 FROM users
		 ORDER BY last_seen DESC
		 LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u UserStat
		if err := rows.Scan(&u.ID, &u.FirstSeen, &u.LastSeen, &u.Writes); err != nil {
			return nil, fmt.Errorf("scanning user stat: %w", err)
		}
		stats.Users = append(stats.Users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
