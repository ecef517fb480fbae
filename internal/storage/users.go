package storage

import (
	"context"
	"fmt"
)

// TouchUser records a mirror write for a user, creating the user on first
// sight. Updates last_seen on each call.
func (db *DB) TouchUser(ctx context.Context, userID string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO users (id, writes)
		VALUES ($1, 1)
		ON CONFLICT (id) DO UPDATE
			SET last_seen = NOW(), writes = users.writes + 1
	`, userID)
	if err != nil {
		return fmt.Errorf("touching user %s: %w", userID, err)
	}
	return nil
}
