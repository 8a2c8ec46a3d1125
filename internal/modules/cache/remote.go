package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/aristath/kr-backtest/internal/database"
)

// remoteTier is the persistent second tier backing the in-process LRU: a
// SQLite-backed key/value table storing compressed blobs with an expiry.
type remoteTier struct {
	db *database.DB
}

func newRemoteTier(db *database.DB) *remoteTier {
	return &remoteTier{db: db}
}

func (r *remoteTier) get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt int64
	err := r.db.QueryRowContext(ctx, `SELECT value, expires_at FROM cache_entries WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expiresAt != 0 && time.Now().Unix() > expiresAt {
		_, _ = r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (r *remoteTier) set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	var expiresAt int64
	if ttlSeconds > 0 {
		expiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second).Unix()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	return err
}

// setMany upserts several entries in one transaction under a single shared
// TTL.
func (r *remoteTier) setMany(ctx context.Context, entries map[string][]byte, ttlSeconds int) error {
	var expiresAt int64
	if ttlSeconds > 0 {
		expiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second).Unix()
	}
	return database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for key, value := range entries {
			if _, err := stmt.ExecContext(ctx, key, value, expiresAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *remoteTier) delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}
