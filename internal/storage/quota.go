package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AdmitQuota performs one fixed-window quota admission for (action, scopeKey)
// in a single atomic statement. The window is reset wholesale when expired
// (not continuously rolling). A rejected call mutates nothing.
//
// The conditional update only fires when the window has expired or the count
// is below the ceiling, so two concurrent requests racing on the last slot
// cannot both be admitted: row-level upsert serialization guarantees one of
// them sees count == limit and gets no row back.
func (db *DB) AdmitQuota(ctx context.Context, action, scopeKey string, limit int, window time.Duration) (admitted bool, count int, windowStart time.Time, err error) {
	err = db.pool.QueryRow(ctx,
		`INSERT INTO quota_windows (action, scope_key, count, window_start, last_attempt)
		 VALUES ($1, $2, 1, now(), now())
		 ON CONFLICT (action, scope_key) DO UPDATE SET
		   count = CASE
		     WHEN now() - quota_windows.window_start > $4::interval THEN 1
		     ELSE quota_windows.count + 1
		   END,
		   window_start = CASE
		     WHEN now() - quota_windows.window_start > $4::interval THEN now()
		     ELSE quota_windows.window_start
		   END,
		   last_attempt = now()
		 WHERE now() - quota_windows.window_start > $4::interval
		    OR quota_windows.count < $3
		 RETURNING count, window_start`,
		action, scopeKey, limit, window,
	).Scan(&count, &windowStart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Over ceiling: nothing mutated. Read the untouched window so the
			// caller can report remaining capacity and reset time.
			count, windowStart, err = db.quotaWindow(ctx, action, scopeKey)
			if err != nil {
				return false, 0, time.Time{}, err
			}
			return false, count, windowStart, nil
		}
		return false, 0, time.Time{}, fmt.Errorf("storage: admit quota: %w", err)
	}
	return true, count, windowStart, nil
}

func (db *DB) quotaWindow(ctx context.Context, action, scopeKey string) (int, time.Time, error) {
	var count int
	var windowStart time.Time
	err := db.pool.QueryRow(ctx,
		`SELECT count, window_start FROM quota_windows
		 WHERE action = $1 AND scope_key = $2`,
		action, scopeKey,
	).Scan(&count, &windowStart)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("storage: read quota window: %w", err)
	}
	return count, windowStart, nil
}

// CountQuotaWindows returns the number of quota windows for a scope key
// across all actions. Used by tests to assert that denied requests never
// create or touch a window.
func (db *DB) CountQuotaWindows(ctx context.Context, scopeKey string) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quota_windows WHERE scope_key = $1`, scopeKey,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count quota windows: %w", err)
	}
	return n, nil
}
