package storage

import "fmt"

// DeleteOlderThan deletes sessions that ended before the given unix epoch.
// The counters are never pruned. Returns the number of deleted rows.
func (d *DB) DeleteOlderThan(before int64) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	res, err := tx.Exec("DELETE FROM unplugged_sessions WHERE end_time < ?", before)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("delete from unplugged_sessions: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
