package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS counters (
	key TEXT PRIMARY KEY,
	value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS unplugged_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	screen_on_secs REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_start ON unplugged_sessions(start_time);
`

// DB wraps a SQLite database holding the counters and the session log.
type DB struct {
	db *sql.DB
}

// OpenSQLite opens or creates the SQLite database at the given path.
func OpenSQLite(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Load reads the counters. Missing keys read as zero.
func (d *DB) Load() (tracker.Durations, error) {
	rows, err := d.db.Query("SELECT key, value FROM counters WHERE key IN (?, ?)", keyScreenOnTime, keyTotalUptime)
	if err != nil {
		return tracker.Durations{}, err
	}
	defer rows.Close()

	var out tracker.Durations
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return tracker.Durations{}, err
		}
		switch key {
		case keyScreenOnTime:
			out.ScreenOnTime = value
		case keyTotalUptime:
			out.TotalUptime = value
		}
	}
	return out, rows.Err()
}

// Save upserts both counters in a single transaction.
func (d *DB) Save(v tracker.Durations) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO counters (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, kv := range []struct {
		key   string
		value float64
	}{
		{keyScreenOnTime, v.ScreenOnTime},
		{keyTotalUptime, v.TotalUptime},
	} {
		if _, err := stmt.Exec(kv.key, kv.value); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// InsertSession inserts an unplugged session, deduplicating by start_time.
func (d *DB) InsertSession(s tracker.Session) error {
	_, err := d.db.Exec(
		"INSERT INTO unplugged_sessions (start_time, end_time, screen_on_secs) SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM unplugged_sessions WHERE start_time = ?)",
		s.StartTime, s.EndTime, s.ScreenOnSecs, s.StartTime,
	)
	return err
}

// SessionsInRange returns sessions overlapping the given time range.
func (d *DB) SessionsInRange(from, to int64) ([]tracker.Session, error) {
	rows, err := d.db.Query(
		"SELECT start_time, end_time, screen_on_secs FROM unplugged_sessions WHERE end_time >= ? AND start_time <= ? ORDER BY start_time",
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []tracker.Session
	for rows.Next() {
		var s tracker.Session
		if err := rows.Scan(&s.StartTime, &s.EndTime, &s.ScreenOnSecs); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
