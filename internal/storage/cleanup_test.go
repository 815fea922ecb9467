package storage

import (
	"fmt"
	"testing"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()

	var n int
	row := db.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if err := row.Scan(&n); err != nil {
		t.Fatalf("count rows in %s: %v", table, err)
	}
	return n
}

func TestDeleteOlderThan(t *testing.T) {
	db := openTestDB(t)

	const cutoffTs int64 = 100

	sessions := []tracker.Session{
		{StartTime: 10, EndTime: 50},   // ended before cutoff
		{StartTime: 60, EndTime: 100},  // ends exactly at cutoff
		{StartTime: 80, EndTime: 150},  // straddles cutoff
		{StartTime: 200, EndTime: 250}, // entirely after
	}
	for _, s := range sessions {
		if err := db.InsertSession(s); err != nil {
			t.Fatalf("InsertSession(%+v): %v", s, err)
		}
	}
	if err := db.Save(tracker.Durations{ScreenOnTime: 1, TotalUptime: 1}); err != nil {
		t.Fatalf("Save(): %v", err)
	}

	deleted, err := db.DeleteOlderThan(cutoffTs)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("DeleteOlderThan() deleted = %d, want 1", deleted)
	}
	if got := countRows(t, db, "unplugged_sessions"); got != 3 {
		t.Fatalf("unplugged_sessions rows = %d, want 3", got)
	}
	if got := countRows(t, db, "counters"); got != 2 {
		t.Fatalf("counters rows = %d, want 2 (never pruned)", got)
	}
}
