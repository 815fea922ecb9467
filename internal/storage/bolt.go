package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

// Bucket keys
var (
	bucketCounters = []byte("counters")
	bucketSessions = []byte("sessions")
)

// BoltStore keeps the counters and the session log in a bbolt file.
// Counters are 8-byte big-endian float64 bits; sessions are keyed by their
// big-endian start time so range scans are cursor seeks.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) a bbolt database at the given path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketCounters, bucketSessions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Load() (tracker.Durations, error) {
	var d tracker.Durations
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		var err error
		if d.ScreenOnTime, err = getFloat(b, keyScreenOnTime); err != nil {
			return err
		}
		d.TotalUptime, err = getFloat(b, keyTotalUptime)
		return err
	})
	return d, err
}

func (s *BoltStore) Save(d tracker.Durations) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		if err := b.Put([]byte(keyScreenOnTime), floatBytes(d.ScreenOnTime)); err != nil {
			return err
		}
		return b.Put([]byte(keyTotalUptime), floatBytes(d.TotalUptime))
	})
}

// InsertSession stores s unless a session with the same start time exists.
func (s *BoltStore) InsertSession(sess tracker.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		key := timeKey(sess.StartTime)
		if b.Get(key) != nil {
			return nil
		}
		return b.Put(key, data)
	})
}

// SessionsInRange returns sessions overlapping [from, to], ordered by start time.
func (s *BoltStore) SessionsInRange(from, to int64) ([]tracker.Session, error) {
	var sessions []tracker.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSessions).Cursor()
		for k, v := c.First(); k != nil && keyTime(k) <= to; k, v = c.Next() {
			var sess tracker.Session
			if err := json.Unmarshal(v, &sess); err != nil {
				return fmt.Errorf("unmarshal session %d: %w", keyTime(k), err)
			}
			if sess.EndTime >= from {
				sessions = append(sessions, sess)
			}
		}
		return nil
	})
	return sessions, err
}

// DeleteOlderThan deletes sessions that ended before the given unix epoch.
func (s *BoltStore) DeleteOlderThan(before int64) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		var stale [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil && keyTime(k) < before; k, v = c.Next() {
			var sess tracker.Session
			if err := json.Unmarshal(v, &sess); err != nil {
				return fmt.Errorf("unmarshal session %d: %w", keyTime(k), err)
			}
			if sess.EndTime < before {
				// Copy: keys are only valid for the life of the transaction and
				// must not be deleted while iterating.
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func getFloat(b *bolt.Bucket, key string) (float64, error) {
	v := b.Get([]byte(key))
	if v == nil {
		return 0, nil
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("counter %s has %d bytes, want 8", key, len(v))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(v)), nil
}

func floatBytes(f float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	return buf
}

// timeKey encodes a unix time so that byte order matches numeric order for
// non-negative times.
func timeKey(t int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t))
	return buf
}

func keyTime(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k))
}
