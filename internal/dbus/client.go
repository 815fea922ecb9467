package dbus

import (
	"context"
	"encoding/json"
	"fmt"

	godbus "github.com/godbus/dbus/v5"

	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

// Client queries a running daemon over the session bus.
type Client struct {
	conn *godbus.Conn
}

// NewClient connects to the session bus.
func NewClient() (*Client, error) {
	conn, err := godbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Running reports whether a daemon currently owns BusName.
func (c *Client) Running(ctx context.Context) (bool, error) {
	var owned bool
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, BusName).Store(&owned)
	if err != nil {
		return false, fmt.Errorf("query name owner: %w", err)
	}
	return owned, nil
}

// Status fetches the daemon's current snapshot.
func (c *Client) Status(ctx context.Context) (tracker.Snapshot, error) {
	var raw string
	err := c.conn.Object(BusName, ObjPath).CallWithContext(ctx, IfaceName+".GetStatus", 0).Store(&raw)
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("GetStatus: %w", err)
	}
	return decodeSnapshot(raw)
}

// Sessions fetches unplugged sessions overlapping [from, to].
func (c *Client) Sessions(ctx context.Context, from, to int64) ([]tracker.Session, error) {
	var raw string
	err := c.conn.Object(BusName, ObjPath).CallWithContext(ctx, IfaceName+".GetSessions", 0, from, to).Store(&raw)
	if err != nil {
		return nil, fmt.Errorf("GetSessions: %w", err)
	}
	var sessions []tracker.Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}

func decodeSnapshot(raw string) (tracker.Snapshot, error) {
	var snap tracker.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return tracker.Snapshot{}, fmt.Errorf("decode status: %w", err)
	}
	return snap, nil
}
