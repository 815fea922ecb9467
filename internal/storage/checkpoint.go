package storage

import (
	"log/slog"
	"sync"

	"github.com/cptspacemanspiff/screentime-monitor/internal/logging"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

// Checkpointer saves durations on a background goroutine so the tracker loop
// never waits on disk. Requests that arrive while a save is running are
// coalesced: only the newest durations are written, and every ack collected
// meanwhile runs after that write.
type Checkpointer struct {
	store Store
	log   *slog.Logger

	mu      sync.Mutex
	pending *tracker.Durations
	acks    []func()
	closed  bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewCheckpointer starts the save worker. It does not take ownership of store.
func NewCheckpointer(store Store, logger *slog.Logger) *Checkpointer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checkpointer{
		store: store,
		log:   logger.With("topic", logging.TopicStorage),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Checkpoint queues d for saving. ack, if non-nil, runs once d (or newer
// durations) has been written, whether or not the write succeeded.
func (c *Checkpointer) Checkpoint(d tracker.Durations, ack func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if ack != nil {
			ack()
		}
		return
	}
	c.pending = &d
	if ack != nil {
		c.acks = append(c.acks, ack)
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Close writes anything still queued and stops the worker.
func (c *Checkpointer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.wg.Wait()
}

func (c *Checkpointer) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.wake:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *Checkpointer) flush() {
	c.mu.Lock()
	d, acks := c.pending, c.acks
	c.pending, c.acks = nil, nil
	c.mu.Unlock()

	if d != nil {
		if err := c.store.Save(*d); err != nil {
			c.log.Warn("checkpoint save failed", "err", err)
		} else {
			c.log.Debug("checkpoint saved",
				"screen_on_secs", d.ScreenOnTime, "uptime_secs", d.TotalUptime)
		}
	}
	for _, ack := range acks {
		ack()
	}
}
