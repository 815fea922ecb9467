package collector

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/cptspacemanspiff/screentime-monitor/internal/logging"
	"github.com/cptspacemanspiff/screentime-monitor/internal/tracker"
)

const (
	login1Dest          = "org.freedesktop.login1"
	login1Path          = "/org/freedesktop/login1"
	login1ManagerIface  = "org.freedesktop.login1.Manager"
	prepareForSleepName = login1ManagerIface + ".PrepareForSleep"
)

// SleepMonitor turns systemd-logind PrepareForSleep signals into tracker
// edges. While running it holds a "delay" sleep inhibitor that is released
// once the sleep edge has been acknowledged, so state is saved before the
// machine suspends.
type SleepMonitor struct {
	conn  *dbus.Conn
	done  chan struct{}
	edges chan tracker.Edge
	log   *slog.Logger

	mu      sync.Mutex
	inhibit *os.File
	closed  bool
}

// NewSleepMonitor creates a new sleep monitor connected to the system bus.
func NewSleepMonitor(logger *slog.Logger) (*SleepMonitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(login1ManagerIface),
		dbus.WithMatchMember("PrepareForSleep"),
	)
	if err != nil {
		return nil, err
	}

	m := &SleepMonitor{
		conn:  conn,
		done:  make(chan struct{}),
		edges: make(chan tracker.Edge, 4),
		log:   logger.With("topic", logging.TopicSleep),
	}
	if err := m.acquireInhibitor(); err != nil {
		m.log.Warn("sleep inhibitor unavailable, state is saved after wake only", "err", err)
	}
	go m.listen()
	return m, nil
}

// Edges returns the channel of sleep and wake edges.
func (m *SleepMonitor) Edges() <-chan tracker.Edge {
	return m.edges
}

// Close stops the monitor and releases the inhibitor.
func (m *SleepMonitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.done)
	m.releaseInhibitor()
}

func (m *SleepMonitor) listen() {
	ch := make(chan *dbus.Signal, 16)
	m.conn.Signal(ch)
	defer m.conn.RemoveSignal(ch)

	for {
		select {
		case sig := <-ch:
			kind, ok := edgeForSignal(sig)
			if !ok {
				continue
			}
			edge := tracker.Edge{Kind: kind}
			if kind == tracker.EdgeSleepBegin {
				m.log.Info("system going to sleep")
				edge.Ack = onceFunc(m.releaseInhibitor)
			} else {
				m.log.Info("system woke up")
				if err := m.acquireInhibitor(); err != nil {
					m.log.Warn("re-acquire sleep inhibitor", "err", err)
				}
			}
			select {
			case m.edges <- edge:
			case <-m.done:
				return
			}
		case <-m.done:
			return
		}
	}
}

// edgeForSignal decodes a PrepareForSleep signal. The boolean body is true
// before sleep and false after resume.
func edgeForSignal(sig *dbus.Signal) (tracker.EdgeKind, bool) {
	if sig == nil || sig.Name != prepareForSleepName || len(sig.Body) < 1 {
		return 0, false
	}
	active, ok := sig.Body[0].(bool)
	if !ok {
		return 0, false
	}
	if active {
		return tracker.EdgeSleepBegin, true
	}
	return tracker.EdgeWake, true
}

func (m *SleepMonitor) acquireInhibitor() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inhibit != nil || m.closed {
		return nil
	}

	var fd dbus.UnixFD
	err := m.conn.Object(login1Dest, login1Path).Call(
		login1ManagerIface+".Inhibit", 0,
		"sleep", "screentime-monitor", "Saving screen-on time", "delay",
	).Store(&fd)
	if err != nil {
		return fmt.Errorf("inhibit sleep: %w", err)
	}
	m.inhibit = os.NewFile(uintptr(fd), "logind-inhibitor")
	return nil
}

func (m *SleepMonitor) releaseInhibitor() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inhibit == nil {
		return
	}
	if err := m.inhibit.Close(); err != nil {
		m.log.Warn("release sleep inhibitor", "err", err)
	}
	m.inhibit = nil
}

func onceFunc(f func()) func() {
	var once sync.Once
	return func() { once.Do(f) }
}
