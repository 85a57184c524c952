package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/player-project/playerd/pkg/auth"
	"github.com/player-project/playerd/pkg/device"
	"github.com/player-project/playerd/pkg/discovery"
	"github.com/player-project/playerd/pkg/driver"
	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/metrics"
	"github.com/player-project/playerd/pkg/wire"
)

// ErrInvalidConfig is returned by ManagerConfig.Validate.
var ErrInvalidConfig = errors.New("invalid client manager configuration")

// DefaultBacklog is the default number of frames a session writer may hold.
const DefaultBacklog = 1024

// Devices is the view of the device table the sessions need.
type Devices interface {
	Entry(addr wire.DeviceAddr) (device.Entry, error)
	List() []device.Entry
	Drivers() []driver.Driver
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Port is the server port, used for addresses that omit one.
	Port uint16

	// QueueLen is the capacity of each session outbox.
	QueueLen int

	// Backlog bounds the frames waiting for one session's writer. Frames
	// beyond it are dropped.
	Backlog int

	// Tick is the period of Run.
	Tick time.Duration

	// Key enables authentication when non-zero.
	Key auth.Key

	// ServiceName is the name NAMESERVICE answers with Port.
	ServiceName string

	// Version is reported by IDENT.
	Version string

	// Resolver looks up other servers for NAMESERVICE. Nil answers only
	// ServiceName.
	Resolver discovery.Resolver

	// ResolveTimeout bounds one NAMESERVICE lookup.
	ResolveTimeout time.Duration

	// Logger receives operational logs; nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives session events.
	ProtocolLogger plog.Logger

	// Metrics records traffic; nil disables it.
	Metrics *metrics.Metrics
}

// DefaultManagerConfig returns the defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Port:           wire.DefaultPort,
		QueueLen:       wire.DefaultQueueLen,
		Backlog:        DefaultBacklog,
		Tick:           10 * time.Millisecond,
		ResolveTimeout: discovery.BrowseTimeout,
	}
}

// Validate checks the configuration.
func (c ManagerConfig) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("%w: port must be non-zero", ErrInvalidConfig)
	}
	if c.QueueLen <= 0 {
		return fmt.Errorf("%w: queue length must be positive", ErrInvalidConfig)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("%w: backlog must not be negative", ErrInvalidConfig)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive", ErrInvalidConfig)
	}
	return nil
}

// Manager owns the client sessions and runs the delivery schedule.
type Manager struct {
	config  ManagerConfig
	devices Devices

	mu       sync.RWMutex
	sessions map[string]*Session
	nextConn uint16

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager serving the devices of devices.
func NewManager(devices Devices, config ManagerConfig) *Manager {
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = discovery.BrowseTimeout
	}
	if config.Backlog <= 0 {
		config.Backlog = DefaultBacklog
	}
	return &Manager{
		config:   config,
		devices:  devices,
		sessions: make(map[string]*Session),
	}
}

// connIdentifier is implemented by connections that carry their own ID.
type connIdentifier interface {
	ConnID() string
}

// Add opens a session for a new connection. Connections that report a
// ConnID keep it as the session ID so logs correlate across layers.
func (m *Manager) Add(conn Sender, remote string) *Session {
	m.mu.Lock()
	m.nextConn++
	if m.nextConn == 0 {
		m.nextConn++
	}
	s := newSession(m, conn, remote, m.nextConn)
	if c, ok := conn.(connIdentifier); ok && c.ConnID() != "" {
		s.id = c.ConnID()
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.config.Metrics.RecordSession(1)
	m.debugLog("session opened", "session", s.id, "remote", remote)
	return s
}

// Remove closes the session with id. Its devices are unsubscribed and
// position2d devices it was driving get a stop command.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.close(context.Background())
	m.config.Metrics.RecordSession(-1)
	m.debugLog("session closed", "session", id)
}

// Kick closes the connection of session id and removes the session.
func (m *Manager) Kick(id string) error {
	s, ok := m.Session(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	m.Remove(id)
	return s.conn.Close()
}

// Session returns the session with id.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the open sessions, oldest first.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Session) int {
		if c := a.created.Compare(b.created); c != 0 {
			return c
		}
		return int(a.connID) - int(b.connID)
	})
	return out
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Tick runs the driver update hooks and then every session's schedule.
// Session frames are handed to the session writers, so a slow client never
// delays the loop.
func (m *Manager) Tick(now time.Time) {
	for _, d := range m.devices.Drivers() {
		d.Update()
	}
	for _, s := range m.Sessions() {
		s.tick(now)
	}
}

// Run calls Tick every Tick period until ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.Tick(now)
		}
	}
}

// Start runs Run in the background.
func (m *Manager) Start() {
	if m.running.Swap(true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.Run(ctx)
	}()
}

// Stop ends the background loop started by Start.
func (m *Manager) Stop() {
	if !m.running.Swap(false) {
		return
	}
	m.cancel()
	m.wg.Wait()
}

// Close stops the loop, closes every session and its connection.
func (m *Manager) Close() {
	m.Stop()
	for _, s := range m.Sessions() {
		m.Remove(s.id)
		if err := s.conn.Close(); err != nil {
			m.debugLog("close connection", "session", s.id, "error", err)
		}
	}
}

// resolve maps a robot name to a port.
func (m *Manager) resolve(ctx context.Context, name string) (uint16, error) {
	if name == m.config.ServiceName {
		return m.config.Port, nil
	}
	if m.config.Resolver == nil {
		return 0, discovery.ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, m.config.ResolveTimeout)
	defer cancel()
	svc, err := m.config.Resolver.Resolve(ctx, name)
	if err != nil {
		return 0, err
	}
	return svc.Port, nil
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}

func (m *Manager) warnLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Warn(msg, args...)
	}
}
