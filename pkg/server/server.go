// Package server wires the device table, drivers, client sessions, TCP
// transport and the supporting services into a running server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/player-project/playerd/pkg/auth"
	"github.com/player-project/playerd/pkg/client"
	"github.com/player-project/playerd/pkg/config"
	"github.com/player-project/playerd/pkg/device"
	"github.com/player-project/playerd/pkg/discovery"
	"github.com/player-project/playerd/pkg/driver"
	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/metrics"
	"github.com/player-project/playerd/pkg/monitor"
	"github.com/player-project/playerd/pkg/transport"
	"github.com/player-project/playerd/pkg/version"
	"github.com/player-project/playerd/pkg/wire"
)

// Server errors.
var (
	ErrAlreadyStarted = errors.New("server already started")
	ErrNotStarted     = errors.New("server not started")
)

// State is the server lifecycle state.
type State uint8

const (
	// StateIdle - created but not started.
	StateIdle State = iota

	// StateStarting - building drivers and opening listeners.
	StateStarting

	// StateRunning - serving clients.
	StateRunning

	// StateStopping - shutting down.
	StateStopping

	// StateStopped - stopped; Start may run again.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Options are the runtime settings that do not come from the configuration
// file.
type Options struct {
	// Version is reported in the ident banner, IDENT replies and mDNS.
	Version string

	// ListenAddress overrides ":<port>" (e.g. "127.0.0.1:0" in tests).
	ListenAddress string

	// MaxDevices bounds the device table (0 = unlimited).
	MaxDevices int

	// Logger receives operational logs; nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives protocol events in addition to the file log
	// and the monitor stream.
	ProtocolLogger plog.Logger

	// Metrics is the Prometheus registry. Nil creates a private one.
	Metrics *metrics.Registry

	// Advertiser and Resolver replace the mDNS implementations.
	Advertiser discovery.Advertiser
	Resolver   discovery.Resolver
}

// Server is a running robot server.
type Server struct {
	cfg       *config.Config
	factories driver.Factories
	opts      Options

	mu    sync.RWMutex
	state State

	table      *device.Table
	drivers    []driver.Driver
	alwaysOn   []driver.Driver
	manager    *client.Manager
	transport  transport.Listener
	monitor    *monitor.Server
	advertiser discovery.Advertiser
	protocol   *plog.MultiLogger
	fileLog    *plog.FileLogger
	metrics    *metrics.Registry

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server for cfg. Drivers are built from factories when Start
// runs.
func New(cfg *config.Config, factories driver.Factories, opts Options) *Server {
	if opts.Version == "" {
		opts.Version = version.Current
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}
	return &Server{
		cfg:       cfg,
		factories: factories,
		opts:      opts,
		state:     StateIdle,
		metrics:   opts.Metrics,
	}
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start builds the drivers, subscribes the always-on ones and starts
// serving. Any failure undoes what was started and returns the error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	if err := s.start(ctx); err != nil {
		_ = s.teardown()
		s.setState(StateIdle)
		return err
	}
	s.setState(StateRunning)
	s.infoLog("server running", "addr", s.Addr(), "devices", s.table.Len())
	return nil
}

func (s *Server) start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	srv := s.cfg.Server

	key, err := s.key()
	if err != nil {
		return err
	}

	s.protocol = plog.NewMultiLogger()
	if s.opts.ProtocolLogger != nil {
		s.protocol.Add(s.opts.ProtocolLogger)
	}
	if srv.ProtocolLog != "" {
		if s.fileLog, err = plog.NewFileLogger(srv.ProtocolLog); err != nil {
			return fmt.Errorf("protocol log: %w", err)
		}
		s.protocol.Add(s.fileLog)
	}

	s.table = device.NewTable(s.opts.MaxDevices)
	if err := s.buildDrivers(); err != nil {
		return err
	}
	for _, w := range s.cfg.Warnings() {
		s.warnLog("configuration", "warning", w)
	}
	if err := s.subscribeAlwaysOn(s.ctx); err != nil {
		return err
	}

	resolver := s.opts.Resolver
	if resolver == nil && srv.Advertise {
		resolver = discovery.NewMDNSResolver(discovery.DefaultResolverConfig())
	}
	mcfg := client.ManagerConfig{
		Port:           srv.Port,
		QueueLen:       srv.QueueLength,
		Tick:           srv.Tick,
		Key:            key,
		ServiceName:    srv.Name,
		Version:        s.opts.Version,
		Resolver:       resolver,
		ResolveTimeout: discovery.BrowseTimeout,
		Logger:         s.opts.Logger,
		ProtocolLogger: s.protocol,
		Metrics:        s.metrics.Metrics,
	}
	if err := mcfg.Validate(); err != nil {
		return err
	}
	s.manager = client.NewManager(s.table, mcfg)

	addr := s.opts.ListenAddress
	if addr == "" {
		addr = fmt.Sprintf(":%d", srv.Port)
	}
	ts, err := transport.NewServer(transport.ServerConfig{
		Address:        addr,
		Ident:          wire.Ident(s.opts.Version),
		MaxConnections: srv.MaxClients,
		WriteTimeout:   srv.WriteTimeout,
		Logger:         s.protocol,
		OnConnect:      s.onConnect,
		OnDisconnect:   s.onDisconnect,
		OnMessage:      s.onMessage,
		OnError:        s.onError,
	})
	if err != nil {
		return err
	}
	s.transport = ts
	if err := s.transport.Start(s.ctx); err != nil {
		return err
	}
	s.manager.Start()

	if srv.Monitor != "" {
		s.monitor = monitor.NewServer(monitor.Config{
			Address:  srv.Monitor,
			Version:  s.opts.Version,
			Registry: s.metrics,
			Devices:  s.table,
			Sessions: s.manager,
			Logger:   s.opts.Logger,
		})
		if err := s.monitor.Start(); err != nil {
			return err
		}
		s.protocol.Add(s.monitor.Hub())
	}

	if srv.Advertise {
		s.advertise()
	}
	return nil
}

// key returns the authentication key configured for the server.
func (s *Server) key() (auth.Key, error) {
	srv := s.cfg.Server
	switch {
	case srv.Secret != "":
		return auth.DeriveKey([]byte(srv.Secret), []byte(srv.Salt), "")
	case srv.Key != "":
		return auth.ParseKey(srv.Key), nil
	}
	return auth.Key{}, nil
}

// buildDrivers runs the factory of every driver section in file order.
func (s *Server) buildDrivers() error {
	env := driver.Env{
		Registry:       s.table,
		QueueLen:       s.cfg.Server.QueueLength,
		Logger:         s.opts.Logger,
		ProtocolLogger: s.protocol,
	}
	for _, sec := range s.cfg.Drivers {
		factory, err := s.factories.Lookup(sec.Name())
		if err != nil {
			return fmt.Errorf("line %d: %w", sec.Line(), err)
		}
		drv, err := factory(sec, env)
		if err != nil {
			return fmt.Errorf("driver %q (line %d): %w", sec.Name(), sec.Line(), err)
		}
		s.drivers = append(s.drivers, drv)
		s.debugLog("driver loaded", "driver", drv.Name(), "interfaces", len(drv.Interfaces()))
	}
	return nil
}

func (s *Server) subscribeAlwaysOn(ctx context.Context) error {
	for _, drv := range s.drivers {
		if !drv.AlwaysOn() {
			continue
		}
		if err := drv.Subscribe(ctx, nil); err != nil {
			s.metrics.Metrics.RecordSetupFailure(drv.Name())
			return fmt.Errorf("always-on driver %q: %w", drv.Name(), err)
		}
		s.alwaysOn = append(s.alwaysOn, drv)
	}
	return nil
}

func (s *Server) advertise() {
	adv := s.opts.Advertiser
	if adv == nil {
		adv = discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
	}
	info := discovery.ServiceInfo{
		Name:    s.cfg.Server.Name,
		Port:    s.port(),
		Version: s.opts.Version,
		Devices: s.table.Len(),
	}
	if err := adv.Advertise(s.ctx, info); err != nil {
		s.warnLog("mDNS advertisement failed", "error", err)
		return
	}
	s.advertiser = adv
}

// Stop shuts the server down in reverse start order.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	s.mu.Unlock()

	err := s.teardown()
	s.setState(StateStopped)
	s.infoLog("server stopped")
	return err
}

// teardown releases whatever start acquired. Every step tolerates the
// component being absent.
func (s *Server) teardown() error {
	var errs []error
	if s.advertiser != nil {
		errs = append(errs, s.advertiser.Stop())
		s.advertiser = nil
	}
	if s.monitor != nil {
		errs = append(errs, s.monitor.Close())
		s.monitor = nil
	}
	if s.transport != nil {
		errs = append(errs, s.transport.Stop())
		s.transport = nil
	}
	if s.manager != nil {
		s.manager.Close()
	}

	ctx := context.Background()
	for i := len(s.alwaysOn) - 1; i >= 0; i-- {
		if err := s.alwaysOn[i].Unsubscribe(ctx, nil); err != nil && !errors.Is(err, driver.ErrNotSubscribed) {
			errs = append(errs, err)
		}
	}
	s.alwaysOn = nil
	for i := len(s.drivers) - 1; i >= 0; i-- {
		errs = append(errs, s.drivers[i].Terminate(ctx))
	}
	s.drivers = nil

	if s.cancel != nil {
		s.cancel()
	}
	if s.fileLog != nil {
		errs = append(errs, s.fileLog.Close())
		s.fileLog = nil
	}
	return errors.Join(errs...)
}

// Run starts the server, waits for ctx to end and stops it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *Server) onConnect(conn *transport.ServerConn) {
	sess := s.manager.Add(conn, conn.RemoteAddr().String())
	s.debugLog("client connected", "session", sess.ID(), "remote", sess.RemoteAddr())
}

func (s *Server) onDisconnect(conn *transport.ServerConn) {
	s.manager.Remove(conn.ConnID())
}

func (s *Server) onMessage(conn *transport.ServerConn, f transport.Frame) {
	sess, ok := s.manager.Session(conn.ConnID())
	if !ok {
		return
	}
	if err := sess.Handle(s.ctx, f.Header, f.Payload); err != nil {
		s.debugLog("closing client", "session", sess.ID(), "error", err)
		_ = conn.Close()
	}
}

func (s *Server) onError(conn *transport.ServerConn, err error) {
	if conn == nil {
		s.warnLog("transport error", "error", err)
		return
	}
	s.debugLog("connection error", "session", conn.ConnID(), "error", err)
}

// Table returns the device table. It is nil before Start.
func (s *Server) Table() *device.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Manager returns the client manager. It is nil before Start.
func (s *Server) Manager() *client.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager
}

// Metrics returns the metrics registry.
func (s *Server) Metrics() *metrics.Registry {
	return s.metrics
}

// Addr returns the listen address, or nil when not serving.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.transport == nil {
		return nil
	}
	return s.transport.Addr()
}

// MonitorAddr returns the monitor listen address, or nil.
func (s *Server) MonitorAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.monitor == nil {
		return nil
	}
	return s.monitor.Addr()
}

// ConnectionCount returns the number of open client connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.transport == nil {
		return 0
	}
	return s.transport.ConnectionCount()
}

func (s *Server) port() uint16 {
	if a, ok := s.Addr().(*net.TCPAddr); ok && a.Port > 0 {
		return uint16(a.Port)
	}
	return s.cfg.Server.Port
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, args...)
	}
}

func (s *Server) infoLog(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg, args...)
	}
}

func (s *Server) warnLog(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, args...)
	}
}
