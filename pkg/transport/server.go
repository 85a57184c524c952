package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/wire"
)

// Transport errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrServerRunning    = errors.New("server already running")
	ErrTooManyClients   = errors.New("too many connections")
)

// DefaultWriteTimeout bounds one frame write to a client.
const DefaultWriteTimeout = 5 * time.Second

// ServerConfig configures a server.
type ServerConfig struct {
	// Address to listen on (e.g., ":6665" or "127.0.0.1:6665").
	Address string

	// MaxMessageSize is the maximum payload size (default: wire.MaxMessageSize).
	MaxMessageSize uint32

	// Ident is the banner sent to every client on connect. It is padded or
	// cut to wire.IdentLen bytes.
	Ident []byte

	// MaxConnections bounds concurrent connections (0 = unlimited).
	MaxConnections int

	// WriteTimeout bounds each frame write (default: DefaultWriteTimeout).
	// A client that does not drain its socket in time is disconnected.
	WriteTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established, after the
	// banner has been sent.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnMessage is called for every frame received. It runs on the
	// connection's read goroutine.
	OnMessage func(conn *ServerConn, f Frame)

	// OnError is called when an error occurs.
	OnError func(conn *ServerConn, err error)
}

// Server accepts client connections over TCP.
type Server struct {
	config   ServerConfig
	listener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", wire.DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxConnections < 0 {
		return nil, fmt.Errorf("invalid MaxConnections %d", config.MaxConnections)
	}
	if len(config.Ident) == 0 {
		config.Ident = wire.Ident("")
	}
	ident := make([]byte, wire.IdentLen)
	copy(ident, config.Ident)
	config.Ident = ident

	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.running.Store(true)

	// Start accept loop
	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()

	// Close listener to stop accept loop
	if s.listener != nil {
		s.listener.Close()
	}

	// Close all connections
	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	// Wait for goroutines
	s.wg.Wait()

	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				if s.config.OnError != nil {
					s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
				}
				// Back off on persistent errors such as fd exhaustion.
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(conn, s.config.MaxMessageSize)
	if s.config.Logger != nil {
		framer.SetLogger(s.config.Logger, connID)
	}

	sconn := &ServerConn{
		conn:       conn,
		framer:     framer,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.connsMu.Lock()
	if s.config.MaxConnections > 0 && len(s.conns) >= s.config.MaxConnections {
		s.connsMu.Unlock()
		conn.Close()
		if s.config.OnError != nil {
			s.config.OnError(nil, fmt.Errorf("%w: rejected %s", ErrTooManyClients, conn.RemoteAddr()))
		}
		return
	}
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if _, err := conn.Write(s.config.Ident); err != nil {
		s.connsMu.Lock()
		delete(s.conns, sconn)
		s.connsMu.Unlock()
		conn.Close()
		if s.config.OnError != nil {
			s.config.OnError(nil, fmt.Errorf("send ident: %w", err))
		}
		return
	}

	s.logState(sconn, "", "CONNECTED")

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()
	sconn.Close()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logState(sconn, "CONNECTED", "DISCONNECTED")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) logState(c *ServerConn, oldState, newState string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

// ServerConn represents a client connection to the server.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string // Unique connection identifier
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Send sends a message to the client. A failed write, including one that
// misses the server's WriteTimeout, closes the connection.
func (c *ServerConn) Send(hdr wire.Header, payload []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
	if err := c.framer.WriteFrame(Frame{Header: hdr, Payload: payload}); err != nil {
		if errors.Is(err, ErrMessageTooLarge) {
			return err
		}
		c.Close()
		return fmt.Errorf("write to %s: %w", c.remoteAddr, err)
	}
	return nil
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection closes.
func (c *ServerConn) Done() <-chan struct{} {
	return c.closeCh
}

// readLoop reads messages from the connection.
func (c *ServerConn) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		f, err := c.framer.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if c.server.config.OnError != nil && c.server.running.Load() {
				select {
				case <-c.closeCh:
					// Already closing, don't report
				default:
					c.server.config.OnError(c, err)
				}
			}
			return
		}

		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, f)
		}
	}
}
