package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/wire"
)

// ClientConfig configures a client.
type ClientConfig struct {
	// MaxMessageSize is the maximum payload size (default: wire.MaxMessageSize).
	MaxMessageSize uint32

	// ConnectTimeout is the connection timeout (default: 10s).
	ConnectTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client connects to a server.
type Client struct {
	config ClientConfig
}

// NewClient creates a new client.
func NewClient(config ClientConfig) *Client {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	return &Client{config: config}
}

// Dial connects with a default client.
func Dial(ctx context.Context, address string) (*ClientConn, error) {
	return NewClient(ClientConfig{}).Connect(ctx, address)
}

// Connect establishes a connection and reads the server's ident banner.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	banner := make([]byte, wire.IdentLen)
	if _, err := io.ReadFull(conn, banner); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read ident: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	version, err := wire.ParseIdent(banner)
	if err != nil {
		conn.Close()
		return nil, err
	}

	framer := NewFramerWithMaxSize(conn, c.config.MaxMessageSize)
	if c.config.Logger != nil {
		framer.SetLogger(c.config.Logger, conn.LocalAddr().String())
	}

	return &ClientConn{
		conn:    conn,
		framer:  framer,
		version: version,
		closeCh: make(chan struct{}),
	}, nil
}

// ClientConn represents a connection from client to server.
type ClientConn struct {
	conn    net.Conn
	framer  *Framer
	version string
	closeCh chan struct{}

	closeOnce sync.Once
	readMu    sync.Mutex
}

// ServerVersion returns the version announced in the ident banner.
func (c *ClientConn) ServerVersion() string {
	return c.version
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send sends a message to the server.
func (c *ClientConn) Send(hdr wire.Header, payload []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WriteFrame(Frame{Header: hdr, Payload: payload})
}

// Receive receives a message from the server with timeout.
// A zero timeout blocks until a frame arrives or the connection closes.
func (c *ClientConn) Receive(timeout time.Duration) (Frame, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return Frame{}, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	return c.framer.ReadFrame()
}

// Close closes the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
