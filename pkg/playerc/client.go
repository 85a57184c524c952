package playerc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/player-project/playerd/pkg/auth"
	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/transport"
	"github.com/player-project/playerd/pkg/version"
	"github.com/player-project/playerd/pkg/wire"
)

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("client is closed")
	ErrNack            = errors.New("request refused")
	ErrRespErr         = errors.New("request failed")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// DefaultTimeout bounds a request when Config.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Config configures a client.
type Config struct {
	// Timeout bounds each request (default DefaultTimeout).
	Timeout time.Duration

	// Port is the server's configured port, used to complete device
	// addresses in incoming headers (default wire.DefaultPort).
	Port uint16

	// SkipVersionCheck accepts servers of another major version.
	SkipVersionCheck bool

	Logger         *slog.Logger
	ProtocolLogger plog.Logger
}

// Sample is the latest data message received for a device.
type Sample struct {
	Subtype  uint8
	Data     []byte
	Time     time.Time
	Received time.Time
}

// Data is handed to data handlers.
type Data struct {
	Addr wire.DeviceAddr
	Sample
}

type replyKey struct {
	iface   wire.InterfaceCode
	index   uint16
	subtype uint8
}

type pendingReply struct {
	key replyKey
	ch  chan transport.Frame
}

// Client is a connection to a server. Requests are issued one at a time, and
// a background reader routes replies, data and SYNCH messages.
type Client struct {
	conn transport.ClientConnection
	cfg  Config

	// reqMu serializes requests.
	reqMu sync.Mutex

	mu      sync.Mutex
	pending *pendingReply
	samples map[wire.DeviceAddr]Sample
	onData  func(Data)
	rounds  uint64
	synch   chan struct{}
	err     error
	closed  bool

	done chan struct{}
}

// Dial connects to a server and starts reading from it.
func Dial(ctx context.Context, address string, cfg Config) (*Client, error) {
	tc := transport.NewClient(transport.ClientConfig{Logger: cfg.ProtocolLogger})
	conn, err := tc.Connect(ctx, address)
	if err != nil {
		return nil, err
	}
	if !cfg.SkipVersionCheck {
		if err := version.Check(conn.ServerVersion()); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return newClient(conn, cfg), nil
}

func newClient(conn transport.ClientConnection, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Port == 0 {
		cfg.Port = wire.DefaultPort
	}
	c := &Client{
		conn:    conn,
		cfg:     cfg,
		samples: make(map[wire.DeviceAddr]Sample),
		synch:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// ServerVersion returns the version from the server's ident banner.
func (c *Client) ServerVersion() string {
	return c.conn.ServerVersion()
}

// Port returns the port used to complete device addresses.
func (c *Client) Port() uint16 {
	return c.cfg.Port
}

// SetTimeout changes the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Timeout = timeout
}

// OnData installs a handler called from the reader for every DATA message.
func (c *Client) OnData(fn func(Data)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = fn
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection and fails the pending request.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	var err error
	for {
		var f transport.Frame
		if f, err = c.conn.Receive(0); err != nil {
			break
		}
		c.dispatch(f)
	}

	c.mu.Lock()
	if c.closed {
		err = ErrClientClosed
	}
	c.err = err
	if c.pending != nil {
		close(c.pending.ch)
		c.pending = nil
	}
	c.mu.Unlock()
	close(c.done)

	if !errors.Is(err, ErrClientClosed) {
		c.debugLog("connection ended", "error", err)
	}
}

func (c *Client) dispatch(f transport.Frame) {
	hdr := f.Header
	switch hdr.Type {
	case wire.MsgData:
		addr := hdr.Addr(c.cfg.Port)
		s := Sample{Subtype: hdr.Subtype, Data: f.Payload, Time: hdr.Timestamp, Received: time.Now()}
		c.mu.Lock()
		c.samples[addr] = s
		fn := c.onData
		c.mu.Unlock()
		if fn != nil {
			fn(Data{Addr: addr, Sample: s})
		}

	case wire.MsgSynch:
		c.mu.Lock()
		c.rounds++
		close(c.synch)
		c.synch = make(chan struct{})
		c.mu.Unlock()

	case wire.MsgRespAck, wire.MsgRespNack, wire.MsgRespErr:
		key := replyKey{hdr.Interface, hdr.Index, hdr.Subtype}
		c.mu.Lock()
		p := c.pending
		if p != nil && p.key == key {
			c.pending = nil
		} else {
			p = nil
		}
		c.mu.Unlock()
		if p == nil {
			c.debugLog("dropping unmatched reply", "type", hdr.Type.String(), "addr", hdr.Addr(c.cfg.Port).String(), "subtype", hdr.Subtype)
			return
		}
		p.ch <- f

	default:
		c.debugLog("ignoring message", "type", hdr.Type.String())
	}
}

// Request sends a request to addr and returns the ACK payload. A NACK yields
// ErrNack and a RESP_ERR yields ErrRespErr.
func (c *Client) Request(ctx context.Context, addr wire.DeviceAddr, subtype uint8, payload []byte) ([]byte, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	p := &pendingReply{
		key: replyKey{addr.Interface, addr.Index, subtype},
		ch:  make(chan transport.Frame, 1),
	}
	c.mu.Lock()
	if c.closed || c.err != nil {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending = p
	timeout := c.cfg.Timeout
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending == p {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	if err := c.conn.Send(wire.NewHeader(wire.MsgReq, subtype, addr), payload); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrRequestTimeout
	case f, ok := <-p.ch:
		if !ok {
			return nil, ErrClientClosed
		}
		switch f.Header.Type {
		case wire.MsgRespAck:
			return f.Payload, nil
		case wire.MsgRespNack:
			return nil, fmt.Errorf("%w: %s subtype %d", ErrNack, addr.ShortString(), subtype)
		default:
			return nil, fmt.Errorf("%w: %s subtype %d", ErrRespErr, addr.ShortString(), subtype)
		}
	}
}

// Call encodes req, sends it to addr and decodes the ACK payload into Resp.
// A nil req sends an empty payload.
func Call[Resp any](ctx context.Context, c *Client, addr wire.DeviceAddr, subtype uint8, req any) (Resp, error) {
	var zero Resp
	var data []byte
	if req != nil {
		var err error
		if data, err = wire.Encode(req, wire.MaxReqRepSize); err != nil {
			return zero, err
		}
	}
	reply, err := c.Request(ctx, addr, subtype, data)
	if err != nil {
		return zero, err
	}
	resp, err := wire.Decode[Resp](reply)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	return resp, nil
}

// Command sends a command to addr. Commands are not acknowledged.
func (c *Client) Command(addr wire.DeviceAddr, subtype uint8, payload any) error {
	data, err := wire.Encode(payload, wire.MaxMessageSize)
	if err != nil {
		return err
	}
	return c.conn.Send(wire.NewHeader(wire.MsgCmd, subtype, addr), data)
}

func (c *Client) player() wire.DeviceAddr {
	return wire.PlayerAddr(c.cfg.Port)
}

func (c *Client) playerRequest(ctx context.Context, subtype uint8, req any) error {
	var data []byte
	if req != nil {
		var err error
		if data, err = wire.Encode(req, wire.MaxReqRepSize); err != nil {
			return err
		}
	}
	_, err := c.Request(ctx, c.player(), subtype, data)
	return err
}

// Devices lists every device registered on the server.
func (c *Client) Devices(ctx context.Context) ([]wire.DeviceAddr, error) {
	list, err := Call[wire.DevList](ctx, c, c.player(), wire.PlayerDevList, nil)
	if err != nil {
		return nil, err
	}
	return list.Devices, nil
}

// DriverName returns the name of the driver behind addr.
func (c *Client) DriverName(ctx context.Context, addr wire.DeviceAddr) (string, error) {
	info, err := Call[wire.DriverInfo](ctx, c, c.player(), wire.PlayerDriverInfo, wire.DriverInfo{Addr: addr})
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

// Open asks for access to addr and returns what the server granted.
func (c *Client) Open(ctx context.Context, addr wire.DeviceAddr, access wire.Access) (wire.DeviceResp, error) {
	return Call[wire.DeviceResp](ctx, c, c.player(), wire.PlayerDev, wire.DeviceReq{Addr: addr, Access: access})
}

// CloseDevice gives up access to addr and forgets its cached data.
func (c *Client) CloseDevice(ctx context.Context, addr wire.DeviceAddr) error {
	if _, err := c.Open(ctx, addr, wire.AccessClose); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.samples, c.complete(addr))
	c.mu.Unlock()
	return nil
}

// SetDataMode selects how the server delivers data.
func (c *Client) SetDataMode(ctx context.Context, mode wire.DataMode) error {
	return c.playerRequest(ctx, wire.PlayerDataMode, wire.DataModeReq{Mode: mode})
}

// SetFrequency sets the PUSH rate in Hz.
func (c *Client) SetFrequency(ctx context.Context, hz uint16) error {
	return c.playerRequest(ctx, wire.PlayerDataFreq, wire.DataFreqReq{Frequency: hz})
}

// RequestData asks for one round of data in a PULL mode.
func (c *Client) RequestData(ctx context.Context) error {
	return c.playerRequest(ctx, wire.PlayerData, nil)
}

// Authenticate sends the connection key. It must be the first request when
// the server requires one.
func (c *Client) Authenticate(ctx context.Context, key auth.Key) error {
	return c.playerRequest(ctx, wire.PlayerAuth, wire.AuthReq{Key: key.Bytes()})
}

// LookupName resolves a robot name to its port.
func (c *Client) LookupName(ctx context.Context, name string) (uint16, error) {
	resp, err := Call[wire.NameServiceReq](ctx, c, c.player(), wire.PlayerNameService, wire.NameServiceReq{Name: name})
	if err != nil {
		return 0, err
	}
	return resp.Port, nil
}

// Ident asks the server for its banner.
func (c *Client) Ident(ctx context.Context) (wire.IdentResp, error) {
	return Call[wire.IdentResp](ctx, c, c.player(), wire.PlayerIdent, nil)
}

// Latest returns the last data message received for addr.
func (c *Client) Latest(addr wire.DeviceAddr) (Sample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.samples[c.complete(addr)]
	return s, ok
}

// Rounds returns the number of SYNCH messages received.
func (c *Client) Rounds() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rounds
}

// WaitSynch blocks until the next SYNCH message.
func (c *Client) WaitSynch(ctx context.Context) error {
	c.mu.Lock()
	ch := c.synch
	c.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read requests one round of data in PULL mode and waits for its SYNCH.
func (c *Client) Read(ctx context.Context) error {
	c.mu.Lock()
	ch := c.synch
	c.mu.Unlock()
	if err := c.RequestData(ctx); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) complete(addr wire.DeviceAddr) wire.DeviceAddr {
	if addr.Port == 0 {
		addr.Port = c.cfg.Port
	}
	return addr
}

func (c *Client) debugLog(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug(msg, args...)
	}
}
