package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// InterfaceOptions size the data and command slots of one interface.
// Zero sizes mean wire.MaxMessageSize.
type InterfaceOptions struct {
	DataSize int
	CmdSize  int
}

// slot is a last-value buffer of at most size bytes.
type slot struct {
	subtype uint8
	data    []byte
	size    int
	ts      time.Time
	written bool
}

type ifaceBuffers struct {
	addr   wire.DeviceAddr
	access wire.Access
	data   slot
	cmd    slot
}

// Base implements Driver. Concrete drivers embed *Base and pass themselves
// to NewBase as the Hooks.
type Base struct {
	hooks    Hooks
	self     Driver
	main     Mainer
	name     string
	registry Registry
	alwaysOn bool

	logger  *slog.Logger
	plogger plog.Logger

	// dataMu guards the interface buffers.
	dataMu sync.Mutex
	ifaces []*ifaceBuffers

	// transMu serializes subscription transitions and is held across Setup
	// and Shutdown. subMu guards the counts and maps below and is never held
	// across a hook, so a worker thread may publish while it is stopped.
	transMu     sync.Mutex
	subMu       sync.Mutex
	subs        int
	subscribers map[*message.Queue]int
	internal    map[wire.DeviceAddr]Driver
	terminated  bool

	inQueue *message.Queue

	sigMu        sync.Mutex
	sigCh        chan struct{}
	listeners    map[uint64]func()
	nextListener uint64

	threadMu    sync.Mutex
	threadState ThreadState
	stop        atomic.Bool
	cancel      context.CancelFunc
	done        chan struct{}
	stopTimeout time.Duration

	props *Properties
}

// NewBase creates the runtime for a driver. hooks is usually the concrete
// driver itself; when it also implements Driver (by embedding *Base) that
// value is what AddInterface registers.
func NewBase(hooks Hooks, opts Options) *Base {
	b := &Base{
		hooks:       hooks,
		name:        opts.Name,
		registry:    opts.Registry,
		alwaysOn:    opts.AlwaysOn,
		logger:      opts.Logger,
		plogger:     opts.ProtocolLogger,
		subscribers: make(map[*message.Queue]int),
		internal:    make(map[wire.DeviceAddr]Driver),
		inQueue:     message.NewQueue(opts.Replace, opts.QueueLen),
		sigCh:       make(chan struct{}),
		listeners:   make(map[uint64]func()),
		stopTimeout: opts.StopTimeout,
		props:       NewProperties(),
	}
	if b.stopTimeout <= 0 {
		b.stopTimeout = DefaultStopTimeout
	}
	if d, ok := hooks.(Driver); ok {
		b.self = d
	} else {
		b.self = b
	}
	if m, ok := hooks.(Mainer); ok {
		b.main = m
	}
	b.inQueue.SetLogger(opts.Logger, opts.Name)
	b.inQueue.OnDrop(b.queueDrop)
	return b
}

// Name returns the driver name.
func (b *Base) Name() string {
	return b.name
}

// AlwaysOn reports whether the server subscribes the driver at start.
func (b *Base) AlwaysOn() bool {
	return b.alwaysOn
}

// Logger returns the operational logger, which may be nil.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// AddInterface registers addr with the registry and allocates its buffers.
func (b *Base) AddInterface(addr wire.DeviceAddr, access wire.Access, opts InterfaceOptions) error {
	if b.registry != nil {
		if err := b.registry.Add(addr, b.name, access, b.self); err != nil {
			return fmt.Errorf("add interface %s: %w", addr, err)
		}
	}
	dataSize, cmdSize := opts.DataSize, opts.CmdSize
	if dataSize <= 0 {
		dataSize = wire.MaxMessageSize
	}
	if cmdSize <= 0 {
		cmdSize = wire.MaxMessageSize
	}

	b.dataMu.Lock()
	b.ifaces = append(b.ifaces, &ifaceBuffers{
		addr:   addr,
		access: access,
		data:   slot{size: dataSize},
		cmd:    slot{size: cmdSize},
	})
	b.dataMu.Unlock()
	return nil
}

// Interfaces returns the addresses this driver provides.
func (b *Base) Interfaces() []wire.DeviceAddr {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	out := make([]wire.DeviceAddr, len(b.ifaces))
	for i, ib := range b.ifaces {
		out[i] = ib.addr
	}
	return out
}

// Provides reports whether the driver provides addr (port ignored).
func (b *Base) Provides(addr wire.DeviceAddr) bool {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	return b.findLocked(addr) != nil
}

func (b *Base) findLocked(addr wire.DeviceAddr) *ifaceBuffers {
	for _, ib := range b.ifaces {
		if ib.addr.SameDevice(addr) {
			return ib
		}
	}
	return nil
}

// Subscribe adds a subscription for q. The first subscription runs Setup;
// if Setup fails the count stays at zero and the error is returned.
func (b *Base) Subscribe(ctx context.Context, q *message.Queue) error {
	b.transMu.Lock()
	defer b.transMu.Unlock()

	b.subMu.Lock()
	terminated, first := b.terminated, b.subs == 0
	b.subMu.Unlock()

	if terminated {
		return ErrTerminated
	}
	if first {
		if err := b.hooks.Setup(ctx); err != nil {
			b.warnLog("driver setup failed", "error", err)
			plog.Emit(b.plogger, b.event(plog.NewErrorEvent(plog.LayerDriver, err, "setup")))
			return fmt.Errorf("%w: %s: %w", ErrSetupFailed, b.name, err)
		}
		b.debugLog("driver setup done")
	}

	b.subMu.Lock()
	b.subs++
	if q != nil {
		b.subscribers[q]++
	}
	n := b.subs
	b.subMu.Unlock()
	b.emitSubs(n-1, n)
	return nil
}

// Unsubscribe drops a subscription for q. The last one runs Shutdown and
// then signals DataAvailable. A Shutdown error is returned but the count
// still drops.
func (b *Base) Unsubscribe(ctx context.Context, q *message.Queue) error {
	b.transMu.Lock()
	defer b.transMu.Unlock()

	// The subscriber leaves before Shutdown so nothing more is published to
	// it while the driver stops.
	b.subMu.Lock()
	if b.subs == 0 {
		b.subMu.Unlock()
		return ErrNotSubscribed
	}
	b.subs--
	if q != nil {
		if n := b.subscribers[q]; n <= 1 {
			delete(b.subscribers, q)
		} else {
			b.subscribers[q] = n - 1
		}
	}
	n := b.subs
	b.subMu.Unlock()

	var err error
	if n == 0 {
		if serr := b.hooks.Shutdown(ctx); serr != nil {
			b.warnLog("driver shutdown failed", "error", serr)
			err = fmt.Errorf("shutdown %s: %w", b.name, serr)
		}
	}
	b.emitSubs(n+1, n)

	if n == 0 {
		b.DataAvailable()
	}
	return err
}

// Subscriptions returns the subscription count.
func (b *Base) Subscriptions() int {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return b.subs
}

// SubscribeInternal subscribes this driver's in-queue to the device at
// addr, going through the same path as a client.
func (b *Base) SubscribeInternal(ctx context.Context, addr wire.DeviceAddr) (Driver, error) {
	if b.registry == nil {
		return nil, ErrNoRegistry
	}
	target, err := b.registry.Driver(addr)
	if err != nil {
		return nil, err
	}
	if err := target.Subscribe(ctx, b.inQueue); err != nil {
		return nil, err
	}
	b.subMu.Lock()
	b.internal[addr] = target
	b.subMu.Unlock()
	return target, nil
}

// UnsubscribeInternal reverses SubscribeInternal.
func (b *Base) UnsubscribeInternal(ctx context.Context, addr wire.DeviceAddr) error {
	b.subMu.Lock()
	target, ok := b.internal[addr]
	delete(b.internal, addr)
	b.subMu.Unlock()

	if !ok {
		if b.registry == nil {
			return ErrNoRegistry
		}
		var err error
		if target, err = b.registry.Driver(addr); err != nil {
			return err
		}
	}
	return target.Unsubscribe(ctx, b.inQueue)
}

// Update runs once per server tick. Drivers without a worker thread get
// their queued messages processed here.
func (b *Base) Update() {
	if b.ThreadState() != ThreadStopped {
		return
	}
	b.ProcessMessages(0)
}

// Terminate shuts the driver down regardless of its subscription count. It
// is called once at server exit; later subscriptions fail.
func (b *Base) Terminate(ctx context.Context) error {
	b.transMu.Lock()
	defer b.transMu.Unlock()

	b.subMu.Lock()
	n := b.subs
	b.subs = 0
	b.terminated = true
	clear(b.subscribers)
	b.subMu.Unlock()

	var errs []error
	if n > 0 {
		if err := b.hooks.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", b.name, err))
		}
		b.emitSubs(n, 0)
	}

	if b.ThreadState() != ThreadStopped {
		if err := b.StopThread(); err != nil {
			errs = append(errs, err)
		}
	}
	b.inQueue.Clear()
	b.DataAvailable()
	return errors.Join(errs...)
}

func (b *Base) emitSubs(from, to int) {
	plog.Emit(b.plogger, b.event(plog.NewStateEvent(plog.LayerDriver, plog.StateEntitySubscription,
		strconv.Itoa(from), strconv.Itoa(to), "")))
}

func (b *Base) event(e plog.Event) plog.Event {
	e.Driver = b.name
	return e
}

func (b *Base) debugLog(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, append([]any{"driver", b.name}, args...)...)
	}
}

func (b *Base) warnLog(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, append([]any{"driver", b.name}, args...)...)
	}
}

var _ Driver = (*Base)(nil)
