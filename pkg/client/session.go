package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/player-project/playerd/pkg/driver"
	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// Session errors.
var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrSessionClosed = errors.New("session closed")
	ErrBacklogFull   = errors.New("session write backlog full")
)

// Sender writes frames to a client connection.
type Sender interface {
	Send(hdr wire.Header, payload []byte) error
	Close() error
}

// subscription is one device a session has opened.
type subscription struct {
	addr     wire.DeviceAddr
	access   wire.Access
	drv      driver.Driver
	lastSent time.Time
	stopWake func()
}

// outFrame is a frame waiting to be written. msg, when set, owns payload and
// is released after the write.
type outFrame struct {
	hdr     wire.Header
	payload []byte
	msg     *message.Message
}

// Session is the server side of one client connection.
type Session struct {
	id     string
	connID uint16
	remote string
	conn   Sender
	mgr    *Manager

	// outbox receives driver replies and published messages.
	outbox *message.Queue

	// outMu guards the writer's backlog. It is never held across a Send, so
	// Tick and driver goroutines only ever wait for each other, not for the
	// client.
	outMu   sync.Mutex
	outCond *sync.Cond
	backlog []outFrame
	dirty   map[wire.DeviceAddr]struct{}
	writing bool
	stopped bool

	mu            sync.Mutex
	subs          map[wire.DeviceAddr]*subscription
	order         []wire.DeviceAddr
	mode          wire.DataMode
	freq          uint16
	limiter       *rate.Limiter
	dataRequested bool
	authPending   bool
	seq           uint16
	closed        bool
	created       time.Time
}

func newSession(m *Manager, conn Sender, remote string, connID uint16) *Session {
	s := &Session{
		id:          uuid.New().String(),
		connID:      connID,
		remote:      remote,
		conn:        conn,
		mgr:         m,
		outbox:      message.NewQueue(true, m.config.QueueLen),
		subs:        make(map[wire.DeviceAddr]*subscription),
		mode:        wire.DataModePushNew,
		freq:        wire.DefaultFrequency,
		limiter:     rate.NewLimiter(rate.Limit(wire.DefaultFrequency), 1),
		authPending: !m.config.Key.IsZero(),
		created:     time.Now(),
		dirty:       make(map[wire.DeviceAddr]struct{}),
	}
	s.outCond = sync.NewCond(&s.outMu)
	s.outbox.SetLogger(m.config.Logger, "client "+s.id)
	s.outbox.OnDrop(func(msg *message.Message, reason message.DropReason) {
		m.config.Metrics.RecordQueueDrop("client", reason.String())
	})
	go s.writeLoop()
	return s
}

// ID returns the session UUID.
func (s *Session) ID() string {
	return s.id
}

// ConnID returns the connection number stamped into outgoing headers.
func (s *Session) ConnID() uint16 {
	return s.connID
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string {
	return s.remote
}

// Created returns when the session was opened.
func (s *Session) Created() time.Time {
	return s.created
}

// Outbox returns the queue drivers reply and publish to.
func (s *Session) Outbox() *message.Queue {
	return s.outbox
}

// Mode returns the current delivery mode.
func (s *Session) Mode() wire.DataMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Frequency returns the PUSH rate in Hz.
func (s *Session) Frequency() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freq
}

// AuthPending reports whether the session still waits for an AUTH request.
func (s *Session) AuthPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authPending
}

// Access returns the access granted for addr, or AccessClose.
func (s *Session) Access(addr wire.DeviceAddr) wire.Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[addr]; ok {
		return sub.access
	}
	return wire.AccessClose
}

// SubscriptionInfo describes one open device of a session.
type SubscriptionInfo struct {
	Addr       wire.DeviceAddr
	Access     wire.Access
	DriverName string
	LastSent   time.Time
}

// Subscriptions returns the open devices in the order they were opened.
func (s *Session) Subscriptions() []SubscriptionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SubscriptionInfo, 0, len(s.order))
	for _, addr := range s.order {
		sub := s.subs[addr]
		out = append(out, SubscriptionInfo{
			Addr:       addr,
			Access:     sub.access,
			DriverName: sub.drv.Name(),
			LastSent:   sub.lastSent,
		})
	}
	return out
}

// setAccess negotiates access to addr and returns the granted mode. It runs
// on the connection goroutine, the only writer of subs.
func (s *Session) setAccess(ctx context.Context, addr wire.DeviceAddr, want wire.Access) wire.Access {
	s.mu.Lock()
	cur := s.subs[addr]
	s.mu.Unlock()

	if want == wire.AccessClose {
		if cur == nil {
			return wire.AccessClose
		}
		s.closeSub(ctx, cur)
		s.emitAccess(addr, cur.access, wire.AccessClose)
		return wire.AccessClose
	}

	if cur != nil {
		s.mu.Lock()
		old := cur.access
		cur.access = want
		if s.mode == wire.DataModePushAsync {
			s.watchLocked(cur)
		}
		s.mu.Unlock()
		if old != want {
			s.emitAccess(addr, old, want)
		}
		return want
	}

	entry, err := s.mgr.devices.Entry(addr)
	if err != nil {
		s.mgr.debugLog("access to unknown device", "session", s.id, "addr", addr.String())
		return wire.AccessError
	}
	if err := entry.Driver.Subscribe(ctx, s.outbox); err != nil {
		s.mgr.warnLog("subscribe failed", "session", s.id, "addr", addr.String(), "error", err)
		s.mgr.config.Metrics.RecordSetupFailure(entry.DriverName)
		s.emitAccess(addr, wire.AccessClose, wire.AccessError)
		return wire.AccessError
	}

	sub := &subscription{addr: addr, access: want, drv: entry.Driver}
	s.mu.Lock()
	s.subs[addr] = sub
	s.order = append(s.order, addr)
	if s.mode == wire.DataModePushAsync {
		s.watchLocked(sub)
	}
	s.mu.Unlock()

	s.mgr.config.Metrics.RecordSubscription(addr.Interface.String(), 1)
	s.emitAccess(addr, wire.AccessClose, want)
	return want
}

// closeSub removes sub and drops its driver subscription.
func (s *Session) closeSub(ctx context.Context, sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub.addr)
	for i, a := range s.order {
		if a == sub.addr {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if sub.stopWake != nil {
		sub.stopWake()
		sub.stopWake = nil
	}
	s.mu.Unlock()

	if err := sub.drv.Unsubscribe(ctx, s.outbox); err != nil {
		s.mgr.warnLog("unsubscribe failed", "session", s.id, "addr", sub.addr.String(), "error", err)
	}
	s.mgr.config.Metrics.RecordSubscription(sub.addr.Interface.String(), -1)
}

// setMode switches the delivery mode.
func (s *Session) setMode(mode wire.DataMode) {
	s.mu.Lock()
	old := s.mode
	s.mode = mode
	if mode.IsPull() {
		s.dataRequested = false
	}
	switch {
	case mode == wire.DataModePushAsync && old != wire.DataModePushAsync:
		for _, addr := range s.order {
			s.watchLocked(s.subs[addr])
		}
	case mode != wire.DataModePushAsync && old == wire.DataModePushAsync:
		for _, sub := range s.subs {
			if sub.stopWake != nil {
				sub.stopWake()
				sub.stopWake = nil
			}
		}
	}
	s.mu.Unlock()

	if old != mode {
		s.emitState(plog.StateEntityDataMode, old.String(), mode.String())
	}
}

// setFrequency changes the PUSH rate.
func (s *Session) setFrequency(freq uint16) {
	s.mu.Lock()
	s.freq = freq
	s.limiter.SetLimit(rate.Limit(freq))
	s.mu.Unlock()
}

// requestData arms one PULL round. It fails outside the PULL modes.
func (s *Session) requestData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mode.IsPull() {
		return false
	}
	s.dataRequested = true
	return true
}

// watchLocked forwards new data of sub as soon as its driver signals.
func (s *Session) watchLocked(sub *subscription) {
	if sub == nil || sub.stopWake != nil || !sub.access.CanRead() {
		return
	}
	addr := sub.addr
	sub.stopWake = sub.drv.OnDataAvailable(func() { s.markDirty(addr) })
}

// markDirty schedules an async push of addr. It runs on driver goroutines
// inside PutData and only flags the device for the writer.
func (s *Session) markDirty(addr wire.DeviceAddr) {
	s.outMu.Lock()
	if !s.stopped {
		s.dirty[addr] = struct{}{}
		s.outCond.Broadcast()
	}
	s.outMu.Unlock()
}

// pushFrames builds the DATA frames of the flagged devices that changed since
// their last send.
func (s *Session) pushFrames(dirty map[wire.DeviceAddr]struct{}) []outFrame {
	if len(dirty) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.mode != wire.DataModePushAsync {
		return nil
	}
	var frames []outFrame
	for _, addr := range s.order {
		if _, ok := dirty[addr]; ok {
			frames = append(frames, s.dataLocked(s.subs[addr], true)...)
		}
	}
	return frames
}

// tick runs one scheduler step for the session at now.
func (s *Session) tick(now time.Time) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	var round, heartbeat bool
	switch {
	case s.mode.IsPush():
		round = s.limiter.AllowN(now, 1)
	case s.mode.IsPull():
		round = s.dataRequested
	case s.mode == wire.DataModePushAsync:
		heartbeat = s.limiter.AllowN(now, 1)
	}

	frames := s.drainLocked(round || s.mode == wire.DataModePushAsync)
	if round {
		start := time.Now()
		newOnly := s.mode.IsNew()
		for _, addr := range s.order {
			frames = append(frames, s.dataLocked(s.subs[addr], newOnly)...)
		}
		frames = append(frames, s.synchLocked(now))
		s.dataRequested = false
		s.mgr.config.Metrics.RecordRound(time.Since(start))
	} else if heartbeat {
		frames = append(frames, s.synchLocked(now))
	}
	s.mu.Unlock()

	s.write(frames)
}

// drainLocked pops the outbox. Queued DATA stays put unless withData is set,
// so it only goes out as part of a round.
func (s *Session) drainLocked(withData bool) []outFrame {
	if !withData {
		s.outbox.SetFilter(func(hdr wire.Header) bool { return hdr.Type != wire.MsgData })
		defer s.outbox.ClearFilter()
	}
	var frames []outFrame
	for {
		msg := s.outbox.Pop()
		if msg == nil {
			return frames
		}
		hdr := msg.Header()
		if hdr.Type == wire.MsgData {
			if sub, ok := s.subs[hdr.Addr(s.mgr.config.Port)]; !ok || !sub.access.CanRead() {
				msg.Release()
				continue
			}
		}
		frames = append(frames, outFrame{hdr: hdr, payload: msg.Payload(), msg: msg})
	}
}

// dataLocked builds the DATA frame for sub, or nothing when the slot is empty
// or, with newOnly, unchanged.
func (s *Session) dataLocked(sub *subscription, newOnly bool) []outFrame {
	if sub == nil || !sub.access.CanRead() {
		return nil
	}
	sample, err := sub.drv.GetData(sub.addr)
	if err != nil || sample.IsZero() {
		return nil
	}
	if newOnly && sample.Timestamp.Equal(sub.lastSent) {
		return nil
	}
	sub.lastSent = sample.Timestamp

	hdr := wire.NewHeader(wire.MsgData, sample.Subtype, sub.addr)
	hdr.Timestamp = sample.Timestamp
	return []outFrame{{hdr: hdr, payload: sample.Data}}
}

func (s *Session) synchLocked(now time.Time) outFrame {
	hdr := wire.NewHeader(wire.MsgSynch, 0, wire.PlayerAddr(s.mgr.config.Port))
	hdr.Timestamp = now
	return outFrame{hdr: hdr}
}

// reply sends a response to a request header straight to the client.
func (s *Session) reply(req wire.Header, t wire.MsgType, payload []byte) error {
	hdr := req
	hdr.Type = t
	hdr.Size = 0
	hdr.Timestamp = time.Now()
	if t == wire.MsgRespNack {
		s.mgr.config.Metrics.RecordNack(req.Interface.String())
	}
	return s.write([]outFrame{{hdr: hdr, payload: payload}})
}

// write hands frames to the session writer in order. It does not wait for
// the client; frames that would overflow the backlog are dropped.
func (s *Session) write(frames []outFrame) error {
	if len(frames) == 0 {
		return nil
	}
	s.outMu.Lock()
	if s.stopped {
		s.outMu.Unlock()
		releaseFrames(frames)
		return ErrSessionClosed
	}
	if len(s.backlog)+len(frames) > s.mgr.config.Backlog {
		s.outMu.Unlock()
		releaseFrames(frames)
		s.mgr.config.Metrics.RecordQueueDrop("writer", "overflow")
		s.mgr.warnLog("write backlog full, dropping frames", "session", s.id, "frames", len(frames))
		return ErrBacklogFull
	}
	s.backlog = append(s.backlog, frames...)
	s.outCond.Broadcast()
	s.outMu.Unlock()
	return nil
}

// writeLoop is the only goroutine that sends to the client. A failed send
// closes the session.
func (s *Session) writeLoop() {
	for {
		s.outMu.Lock()
		for !s.stopped && len(s.backlog) == 0 && len(s.dirty) == 0 {
			s.outCond.Wait()
		}
		if s.stopped {
			frames := s.backlog
			s.backlog = nil
			s.outMu.Unlock()
			releaseFrames(frames)
			return
		}
		frames, dirty := s.backlog, s.dirty
		s.backlog = nil
		if len(dirty) > 0 {
			s.dirty = make(map[wire.DeviceAddr]struct{})
		}
		s.writing = true
		s.outMu.Unlock()

		frames = append(frames, s.pushFrames(dirty)...)
		if err := s.sendAll(frames); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.fail(err)
		}

		s.outMu.Lock()
		s.writing = false
		s.outCond.Broadcast()
		s.outMu.Unlock()
	}
}

// sendAll sends frames in order and releases their messages. The first error
// stops the sends; remaining messages are still released.
func (s *Session) sendAll(frames []outFrame) error {
	var err error
	for _, f := range frames {
		if err == nil {
			err = s.send(f)
		}
		if f.msg != nil {
			f.msg.Release()
		}
	}
	return err
}

func releaseFrames(frames []outFrame) {
	for _, f := range frames {
		if f.msg != nil {
			f.msg.Release()
		}
	}
}

// fail closes a session whose connection can no longer be written.
func (s *Session) fail(err error) {
	s.mgr.warnLog("write failed, closing session", "session", s.id, "error", err)
	if kerr := s.mgr.Kick(s.id); kerr != nil && !errors.Is(kerr, ErrSessionClosed) {
		s.mgr.debugLog("close connection", "session", s.id, "error", kerr)
	}
}

func (s *Session) send(f outFrame) error {
	if len(f.payload) > wire.MaxMessageSize {
		s.mgr.warnLog("dropping oversize frame", "session", s.id, "type", f.hdr.Type.String(), "size", len(f.payload))
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.seq++
	f.hdr.Seq = s.seq
	s.mu.Unlock()

	f.hdr.Stx = wire.Stx
	f.hdr.ConnID = s.connID
	f.hdr.Time = time.Now()
	f.hdr.Size = uint32(len(f.payload))
	if err := s.conn.Send(f.hdr, f.payload); err != nil {
		s.mgr.debugLog("send failed", "session", s.id, "error", err)
		return err
	}
	s.mgr.config.Metrics.RecordMessageOut(f.hdr.Type.String())
	s.emitMessage(plog.DirectionOut, f.hdr)
	return nil
}

// close unsubscribes every device and stops motors the client was driving.
func (s *Session) close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	subs := make([]*subscription, 0, len(s.order))
	for _, addr := range s.order {
		subs = append(subs, s.subs[addr])
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.addr.Interface == wire.InterfacePosition2D && sub.access.CanWrite() {
			s.stopMotors(sub)
		}
		s.closeSub(ctx, sub)
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.outMu.Lock()
	s.stopped = true
	s.outCond.Broadcast()
	s.outMu.Unlock()
	s.outbox.Clear()
	s.emitState(plog.StateEntitySession, "OPEN", "CLOSED")
}

// stopMotors commands zero velocity on a position2d device.
func (s *Session) stopMotors(sub *subscription) {
	data, err := wire.Encode(wire.Position2DCmd{State: true}, 0)
	if err != nil {
		return
	}
	if err := sub.drv.PutCommand(sub.addr, wire.Position2DCmdState, data, time.Time{}); err != nil {
		s.mgr.warnLog("motor stop failed", "session", s.id, "addr", sub.addr.String(), "error", err)
		return
	}
	s.mgr.debugLog("motors stopped on disconnect", "session", s.id, "addr", sub.addr.String())
}

func (s *Session) emitMessage(dir plog.Direction, hdr wire.Header) {
	if s.mgr.config.ProtocolLogger == nil {
		return
	}
	s.mgr.config.ProtocolLogger.Log(plog.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.id,
		Direction:    dir,
		Layer:        plog.LayerSession,
		Category:     plog.CategoryMessage,
		RemoteAddr:   s.remote,
		Device:       hdr.Addr(s.mgr.config.Port).String(),
		Message:      plog.NewMessageEvent(hdr),
	})
}

func (s *Session) emitAccess(addr wire.DeviceAddr, from, to wire.Access) {
	if s.mgr.config.ProtocolLogger == nil {
		return
	}
	e := plog.NewStateEvent(plog.LayerSession, plog.StateEntityAccess, from.String(), to.String(), "")
	e.ConnectionID = s.id
	e.RemoteAddr = s.remote
	e.Device = addr.String()
	s.mgr.config.ProtocolLogger.Log(e)
}

func (s *Session) emitState(entity plog.StateEntity, from, to string) {
	if s.mgr.config.ProtocolLogger == nil {
		return
	}
	e := plog.NewStateEvent(plog.LayerSession, entity, from, to, "")
	e.ConnectionID = s.id
	e.RemoteAddr = s.remote
	s.mgr.config.ProtocolLogger.Log(e)
}

