package driver

import (
	"errors"
	"time"

	plog "github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// InQueue returns the queue the driver consumes messages from.
func (b *Base) InQueue() *message.Queue {
	return b.inQueue
}

// PutMsg builds a message addressed from addr and pushes it onto q. A zero
// ts is replaced by the current time.
func (b *Base) PutMsg(q *message.Queue, addr wire.DeviceAddr, t wire.MsgType, subtype uint8, payload []byte, ts time.Time) error {
	if q == nil {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	hdr := wire.NewHeader(t, subtype, addr)
	hdr.Timestamp = ts
	msg, err := message.New(hdr, payload, nil)
	if err != nil {
		return err
	}
	if _, err := q.Push(msg); err != nil {
		msg.Release()
		return err
	}
	return nil
}

// Publish sends a message to every queue subscribed to the driver. Queues
// that are full lose the message; the first such error is returned after
// every subscriber has been tried.
func (b *Base) Publish(addr wire.DeviceAddr, t wire.MsgType, subtype uint8, payload []byte, ts time.Time) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	hdr := wire.NewHeader(t, subtype, addr)
	hdr.Timestamp = ts
	msg, err := message.New(hdr, payload, nil)
	if err != nil {
		return err
	}
	defer msg.Release()

	b.subMu.Lock()
	queues := make([]*message.Queue, 0, len(b.subscribers))
	for q := range b.subscribers {
		queues = append(queues, q)
	}
	b.subMu.Unlock()

	var first error
	for _, q := range queues {
		c := msg.Copy()
		if _, err := q.Push(c); err != nil {
			c.Release()
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// ProcessMessages handles up to max queued messages (0 means all that are
// queued) and returns how many were handled. It returns early once the
// worker thread has been asked to stop.
func (b *Base) ProcessMessages(max int) int {
	n := 0
	for max <= 0 || n < max {
		if b.stop.Load() {
			break
		}
		msg := b.inQueue.Pop()
		if msg == nil {
			break
		}
		b.dispatch(msg)
		msg.Release()
		n++
	}
	return n
}

func (b *Base) dispatch(msg *message.Message) {
	hdr := msg.Header()
	start := time.Now()

	reply, err := b.hooks.ProcessMessage(msg)
	if errors.Is(err, ErrUnhandled) && hdr.Type == wire.MsgReq && wire.IsPropertySubtype(hdr.Subtype) {
		reply, err = b.handleProperty(hdr.Subtype, msg.Payload())
	}

	switch {
	case err != nil && hdr.Type == wire.MsgReq:
		if !errors.Is(err, ErrUnhandled) {
			b.debugLog("request failed", "msg", msg.String(), "error", err)
		}
		reply = Nack()
	case err != nil:
		b.debugLog("unhandled message dropped", "msg", msg.String(), "error", err)
		return
	case reply.Type == 0:
		return
	}

	if len(reply.Payload) > wire.MaxReqRepSize {
		b.warnLog("reply too large, sending NACK", "msg", msg.String(), "size", len(reply.Payload))
		reply = Nack()
	}
	b.respond(msg, reply, time.Since(start))
}

func (b *Base) respond(req *message.Message, reply Reply, elapsed time.Duration) {
	q := req.ReplyTo()
	if q == nil {
		return
	}
	reqHdr := req.Header()
	hdr := reqHdr
	hdr.Type = reply.Type
	hdr.Size = 0
	hdr.Timestamp = reply.Timestamp
	if hdr.Timestamp.IsZero() {
		hdr.Timestamp = time.Now()
	}
	msg, err := message.New(hdr, reply.Payload, nil)
	if err != nil {
		b.warnLog("cannot build reply", "msg", req.String(), "error", err)
		return
	}
	if _, err := q.Push(msg); err != nil {
		msg.Release()
		b.warnLog("reply dropped", "msg", req.String(), "error", err)
		return
	}

	if b.plogger != nil {
		me := plog.NewMessageEvent(hdr)
		me.ProcessingTime = &elapsed
		plog.Emit(b.plogger, b.event(plog.Event{
			Timestamp: time.Now(),
			Direction: plog.DirectionOut,
			Layer:     plog.LayerDriver,
			Category:  plog.CategoryMessage,
			Device:    reqHdr.Addr(0).ShortString(),
			Message:   me,
		}))
	}
}
