package message

import (
	"context"
	"log/slog"
	"sync"

	"github.com/player-project/playerd/pkg/wire"
)

// Element is a queue node. It belongs to at most one queue at a time.
type Element struct {
	msg        *Message
	prev, next *Element
	queue      *Queue
}

// Message returns the message held by the element.
func (e *Element) Message() *Message {
	return e.msg
}

// Filter selects the messages Pop may return.
type Filter func(hdr wire.Header) bool

// ReplyFilter matches the responses to a request with header req.
func ReplyFilter(req wire.Header) Filter {
	return func(hdr wire.Header) bool {
		return hdr.Type.IsResponse() &&
			hdr.Interface == req.Interface &&
			hdr.Index == req.Index &&
			hdr.Subtype == req.Subtype
	}
}

// DropReason says why a queue discarded a message.
type DropReason uint8

const (
	DropFull DropReason = iota
	DropReplaced
	DropIgnored
)

// String returns the drop reason name.
func (r DropReason) String() string {
	switch r {
	case DropFull:
		return "full"
	case DropReplaced:
		return "replaced"
	case DropIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Queue is a bounded FIFO of messages. A full queue never blocks: Push fails
// with ErrQueueFull. With replace enabled, a new DATA or CMD message evicts a
// queued message of the same signature.
type Queue struct {
	mu      sync.Mutex
	head    *Element
	tail    *Element
	length  int
	maxlen  int
	replace bool
	rules   []ReplaceRule
	filter  Filter

	ready chan struct{} // closed by Push to wake waiters

	logger *slog.Logger
	name   string
	onDrop func(msg *Message, reason DropReason)
}

// NewQueue creates a queue holding at most maxlen messages. A maxlen of zero
// or less uses wire.DefaultQueueLen.
func NewQueue(replace bool, maxlen int) *Queue {
	if maxlen <= 0 {
		maxlen = wire.DefaultQueueLen
	}
	return &Queue{replace: replace, maxlen: maxlen}
}

// SetLogger sets the logger used for queue warnings. name identifies the
// queue in log lines.
func (q *Queue) SetLogger(logger *slog.Logger, name string) {
	q.mu.Lock()
	q.logger = logger
	q.name = name
	q.mu.Unlock()
}

// OnDrop registers a callback invoked, outside the queue lock, for every
// message the queue discards.
func (q *Queue) OnDrop(fn func(msg *Message, reason DropReason)) {
	q.mu.Lock()
	q.onDrop = fn
	q.mu.Unlock()
}

// SetReplace changes the default replace policy for DATA and CMD messages.
func (q *Queue) SetReplace(replace bool) {
	q.mu.Lock()
	q.replace = replace
	q.mu.Unlock()
}

// Replace reports the default replace policy.
func (q *Queue) Replace() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.replace
}

// Push appends msg. On success the queue owns the reference; on error the
// caller keeps it. The returned element is nil when a rule ignored the
// message.
func (q *Queue) Push(msg *Message) (*Element, error) {
	var dropped []*Message
	var reasons []DropReason

	q.mu.Lock()
	action := q.checkReplace(msg.hdr)
	switch action {
	case ActionIgnore:
		onDrop := q.onDrop
		q.mu.Unlock()
		if onDrop != nil {
			onDrop(msg, DropIgnored)
		}
		msg.Release()
		return nil, nil
	case ActionReplace:
		for el := q.tail; el != nil; el = el.prev {
			if sameSignature(el.msg.hdr, msg.hdr) {
				q.unlink(el)
				dropped = append(dropped, el.msg)
				reasons = append(reasons, DropReplaced)
				break
			}
		}
	}

	if q.length >= q.maxlen {
		logger, name, onDrop := q.logger, q.name, q.onDrop
		q.mu.Unlock()
		if logger != nil {
			logger.Warn("tried to push onto a full message queue",
				"queue", name, "type", msg.hdr.Type, "interface", msg.hdr.Interface,
				"index", msg.hdr.Index, "subtype", msg.hdr.Subtype)
		}
		q.notifyDrops(onDrop, dropped, reasons)
		if onDrop != nil {
			onDrop(msg, DropFull)
		}
		return nil, ErrQueueFull
	}

	el := &Element{msg: msg, queue: q}
	if q.tail == nil {
		q.head, q.tail = el, el
	} else {
		el.prev = q.tail
		q.tail.next = el
		q.tail = el
	}
	q.length++
	wake := q.filter == nil || q.filter(msg.hdr)
	if wake && q.ready != nil {
		close(q.ready)
		q.ready = nil
	}
	onDrop := q.onDrop
	q.mu.Unlock()

	q.notifyDrops(onDrop, dropped, reasons)
	return el, nil
}

func (q *Queue) notifyDrops(onDrop func(*Message, DropReason), msgs []*Message, reasons []DropReason) {
	for i, m := range msgs {
		if onDrop != nil {
			onDrop(m, reasons[i])
		}
		m.Release()
	}
}

// Pop removes and returns the oldest message accepted by the filter, or nil.
// The caller owns the returned reference.
func (q *Queue) Pop() *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	el := q.firstMatch()
	if el == nil {
		return nil
	}
	q.unlink(el)
	return el.msg
}

// PopElement removes el and returns its message. A nil el pops the head,
// ignoring the filter. It returns nil for an element of another queue or one
// already removed.
func (q *Queue) PopElement(el *Element) *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if el == nil {
		el = q.head
	}
	if el == nil || el.queue != q {
		return nil
	}
	q.unlink(el)
	return el.msg
}

// Remove discards el and releases its message. It reports whether el was
// queued.
func (q *Queue) Remove(el *Element) bool {
	if el == nil {
		return false
	}
	msg := q.PopElement(el)
	if msg == nil {
		return false
	}
	msg.Release()
	return true
}

// unlink removes el from the list. Caller holds q.mu.
func (q *Queue) unlink(el *Element) {
	if el.prev != nil {
		el.prev.next = el.next
	} else {
		q.head = el.next
	}
	if el.next != nil {
		el.next.prev = el.prev
	} else {
		q.tail = el.prev
	}
	el.prev, el.next, el.queue = nil, nil, nil
	q.length--
}

func (q *Queue) firstMatch() *Element {
	for el := q.head; el != nil; el = el.next {
		if q.filter == nil || q.filter(el.msg.hdr) {
			return el
		}
	}
	return nil
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}

// Maxlen returns the capacity.
func (q *Queue) Maxlen() int {
	return q.maxlen
}

// Empty reports whether the queue holds no messages.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Clear discards every queued message.
func (q *Queue) Clear() {
	q.mu.Lock()
	var msgs []*Message
	for el := q.head; el != nil; {
		next := el.next
		el.prev, el.next, el.queue = nil, nil, nil
		msgs = append(msgs, el.msg)
		el = next
	}
	q.head, q.tail, q.length = nil, nil, 0
	q.mu.Unlock()

	for _, m := range msgs {
		m.Release()
	}
}

// SetFilter restricts Pop and Wait to messages accepted by f.
func (q *Queue) SetFilter(f Filter) {
	q.mu.Lock()
	q.filter = f
	if f != nil && q.firstMatch() != nil && q.ready != nil {
		close(q.ready)
		q.ready = nil
	}
	q.mu.Unlock()
}

// ClearFilter removes the filter.
func (q *Queue) ClearFilter() {
	q.SetFilter(nil)
}

// Wait blocks until a message accepted by the filter is queued or ctx ends.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.firstMatch() != nil {
			q.mu.Unlock()
			return nil
		}
		if q.ready == nil {
			q.ready = make(chan struct{})
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
