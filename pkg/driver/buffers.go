package driver

import (
	"fmt"
	"time"

	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

// PutData stores the latest data sample for addr and wakes anyone waiting on
// the driver. A zero ts is replaced by the current time.
func (b *Base) PutData(addr wire.DeviceAddr, subtype uint8, data []byte, ts time.Time) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	b.dataMu.Lock()
	ib := b.findLocked(addr)
	if ib == nil {
		b.dataMu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoInterface, addr)
	}
	if err := ib.data.store(subtype, data, ts); err != nil {
		b.dataMu.Unlock()
		return fmt.Errorf("data %s: %w", addr, err)
	}
	b.dataMu.Unlock()

	b.DataAvailable()
	return nil
}

// GetData returns a copy of the latest data sample for addr.
func (b *Base) GetData(addr wire.DeviceAddr) (Sample, error) {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	ib := b.findLocked(addr)
	if ib == nil {
		return Sample{}, fmt.Errorf("%w: %s", ErrNoInterface, addr)
	}
	return ib.data.sample(), nil
}

// PutCommand stores the latest command for addr and queues it for the
// driver. Only the last written command is kept in the slot.
func (b *Base) PutCommand(addr wire.DeviceAddr, subtype uint8, data []byte, ts time.Time) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	b.dataMu.Lock()
	ib := b.findLocked(addr)
	if ib == nil {
		b.dataMu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoInterface, addr)
	}
	if err := ib.cmd.store(subtype, data, ts); err != nil {
		b.dataMu.Unlock()
		return fmt.Errorf("command %s: %w", addr, err)
	}
	b.dataMu.Unlock()

	if err := b.PutMsg(b.inQueue, addr, wire.MsgCmd, subtype, data, ts); err != nil {
		b.warnLog("command dropped", "addr", addr.String(), "error", err)
		return err
	}
	b.DataAvailable()
	return nil
}

// GetCommand returns a copy of the latest command for addr.
func (b *Base) GetCommand(addr wire.DeviceAddr) (Sample, error) {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	ib := b.findLocked(addr)
	if ib == nil {
		return Sample{}, fmt.Errorf("%w: %s", ErrNoInterface, addr)
	}
	return ib.cmd.sample(), nil
}

func (s *slot) store(subtype uint8, data []byte, ts time.Time) error {
	if len(data) > s.size {
		return fmt.Errorf("%w: %d > %d", ErrBufferOverflow, len(data), s.size)
	}
	s.subtype = subtype
	s.data = append(s.data[:0], data...)
	s.ts = ts
	s.written = true
	return nil
}

func (s *slot) sample() Sample {
	if !s.written {
		return Sample{}
	}
	out := Sample{Subtype: s.subtype, Timestamp: s.ts, Data: make([]byte, len(s.data))}
	copy(out.Data, s.data)
	return out
}

// queueDrop traces coalesced in-queue messages. Full-queue drops are
// already warned about by the queue.
func (b *Base) queueDrop(msg *message.Message, reason message.DropReason) {
	if reason != message.DropFull {
		b.debugLog("in-queue message dropped", "reason", reason.String(), "msg", msg.String())
	}
}
