package driver

import (
	"errors"
	"testing"

	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

func TestProperties_RegisterGetSet(t *testing.T) {
	p := NewProperties()
	if err := p.Register("rate", 10, false); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("range_max", 8.0, false); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("serial", "abc", true); err != nil {
		t.Fatal(err)
	}
	if err := p.Register("bad", []int{1}, false); !errors.Is(err, ErrPropertyType) {
		t.Errorf("Register(slice) err = %v, want ErrPropertyType", err)
	}

	v, err := p.Get("rate")
	if err != nil || v != int64(10) {
		t.Errorf("Get(rate) = %v, %v; want int64 10", v, err)
	}

	tests := []struct {
		name    string
		key     string
		value   any
		wantErr error
	}{
		{"int", "rate", uint8(5), nil},
		{"int into double", "range_max", 4, nil},
		{"string into int", "rate", "fast", ErrPropertyType},
		{"read-only", "serial", "x", ErrReadOnly},
		{"missing", "nope", 1, ErrNoProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Set(tt.key, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Set(%s) err = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}

	if v, _ := p.Get("range_max"); v != 4.0 {
		t.Errorf("range_max = %v (%T), want 4.0", v, v)
	}
	if keys := p.Keys(); len(keys) != 3 || keys[0] != "range_max" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestBase_TypedPropertyAccessors(t *testing.T) {
	b := newTestBase(t, &fakeHooks{})
	_ = b.RegisterProperty("enabled", true, false)
	_ = b.RegisterProperty("rate", 10, false)
	_ = b.RegisterProperty("range_max", 8.5, false)
	_ = b.RegisterProperty("port", "/dev/ttyS0", false)

	if !b.BoolProperty("enabled", false) {
		t.Error("BoolProperty(enabled) = false")
	}
	if b.IntProperty("rate", 0) != 10 {
		t.Errorf("IntProperty(rate) = %d", b.IntProperty("rate", 0))
	}
	if b.DoubleProperty("range_max", 0) != 8.5 {
		t.Errorf("DoubleProperty(range_max) = %v", b.DoubleProperty("range_max", 0))
	}
	if b.StringProperty("port", "") != "/dev/ttyS0" {
		t.Errorf("StringProperty(port) = %q", b.StringProperty("port", ""))
	}
	if b.IntProperty("range_max", -1) != -1 {
		t.Error("IntProperty on a double should return the default")
	}
}

func propertyRequest(t *testing.T, b *Base, outbox *message.Queue, subtype uint8, req wire.PropertyReq) *message.Message {
	t.Helper()
	payload, err := wire.Encode(req, wire.MaxReqRepSize)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := message.New(wire.NewHeader(wire.MsgReq, subtype, laserAddr), payload, outbox)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.InQueue().Push(msg); err != nil {
		t.Fatal(err)
	}
	b.ProcessMessages(0)
	reply := outbox.Pop()
	if reply == nil {
		t.Fatalf("no reply to property subtype %d", subtype)
	}
	return reply
}

func TestProcessMessages_PropertyRequests(t *testing.T) {
	b := newTestBase(t, &fakeHooks{})
	_ = b.RegisterProperty("rate", 10, false)
	_ = b.RegisterProperty("range_max", 8.0, false)
	_ = b.RegisterProperty("name", "front", true)
	outbox := message.NewQueue(false, 0)

	reply := propertyRequest(t, b, outbox, wire.GetIntProp, wire.PropertyReq{Key: "rate"})
	if reply.Header().Type != wire.MsgRespAck {
		t.Fatalf("GET int reply = %v, want ACK", reply)
	}
	got, err := wire.Decode[wire.PropertyReq](reply.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if got.Key != "rate" || got.Value != uint64(10) {
		t.Errorf("GET int = %+v (%T)", got, got.Value)
	}
	reply.Release()

	reply = propertyRequest(t, b, outbox, wire.SetIntProp, wire.PropertyReq{Key: "rate", Value: 20})
	if reply.Header().Type != wire.MsgRespAck {
		t.Errorf("SET int reply = %v, want ACK", reply)
	}
	reply.Release()
	if b.IntProperty("rate", 0) != 20 {
		t.Errorf("rate = %d, want 20", b.IntProperty("rate", 0))
	}

	reply = propertyRequest(t, b, outbox, wire.SetDoubleProp, wire.PropertyReq{Key: "range_max", Value: 4})
	if reply.Header().Type != wire.MsgRespAck {
		t.Errorf("SET double with int reply = %v, want ACK", reply)
	}
	reply.Release()
	if b.DoubleProperty("range_max", 0) != 4 {
		t.Errorf("range_max = %v, want 4", b.DoubleProperty("range_max", 0))
	}

	nacks := []struct {
		name    string
		subtype uint8
		req     wire.PropertyReq
	}{
		{"wrong kind get", wire.GetBoolProp, wire.PropertyReq{Key: "rate"}},
		{"missing key", wire.GetIntProp, wire.PropertyReq{Key: "nope"}},
		{"read-only", wire.SetStringProp, wire.PropertyReq{Key: "name", Value: "rear"}},
		{"wrong kind set", wire.SetBoolProp, wire.PropertyReq{Key: "rate", Value: true}},
	}
	for _, tt := range nacks {
		t.Run(tt.name, func(t *testing.T) {
			reply := propertyRequest(t, b, outbox, tt.subtype, tt.req)
			defer reply.Release()
			if reply.Header().Type != wire.MsgRespNack {
				t.Errorf("reply = %v, want NACK", reply)
			}
		})
	}
}
