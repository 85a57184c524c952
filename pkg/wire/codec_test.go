package wire

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeDeviceReq(t *testing.T) {
	req := DeviceReq{
		Addr:   DeviceAddr{Port: 6665, Interface: InterfaceLaser, Index: 0},
		Access: AccessRead,
	}
	data, err := Encode(req, MaxReqRepSize)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode[DeviceReq](data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != req {
		t.Errorf("Decode = %+v, want %+v", got, req)
	}
}

func TestEncodeLimit(t *testing.T) {
	scan := LaserScan{Ranges: make([]float64, LaserMaxSamples)}
	_, err := Encode(scan, MaxReqRepSize)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("Encode error = %v, want ErrPayloadTooLarge", err)
	}

	if _, err := Encode(scan, 0); err != nil {
		t.Fatalf("Encode with default limit failed: %v", err)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	got, err := Decode[DataModeReq](nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Mode != DataModePushAll {
		t.Errorf("Mode = %v, want zero value", got.Mode)
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode[DeviceReq]([]byte{0xff, 0x00, 0x13})
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !strings.Contains(err.Error(), "DeviceReq") {
		t.Errorf("error %q should name the payload type", err)
	}
}

func TestDeterministicEncoding(t *testing.T) {
	list := DevList{Devices: []DeviceAddr{
		{Port: 6665, Interface: InterfacePlayer},
		{Port: 6665, Interface: InterfacePosition2D, Index: 1},
	}}
	a, err := Marshal(list)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	b, err := Marshal(list)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(a) != string(b) {
		t.Error("encoding is not deterministic")
	}
	if !Equal(list, list) {
		t.Error("Equal(list, list) = false")
	}
}

func TestPropertyValueTypes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		check func(any) bool
	}{
		{"bool", true, func(v any) bool { b, ok := v.(bool); return ok && b }},
		{"int", int64(-7), func(v any) bool { i, ok := v.(int64); return ok && i == -7 }},
		{"double", 2.5, func(v any) bool { f, ok := v.(float64); return ok && f == 2.5 }},
		{"string", "sick", func(v any) bool { s, ok := v.(string); return ok && s == "sick" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(PropertyReq{Key: "k", Value: tt.value}, MaxReqRepSize)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode[PropertyReq](data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !tt.check(got.Value) {
				t.Errorf("Value = %#v (%T), want %#v", got.Value, got.Value, tt.value)
			}
		})
	}
}

func TestClone(t *testing.T) {
	orig := LaserScan{Ranges: []float64{1, 2, 3}, ID: 4}
	c, err := Clone(orig)
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	c.Ranges[0] = 9
	if orig.Ranges[0] != 1 {
		t.Error("Clone shares the ranges slice")
	}
}
