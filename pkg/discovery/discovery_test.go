package discovery

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strings"
	"testing"

	"github.com/enbility/zeroconf/v3"
)

func TestTXTRoundTrip(t *testing.T) {
	info := ServiceInfo{Name: "pioneer1", Version: "3.1.0", Devices: 4}

	strs := TXTRecordsToStrings(EncodeTXT(info))
	want := []string{"dev=4", "name=pioneer1", "ver=3.1.0"}
	if !reflect.DeepEqual(strs, want) {
		t.Errorf("TXT = %v, want %v", strs, want)
	}

	got, err := DecodeTXT(StringsToTXTRecords(strs))
	if err != nil {
		t.Fatalf("DecodeTXT failed: %v", err)
	}
	if got.Name != info.Name || got.Version != info.Version || got.Devices != info.Devices {
		t.Errorf("decoded = %+v, want %+v", got, info)
	}
}

func TestEncodeTXT_OmitsEmpty(t *testing.T) {
	txt := EncodeTXT(ServiceInfo{Name: "r"})
	if len(txt) != 1 {
		t.Errorf("TXT = %v, want only name", txt)
	}
}

func TestDecodeTXT_Errors(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
		want error
	}{
		{"missing name", TXTRecordMap{"ver": "1"}, ErrMissingRequired},
		{"empty name", TXTRecordMap{"name": ""}, ErrMissingRequired},
		{"bad device count", TXTRecordMap{"name": "r", "dev": "many"}, ErrInvalidTXTRecord},
		{"negative device count", TXTRecordMap{"name": "r", "dev": "-1"}, ErrInvalidTXTRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTXT(tt.txt); !errors.Is(err, tt.want) {
				t.Errorf("DecodeTXT err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "flag", "", "b=x=y"})
	if txt["a"] != "1" || txt["b"] != "x=y" {
		t.Errorf("txt = %v", txt)
	}
	if v, ok := txt["flag"]; !ok || v != "" {
		t.Errorf("flag = %q, %v", v, ok)
	}
	if len(txt) != 3 {
		t.Errorf("len = %d, want 3", len(txt))
	}
}

func TestValidateInstanceName(t *testing.T) {
	if err := ValidateInstanceName("robot"); err != nil {
		t.Errorf("valid name: %v", err)
	}
	if err := ValidateInstanceName(""); !errors.Is(err, ErrInstanceNameTooLong) {
		t.Errorf("empty name err = %v", err)
	}
	if err := ValidateInstanceName(strings.Repeat("x", MaxInstanceNameLen+1)); !errors.Is(err, ErrInstanceNameTooLong) {
		t.Errorf("long name err = %v", err)
	}
}

func TestEntryToService(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "robot.local.",
		Port:     6666,
		Text:     []string{"name=pioneer1", "ver=3.1.0", "dev=2"},
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
		AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
	}
	entry.Instance = "pioneer1"

	svc, ok := entryToService(entry)
	if !ok {
		t.Fatal("entryToService rejected a valid entry")
	}
	if svc.InstanceName != "pioneer1" || svc.Port != 6666 || svc.Host != "robot.local." {
		t.Errorf("service = %+v", svc)
	}
	if len(svc.Addresses) != 2 || svc.Addresses[0] != "192.168.1.20" {
		t.Errorf("Addresses = %v", svc.Addresses)
	}
	if svc.Devices != 2 || svc.Version != "3.1.0" {
		t.Errorf("Devices = %d, Version = %q", svc.Devices, svc.Version)
	}

	entry.Text = []string{"ver=1"}
	if _, ok := entryToService(entry); ok {
		t.Error("entry without name accepted")
	}
}

func TestMDNSAdvertiser_UpdateWithoutAdvertise(t *testing.T) {
	a := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	if err := a.Update(ServiceInfo{Name: "r"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update err = %v, want ErrNotFound", err)
	}
	if err := a.Stop(); err != nil {
		t.Errorf("Stop err = %v", err)
	}
	if err := a.Advertise(context.Background(), ServiceInfo{}); !errors.Is(err, ErrInstanceNameTooLong) {
		t.Errorf("Advertise with empty name err = %v", err)
	}
}
