package nmeagps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/player-project/playerd/pkg/config"
	"github.com/player-project/playerd/pkg/device"
	"github.com/player-project/playerd/pkg/driver"
	"github.com/player-project/playerd/pkg/message"
	"github.com/player-project/playerd/pkg/wire"
)

func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, sum)
}

const ggaBody = "GPGGA,123519.50,4807.038,N,01131.000,W,1,08,0.9,545.4,M,46.9,M,,"

func TestParseGGA(t *testing.T) {
	day := time.Date(2024, 5, 17, 23, 0, 0, 0, time.UTC)
	fix, err := ParseGGA(sentence(ggaBody), day)
	if err != nil {
		t.Fatalf("ParseGGA failed: %v", err)
	}

	want := time.Date(2024, 5, 17, 12, 35, 19, 500000000, time.UTC)
	if !fix.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", fix.Time, want)
	}
	if math.Abs(fix.Latitude-(48+7.038/60)) > 1e-9 {
		t.Errorf("Latitude = %v", fix.Latitude)
	}
	if math.Abs(fix.Longitude+(11+31.0/60)) > 1e-9 {
		t.Errorf("Longitude = %v, want western", fix.Longitude)
	}
	if fix.Quality != 1 || fix.NumSats != 8 || fix.HDOP != 0.9 || fix.Altitude != 545.4 {
		t.Errorf("fix = %+v", fix)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"no dollar", "GPGGA,1,2,3", ErrMalformed},
		{"bad checksum", "$" + ggaBody + "*00", ErrMalformed},
		{"other sentence", sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"), ErrUnsupported},
		{"bad time", sentence("GPGGA,12x519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"), ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGGA(tt.line, time.Now()); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNoFixIsNotAFix(t *testing.T) {
	if _, err := ParseGGA(sentence("GPGGA,000001,,,,,0,,,,M,,M,,"), time.Now()); err == nil {
		t.Error("ParseGGA accepted a sentence without a fix")
	}
}

// fakePort returns queued chunks and times out like a serial port.
type fakePort struct {
	chunks  chan []byte
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case c := <-p.chunks:
		return copy(b, c), nil
	case <-time.After(p.timeout):
		return 0, io.EOF
	}
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func newGPS(t *testing.T, open Opener) *Driver {
	t.Helper()
	sec, err := config.NewSection(map[string]any{
		"name":         Name,
		"provides":     []string{"gps:0"},
		"port":         "/dev/fake",
		"baud":         9600,
		"read_timeout": "20ms",
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewWithOpener(sec, driver.Env{Registry: device.NewTable(0)}, open)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestThreadPublishesFixes(t *testing.T) {
	port := &fakePort{chunks: make(chan []byte, 8)}
	var gotName string
	var gotBaud int
	var gotTimeout time.Duration
	d := newGPS(t, func(name string, baud int, timeout time.Duration) (io.ReadCloser, error) {
		gotName, gotBaud, gotTimeout = name, baud, timeout
		port.timeout = timeout
		return port, nil
	})

	ctx := context.Background()
	q := message.NewQueue(false, 8)
	if err := d.Subscribe(ctx, q); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if gotName != "/dev/fake" || gotBaud != 9600 || gotTimeout != 20*time.Millisecond {
		t.Errorf("opened %q baud %d timeout %v", gotName, gotBaud, gotTimeout)
	}

	line := sentence(ggaBody)
	port.chunks <- []byte(line[:10])
	port.chunks <- []byte(line[10:])
	port.chunks <- []byte("$GPGGA,garbage*00\r\n")

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.Wait(waitCtx); err != nil {
		t.Fatalf("no fix published: %v", err)
	}
	msg := q.Pop()
	hdr := msg.Header()
	if hdr.Type != wire.MsgData || hdr.Subtype != wire.GPSDataState || hdr.Interface != wire.InterfaceGPS {
		t.Errorf("header = %+v", hdr)
	}
	fix, err := wire.Decode[wire.GPSData](msg.Payload())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	msg.Release()
	if fix.NumSats != 8 {
		t.Errorf("NumSats = %d, want 8", fix.NumSats)
	}

	start := time.Now()
	if err := d.Unsubscribe(ctx, q); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stop took %v", elapsed)
	}
	if !port.isClosed() {
		t.Error("port not closed")
	}
	if fixes, _ := d.Counts(); fixes != 1 {
		t.Errorf("fixes = %d, want 1", fixes)
	}
}

func TestOpenFailureFailsSubscribe(t *testing.T) {
	d := newGPS(t, func(string, int, time.Duration) (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	})
	err := d.Subscribe(context.Background(), nil)
	if !errors.Is(err, driver.ErrSetupFailed) {
		t.Fatalf("Subscribe error = %v, want ErrSetupFailed", err)
	}
	if d.Subscriptions() != 0 {
		t.Errorf("Subscriptions = %d, want 0", d.Subscriptions())
	}
}
