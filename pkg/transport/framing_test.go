package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/wire"
)

var laser = wire.DeviceAddr{Port: wire.DefaultPort, Interface: wire.InterfaceLaser, Index: 0}

func testFrame(payload []byte) Frame {
	hdr := wire.NewHeader(wire.MsgData, 1, laser)
	hdr.Timestamp = time.Unix(1700000000, 250000)
	hdr.Seq = 7
	return Frame{Header: hdr, Payload: payload}
}

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{
			name:    "empty payload",
			payload: nil,
		},
		{
			name:    "small message",
			payload: []byte("hello"),
		},
		{
			name:    "medium message",
			payload: bytes.Repeat([]byte("x"), 1000),
		},
		{
			name:    "max size message",
			payload: bytes.Repeat([]byte("y"), DefaultMaxMessageSize),
		},
		{
			name:    "binary data",
			payload: []byte{0x00, 0xFF, 0x7F, 0x80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)

			writer := NewFrameWriter(buf)
			if err := writer.WriteFrame(testFrame(tt.payload)); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}

			if buf.Len() != FrameSize(len(tt.payload)) {
				t.Errorf("frame size = %d, want %d", buf.Len(), FrameSize(len(tt.payload)))
			}

			reader := NewFrameReader(buf)
			got, err := reader.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}

			if !bytes.Equal(got.Payload, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d bytes", len(got.Payload), len(tt.payload))
			}
			if got.Header.Size != uint32(len(tt.payload)) {
				t.Errorf("Header.Size = %d, want %d", got.Header.Size, len(tt.payload))
			}
			if got.Header.Type != wire.MsgData || got.Header.Interface != wire.InterfaceLaser || got.Header.Seq != 7 {
				t.Errorf("header = %+v", got.Header)
			}
			if !got.Header.Timestamp.Equal(time.Unix(1700000000, 250000)) {
				t.Errorf("Timestamp = %v", got.Header.Timestamp)
			}
		})
	}
}

func TestFrameWriterSetsStxAndSize(t *testing.T) {
	buf := new(bytes.Buffer)
	f := testFrame([]byte("abc"))
	f.Header.Stx = 0
	f.Header.Size = 999

	if err := NewFrameWriter(buf).WriteFrame(f); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	hdr, err := wire.ParseHeader(buf.Bytes()[:wire.HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if hdr.Stx != wire.Stx || hdr.Size != 3 {
		t.Errorf("Stx = 0x%04x, Size = %d; want 0x%04x, 3", hdr.Stx, hdr.Size, wire.Stx)
	}
}

func TestFrameWriterMessageTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriterWithMaxSize(buf, 100)

	err := writer.WriteFrame(testFrame(bytes.Repeat([]byte("x"), 101)))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes for a rejected frame", buf.Len())
	}
}

func TestFrameReaderMessageTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	NewFrameWriter(buf).WriteFrame(testFrame(bytes.Repeat([]byte("x"), 1000)))

	reader := NewFrameReaderWithMaxSize(buf, 100)
	_, err := reader.ReadFrame()
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestFrameReaderHeaderOverProtocolLimit(t *testing.T) {
	hdr := testFrame(nil).Header
	hdr.Size = wire.MaxMessageSize + 1
	raw := make([]byte, wire.HeaderSize)
	if err := wire.PutHeader(raw, hdr); err != nil {
		t.Fatal(err)
	}

	_, err := NewFrameReader(bytes.NewReader(raw)).ReadFrame()
	if !errors.Is(err, wire.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestFrameReaderBadStx(t *testing.T) {
	raw := make([]byte, wire.HeaderSize)
	raw[0], raw[1] = 0x12, 0x34

	_, err := NewFrameReader(bytes.NewReader(raw)).ReadFrame()
	if !errors.Is(err, wire.ErrBadStx) {
		t.Errorf("expected ErrBadStx, got %v", err)
	}
}

func TestFrameReaderBadType(t *testing.T) {
	hdr := testFrame(nil).Header
	hdr.Type = 42
	raw := make([]byte, wire.HeaderSize)
	if err := wire.PutHeader(raw, hdr); err != nil {
		t.Fatal(err)
	}

	_, err := NewFrameReader(bytes.NewReader(raw)).ReadFrame()
	if !errors.Is(err, wire.ErrInvalidMsgType) {
		t.Errorf("expected ErrInvalidMsgType, got %v", err)
	}
}

func TestFrameReaderTruncatedHeader(t *testing.T) {
	buf := bytes.NewReader([]byte{0x58, 0x78, 0x01})

	_, err := NewFrameReader(buf).ReadFrame()
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("expected ErrFrameTruncated, got %v", err)
	}
}

func TestFrameReaderTruncatedPayload(t *testing.T) {
	buf := new(bytes.Buffer)
	NewFrameWriter(buf).WriteFrame(testFrame([]byte("0123456789")))
	raw := buf.Bytes()[:wire.HeaderSize+4]

	_, err := NewFrameReader(bytes.NewReader(raw)).ReadFrame()
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("expected ErrFrameTruncated, got %v", err)
	}
}

func TestFrameReaderEOF(t *testing.T) {
	buf := new(bytes.Buffer)
	reader := NewFrameReader(buf)

	_, err := reader.ReadFrame()
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFramerBidirectional(t *testing.T) {
	// Simulate a bidirectional connection using a pipe
	r, w := io.Pipe()
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	payload := []byte("test message")

	go func() {
		defer close(done)
		framer := NewFramer(&readWriter{r: r, w: w})
		if err := framer.WriteFrame(testFrame(payload)); err != nil {
			t.Errorf("WriteFrame failed: %v", err)
		}
	}()

	framer := NewFramer(&readWriter{r: r, w: w})
	got, err := framer.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload mismatch")
	}

	<-done
}

// readWriter combines a reader and writer for testing.
type readWriter struct {
	r io.Reader
	w io.Writer
}

func (rw *readWriter) Read(p []byte) (n int, err error) {
	return rw.r.Read(p)
}

func (rw *readWriter) Write(p []byte) (n int, err error) {
	return rw.w.Write(p)
}

func TestMultipleFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)

	messages := [][]byte{
		[]byte("first"),
		[]byte("second"),
		[]byte("third"),
	}

	for i, msg := range messages {
		f := testFrame(msg)
		f.Header.Seq = uint16(i)
		if err := writer.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	reader := NewFrameReader(buf)
	for i, want := range messages {
		got, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got.Payload, want) {
			t.Errorf("message %d mismatch: got %q, want %q", i, got.Payload, want)
		}
		if got.Header.Seq != uint16(i) {
			t.Errorf("message %d Seq = %d", i, got.Header.Seq)
		}
	}

	_, err := reader.ReadFrame()
	if err != io.EOF {
		t.Errorf("expected EOF after all messages, got %v", err)
	}
}

func TestConcurrentWritesDoNotInterleave(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				writer.WriteFrame(testFrame(bytes.Repeat([]byte{b}, 300)))
			}
		}(byte('a' + i))
	}
	wg.Wait()

	reader := NewFrameReader(buf)
	for n := 0; n < 160; n++ {
		f, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", n, err)
		}
		if !bytes.Equal(f.Payload, bytes.Repeat(f.Payload[:1], 300)) {
			t.Fatalf("frame %d has mixed payload", n)
		}
	}
}

func TestFrameSize(t *testing.T) {
	if got := FrameSize(100); got != 132 {
		t.Errorf("FrameSize(100) = %d, want 132", got)
	}
	if got := FrameSize(0); got != 32 {
		t.Errorf("FrameSize(0) = %d, want 32", got)
	}
}

func BenchmarkFrameWrite(b *testing.B) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	f := testFrame(bytes.Repeat([]byte("x"), 1000))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		writer.WriteFrame(f)
	}
}

func BenchmarkFrameRead(b *testing.B) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	f := testFrame(bytes.Repeat([]byte("x"), 1000))

	for i := 0; i < 1000; i++ {
		writer.WriteFrame(f)
	}

	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reader := NewFrameReader(bytes.NewReader(data))
		for {
			_, err := reader.ReadFrame()
			if err == io.EOF {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}

// capturingLogger captures log events for testing.
type capturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *capturingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *capturingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestFrameWriterLogsOnWrite(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := &capturingLogger{}

	writer := NewFrameWriter(buf)
	writer.SetLogger(logger, "conn-123")

	payload := []byte("hello")
	if err := writer.WriteFrame(testFrame(payload)); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	e := events[0]
	if e.ConnectionID != "conn-123" {
		t.Errorf("ConnectionID = %q, want %q", e.ConnectionID, "conn-123")
	}
	if e.Direction != log.DirectionOut {
		t.Errorf("Direction = %v, want DirectionOut", e.Direction)
	}
	if e.Layer != log.LayerTransport {
		t.Errorf("Layer = %v, want LayerTransport", e.Layer)
	}
	if e.Category != log.CategoryMessage {
		t.Errorf("Category = %v, want CategoryMessage", e.Category)
	}
	if e.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if e.Frame.Size != FrameSize(len(payload)) {
		t.Errorf("Frame.Size = %d, want %d", e.Frame.Size, FrameSize(len(payload)))
	}
	if !bytes.Equal(e.Frame.Data, buf.Bytes()) {
		t.Errorf("Frame.Data does not match the bytes written")
	}
}

func TestFrameReaderLogsOnRead(t *testing.T) {
	buf := new(bytes.Buffer)
	NewFrameWriter(buf).WriteFrame(testFrame([]byte("world")))
	raw := append([]byte(nil), buf.Bytes()...)

	logger := &capturingLogger{}
	reader := NewFrameReader(buf)
	reader.SetLogger(logger, "conn-456")

	if _, err := reader.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Direction != log.DirectionIn {
		t.Errorf("Direction = %v, want DirectionIn", e.Direction)
	}
	if e.ConnectionID != "conn-456" {
		t.Errorf("ConnectionID = %q, want %q", e.ConnectionID, "conn-456")
	}
	if !bytes.Equal(e.Frame.Data, raw) {
		t.Errorf("Frame.Data does not match the bytes read")
	}
}

func TestFramerNoLoggerNoPanic(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	writer.SetLogger(nil, "conn-id")

	if err := writer.WriteFrame(testFrame([]byte("x"))); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
}

func TestFramerLogsTruncatedData(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := &capturingLogger{}

	writer := NewFrameWriter(buf)
	writer.SetLogger(logger, "conn-trunc")

	payload := bytes.Repeat([]byte("z"), MaxLogFrameDataSize+500)
	if err := writer.WriteFrame(testFrame(payload)); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	e := logger.Events()[0]
	if !e.Frame.Truncated {
		t.Error("Frame.Truncated = false, want true")
	}
	if len(e.Frame.Data) != wire.HeaderSize+MaxLogFrameDataSize {
		t.Errorf("len(Frame.Data) = %d, want %d", len(e.Frame.Data), wire.HeaderSize+MaxLogFrameDataSize)
	}
	if e.Frame.Size != FrameSize(len(payload)) {
		t.Errorf("Frame.Size = %d, want %d", e.Frame.Size, FrameSize(len(payload)))
	}
}
