package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/player-project/playerd/pkg/log"
	"github.com/player-project/playerd/pkg/wire"
)

// Framing constants.
const (
	// DefaultMaxMessageSize is the default payload limit.
	DefaultMaxMessageSize = wire.MaxMessageSize

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	// Larger frames are truncated in log events to avoid excessive memory usage.
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the payload exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrFrameTruncated indicates the frame was truncated.
	ErrFrameTruncated = errors.New("frame truncated")
)

// Frame is one message on the wire: a fixed header followed by Header.Size
// payload bytes.
type Frame struct {
	Header  wire.Header
	Payload []byte
}

// FrameWriter writes frames to an underlying writer.
type FrameWriter struct {
	w              io.Writer
	maxMessageSize uint32
	mu             sync.Mutex
	buf            []byte

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return NewFrameWriterWithMaxSize(w, DefaultMaxMessageSize)
}

// NewFrameWriterWithMaxSize creates a frame writer with a custom max size.
func NewFrameWriterWithMaxSize(w io.Writer, maxSize uint32) *FrameWriter {
	return &FrameWriter{
		w:              w,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteFrame writes a frame. The header's Stx and Size are filled in.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteFrame(f Frame) error {
	if uint32(len(f.Payload)) > fw.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(f.Payload), fw.maxMessageSize)
	}
	hdr := f.Header
	hdr.Stx = wire.Stx
	hdr.Size = uint32(len(f.Payload))

	fw.mu.Lock()
	defer fw.mu.Unlock()

	// Header and payload go out in one write so frames never interleave on
	// the socket.
	n := wire.HeaderSize + len(f.Payload)
	if cap(fw.buf) < n {
		fw.buf = make([]byte, n)
	}
	buf := fw.buf[:n]
	if err := wire.PutHeader(buf, hdr); err != nil {
		return err
	}
	copy(buf[wire.HeaderSize:], f.Payload)
	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(fw.connID, buf[:wire.HeaderSize], f.Payload, log.DirectionOut))
	}
	return nil
}

// makeFrameEvent creates a log event for a frame. The logged bytes are the
// header plus at most MaxLogFrameDataSize payload bytes.
func makeFrameEvent(connID string, header, payload []byte, direction log.Direction) log.Event {
	logged := payload
	truncated := false

	if len(payload) > MaxLogFrameDataSize {
		logged = payload[:MaxLogFrameDataSize]
		truncated = true
	}
	data := make([]byte, 0, len(header)+len(logged))
	data = append(data, header...)
	data = append(data, logged...)

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(header) + len(payload),
			Data:      data,
			Truncated: truncated,
		},
	}
}

// FrameReader reads frames from an underlying reader.
type FrameReader struct {
	r              io.Reader
	maxMessageSize uint32
	headerBuf      [wire.HeaderSize]byte

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithMaxSize(r, DefaultMaxMessageSize)
}

// NewFrameReaderWithMaxSize creates a frame reader with a custom max size.
func NewFrameReaderWithMaxSize(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{
		r:              r,
		maxMessageSize: maxSize,
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// ReadFrame reads one frame. A bad start marker, an unknown message type or
// an oversize payload is an error; the stream cannot be resynchronised after
// it.
func (fr *FrameReader) ReadFrame() (Frame, error) {
	if _, err := io.ReadFull(fr.r, fr.headerBuf[:]); err != nil {
		if err == io.EOF {
			return Frame{}, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrFrameTruncated
		}
		return Frame{}, fmt.Errorf("failed to read header: %w", err)
	}

	hdr, err := wire.ParseHeader(fr.headerBuf[:])
	if err != nil {
		return Frame{}, err
	}
	if err := hdr.Validate(); err != nil {
		return Frame{}, err
	}
	if hdr.Size > fr.maxMessageSize {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, hdr.Size, fr.maxMessageSize)
	}

	payload := make([]byte, hdr.Size)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return Frame{}, ErrFrameTruncated
		}
		return Frame{}, fmt.Errorf("failed to read payload: %w", err)
	}

	if fr.logger != nil {
		fr.logger.Log(makeFrameEvent(fr.connID, fr.headerBuf[:], payload, log.DirectionIn))
	}

	return Frame{Header: hdr, Payload: payload}, nil
}

// SetMaxMessageSize updates the maximum message size.
func (fr *FrameReader) SetMaxMessageSize(size uint32) {
	fr.maxMessageSize = size
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxMessageSize)
}

// NewFramerWithMaxSize creates a framer with a custom max message size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithMaxSize(rw, maxSize),
		FrameWriter: NewFrameWriterWithMaxSize(rw, maxSize),
	}
}

// SetLogger configures logging for both reader and writer.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}

// FrameSize returns the total frame size including the header.
func FrameSize(payloadSize int) int {
	return wire.HeaderSize + payloadSize
}
