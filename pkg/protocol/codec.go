package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize is the maximum payload size of a single frame (1 MiB).
// A length prefix above this is a protocol-fatal error.
const MaxFrameSize = 1 << 20

var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// Encode serializes a frame as [4-byte big-endian length][JSON payload].
func Encode(f *Frame) ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload))) //nolint:gosec // length bounds-checked above
	copy(buf[4:], payload)
	return buf, nil
}

// Decoder reassembles frames from an unframed byte stream. TCP gives no
// message boundaries, so a single Feed may complete zero, one, or many frames,
// and a frame may span any number of Feed calls.
type Decoder struct {
	buf bytes.Buffer
}

// NewDecoder creates an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends raw bytes and returns every frame completed by them, in order.
// A nil error with no frames means the decoder is waiting for more bytes.
// Any returned error is protocol-fatal: the stream is unrecoverable and the
// connection should be closed. Frames completed before the error are still
// returned.
func (d *Decoder) Feed(p []byte) ([]*Frame, error) {
	d.buf.Write(p)

	var frames []*Frame
	for {
		data := d.buf.Bytes()
		if len(data) < 4 {
			return frames, nil
		}
		// Peek the length prefix without consuming it, so a partial payload
		// leaves the buffer untouched for the next Feed.
		length := binary.BigEndian.Uint32(data[:4])
		if length > MaxFrameSize {
			return frames, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
		}
		if uint32(len(data)-4) < length {
			return frames, nil
		}

		f := &Frame{}
		if err := json.Unmarshal(data[4:4+length], f); err != nil {
			return frames, fmt.Errorf("protocol: unmarshal: %w", err)
		}
		d.buf.Next(4 + int(length))
		frames = append(frames, f)
	}
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}

// WriteFrame encodes a frame and writes it to w.
func WriteFrame(w io.Writer, f *Frame) error {
	buf, err := Encode(f)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one frame from r. It blocks until a full frame
// arrives, the reader fails, or the stream proves malformed.
func ReadFrame(r io.Reader) (*Frame, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("protocol: read length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}

	f := &Frame{}
	if err := json.Unmarshal(payload, f); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal: %w", err)
	}
	return f, nil
}
