package chat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize caps the payload length a peer may announce. Matches the
// default of the length-delimited codec the protocol originated with.
const MaxFrameSize = 8 * 1024 * 1024

// ErrFrameTooLarge is returned when a length prefix exceeds MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("frame exceeds %d bytes", MaxFrameSize)

// Frames are [4-byte big-endian length][payload]. The reader never returns a
// partial frame and never merges two frames; any framing error is
// connection-fatal and the stream must be abandoned.

// FrameReader reads length-prefixed frames from a byte stream.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r in a frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame returns the next frame's payload. It returns io.EOF when the
// stream ends cleanly between frames and io.ErrUnexpectedEOF when it ends
// mid-frame.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// FrameWriter writes length-prefixed frames to a byte stream.
type FrameWriter struct {
	w *bufio.Writer
}

// NewFrameWriter wraps w in a frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: bufio.NewWriter(w)}
}

// WriteFrame writes one payload as a single frame and flushes it.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := fw.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := fw.w.Write(payload); err != nil {
		return err
	}
	return fw.w.Flush()
}
