package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame types identify the message carried in a frame body.
const (
	frameRequest  byte = 0x01
	frameResponse byte = 0x02
)

// MaxFrameSize bounds a single frame body.
const MaxFrameSize = 16 << 20

const headerSize = 5

// ReadFrame reads one frame from r and returns its type byte and body.
// A clean close before any header byte yields io.EOF.
func ReadFrame(r io.Reader) (byte, []byte, error) {
	return readFrame(r)
}

// WriteFrame writes body to w behind a 4-byte little-endian length and a type byte.
func WriteFrame(w io.Writer, typ byte, body []byte) error {
	return writeFrame(w, typ, body)
}

func readFrame(r io.Reader) (byte, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, fmt.Errorf("%w: truncated header", ErrMalformedFrame)
		}
		return 0, nil, err
	}
	length := binary.LittleEndian.Uint32(header[:4])
	if length > MaxFrameSize {
		return 0, nil, fmt.Errorf("%w: body of %d bytes exceeds limit", ErrMalformedFrame, length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, fmt.Errorf("%w: truncated body", ErrMalformedFrame)
		}
		return 0, nil, err
	}
	return header[4], buf, nil
}

func writeFrame(w io.Writer, typ byte, body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: body of %d bytes exceeds limit", ErrMalformedFrame, len(body))
	}
	frame := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(body)))
	frame[4] = typ
	copy(frame[headerSize:], body)
	_, err := w.Write(frame)
	return err
}
