package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	FramingRaw            = "raw"
	FramingLengthPrefixed = "length-prefixed"

	headerSize = 4
	// receivers refuse anything larger than this
	MaxFrameSize = 64 << 20
)

var (
	ErrFraming       = errors.New("unknown framing")
	ErrFrameTooLarge = errors.New("frame too large")
)

// Framed wraps t so every frame goes out in the given framing. Raw
// frames are sent unchanged, which is what existing receivers expect.
func Framed(t Transport, framing string) (Transport, error) {
	switch framing {
	case "", FramingRaw:
		return t, nil
	case FramingLengthPrefixed:
		return &lengthPrefixed{Transport: t, kind: kindOf(t), max: MaxFrameSize}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrFraming, framing)
}

type lengthPrefixed struct {
	Transport
	kind Kind
	max  int
	buf  []byte
}

func kindOf(t Transport) Kind {
	if k, ok := t.(interface{ Kind() Kind }); ok {
		return k.Kind()
	}
	return KindOther
}

// Send writes header and payload in one call so a USB frame is one
// bulk transfer and a TCP frame one flush.
func (l *lengthPrefixed) Send(frame []byte) error {
	if len(frame) > l.max {
		return &TransportError{
			Kind:   l.kind,
			IOKind: IOOther,
			Err:    fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame)),
		}
	}
	l.buf = AppendFrame(l.buf[:0], frame)
	return l.Transport.Send(l.buf)
}

// AppendFrame appends frame with its big-endian length header to dst.
func AppendFrame(dst, frame []byte) []byte {
	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
	dst = append(dst, header[:]...)
	return append(dst, frame...)
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	frame := make([]byte, size)
	if _, err := io.ReadFull(r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}
