// Package transport moves encoded frames to the phone, either as bulk
// USB transfers on an accessory endpoint or over a TCP stream.
package transport

import (
	"errors"
	"fmt"
)

// Transport sends whole frames. Send either delivers the frame or fails
// with a *TransportError; it never delivers a prefix silently.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

var (
	ErrClosed     = errors.New("transport closed")
	ErrShortWrite = errors.New("short write")
)

type Kind int

const (
	KindUSB Kind = iota
	KindTCP
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindUSB:
		return "usb"
	case KindTCP:
		return "tcp"
	case KindOther:
		return "other"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IOKind classifies TCP write failures.
type IOKind string

const (
	IOTimeout    IOKind = "timeout"
	IOClosed     IOKind = "closed"
	IOReset      IOKind = "reset"
	IOBrokenPipe IOKind = "broken-pipe"
	IOOther      IOKind = "other"
)

// TransportError is a failed Send. For USB, Code is the native libusb
// error or transfer status; for TCP, IOKind tells what went wrong.
type TransportError struct {
	Kind   Kind
	Code   int
	IOKind IOKind
	Err    error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindUSB:
		return fmt.Sprintf("usb transfer failed (code %d): %s", e.Code, e.Err)
	case KindTCP:
		return fmt.Sprintf("tcp write failed (%s): %s", e.IOKind, e.Err)
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
