package transport

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
)

// BulkWriter is the part of an accessory device the USB transport needs.
type BulkWriter interface {
	WriteBulk(ep aoa.AccessoryEndpoint, data []byte, timeout time.Duration) (int, error)
}

// Coder is implemented by USB errors that carry a native libusb code.
type Coder interface {
	USBCode() int
}

type USB struct {
	dev     BulkWriter
	ep      aoa.AccessoryEndpoint
	timeout time.Duration

	closed int32 // atomic
}

// NewUSB writes every frame as one bulk transfer to ep. The transport
// does not own dev; closing it only stops further sends.
func NewUSB(dev BulkWriter, ep aoa.AccessoryEndpoint, timeout time.Duration) *USB {
	return &USB{
		dev:     dev,
		ep:      ep,
		timeout: timeout,
	}
}

func (t *USB) Send(frame []byte) error {
	if atomic.LoadInt32(&t.closed) == 1 {
		return &TransportError{Kind: KindUSB, Err: ErrClosed}
	}
	n, err := t.dev.WriteBulk(t.ep, frame, t.timeout)
	if err != nil {
		return &TransportError{Kind: KindUSB, Code: usbCode(err), Err: err}
	}
	if n < len(frame) {
		return &TransportError{Kind: KindUSB, Err: ErrShortWrite}
	}
	return nil
}

func (t *USB) Kind() Kind { return KindUSB }

func (t *USB) Close() error {
	atomic.StoreInt32(&t.closed, 1)
	return nil
}

func usbCode(err error) int {
	var c Coder
	if errors.As(err, &c) {
		return c.USBCode()
	}
	return 0
}
