// Package usb implements aoa.Bus on top of libusb through gousb.
package usb

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/gousb"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
)

type LibUSB struct {
	ctx            *gousb.Context
	controlTimeout time.Duration
	detach         bool

	log *logs.Logger
}

// InitLibUSB opens a libusb context. detach asks libusb to detach (and
// later re-attach) kernel drivers of claimed interfaces.
func InitLibUSB(log *logs.Logger, controlTimeout time.Duration, detach bool) (*LibUSB, error) {
	log.Log("init")
	ctx, err := newContext()
	if err != nil {
		return nil, err
	}
	return &LibUSB{
		ctx:            ctx,
		controlTimeout: controlTimeout,
		detach:         detach,
		log:            log,
	}, nil
}

// gousb panics when libusb cannot be initialized
func newContext() (ctx *gousb.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libusb init failed: %v", r)
		}
	}()
	return gousb.NewContext(), nil
}

func (b *LibUSB) Close() {
	b.log.Log("closing")
	if err := b.ctx.Close(); err != nil {
		b.log.Log("Warning: error at closing context: " + err.Error())
	}
}

func ref(desc *gousb.DeviceDesc) aoa.DeviceRef {
	return aoa.DeviceRef{
		Bus:     desc.Bus,
		Address: desc.Address,
		Vendor:  uint16(desc.Vendor),
		Product: uint16(desc.Product),
	}
}

// Enumerate reads descriptors only, no device is opened.
func (b *LibUSB) Enumerate() ([]aoa.DeviceRef, error) {
	var refs []aoa.DeviceRef
	_, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		refs = append(refs, ref(desc))
		return false
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Bus != refs[j].Bus {
			return refs[i].Bus < refs[j].Bus
		}
		return refs[i].Address < refs[j].Address
	})
	return refs, nil
}

func (b *LibUSB) Open(r aoa.DeviceRef) (aoa.Device, error) {
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == r.Bus && desc.Address == r.Address
	})
	// OpenDevices returns whatever it could open along with the error
	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		if err != nil {
			return nil, wrap(err)
		}
		return nil, aoa.ErrNotFound
	}
	return b.device(dev), nil
}

func (b *LibUSB) Find(vendor, product uint16) (aoa.Device, error) {
	dev, err := b.ctx.OpenDeviceWithVIDPID(gousb.ID(vendor), gousb.ID(product))
	if err != nil {
		if dev != nil {
			dev.Close()
		}
		return nil, wrap(err)
	}
	if dev == nil {
		return nil, aoa.ErrNotFound
	}
	return b.device(dev), nil
}

func (b *LibUSB) device(dev *gousb.Device) *Device {
	dev.ControlTimeout = b.controlTimeout
	return &Device{
		dev:    dev,
		ref:    ref(dev.Desc),
		detach: b.detach,
		log:    b.log,
	}
}

// usbError keeps the native libusb code of an error, the transport
// reports it with the failed transfer.
type usbError struct {
	code int
	err  error
}

func (e *usbError) Error() string { return e.err.Error() }
func (e *usbError) Unwrap() error { return e.err }
func (e *usbError) USBCode() int  { return e.code }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	var gerr gousb.Error
	if errors.As(err, &gerr) {
		return &usbError{code: int(gerr), err: err}
	}
	var status gousb.TransferStatus
	if errors.As(err, &status) {
		return &usbError{code: int(status), err: err}
	}
	return err
}
