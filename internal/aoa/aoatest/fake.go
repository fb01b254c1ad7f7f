// Package aoatest provides an in-memory aoa.Bus for tests.
package aoatest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
)

var ErrInjected = errors.New("injected failure")

type ControlCall struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Data        []byte
}

// Device is a scripted aoa.Device. Zero value answers GET_PROTOCOL with
// version 2 and accepts everything else.
type Device struct {
	ID aoa.DeviceRef

	// reply to GET_PROTOCOL, defaults to version 2
	VersionReply []byte
	VersionErr   error
	StringErr    error
	StartErr     error
	ClaimErr     error
	ReleaseErr   error
	UnconfigErr  error
	ResetErr     error
	Desc         aoa.DeviceDescriptor
	DescErr      error

	// WriteErr is called before every bulk write; a non-nil return
	// fails that write.
	WriteErr func(n int) error

	mu       sync.Mutex
	controls []ControlCall
	calls    []string
	writes   [][]byte
	closed   int
	claimed  bool
}

func (d *Device) record(call string) {
	d.calls = append(d.calls, call)
}

func (d *Device) Ref() aoa.DeviceRef {
	return d.ID
}

func (d *Device) Descriptor() (aoa.DeviceDescriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("descriptor")
	return d.Desc, d.DescErr
}

func (d *Device) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cp := append([]byte(nil), data...)
	d.controls = append(d.controls, ControlCall{rType, request, val, idx, cp})
	d.record(fmt.Sprintf("control %d", request))

	switch request {
	case aoa.RequestGetProtocol:
		if d.VersionErr != nil {
			return 0, d.VersionErr
		}
		reply := d.VersionReply
		if reply == nil {
			reply = []byte{2, 0}
		}
		return copy(data, reply), nil
	case aoa.RequestSendString:
		if d.StringErr != nil {
			return 0, d.StringErr
		}
	case aoa.RequestStartAccessory:
		if d.StartErr != nil {
			return 0, d.StartErr
		}
	}
	return len(data), nil
}

func (d *Device) ClaimInterface(num int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("claim %d", num))
	if d.ClaimErr != nil {
		return d.ClaimErr
	}
	d.claimed = true
	return nil
}

func (d *Device) ReleaseInterface(num int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("release %d", num))
	if !d.claimed {
		return aoa.ErrNotClaimed
	}
	d.claimed = false
	return d.ReleaseErr
}

func (d *Device) Unconfigure() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("unconfigure")
	return d.UnconfigErr
}

func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("reset")
	return d.ResetErr
}

func (d *Device) WriteBulk(ep aoa.AccessoryEndpoint, data []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(fmt.Sprintf("write 0x%02x", ep.Address))
	if d.WriteErr != nil {
		if err := d.WriteErr(len(d.writes)); err != nil {
			d.writes = append(d.writes, nil)
			return 0, err
		}
	}
	d.writes = append(d.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("close")
	d.closed++
	return nil
}

// Controls returns every control transfer in order.
func (d *Device) Controls() []ControlCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ControlCall(nil), d.controls...)
}

// Calls returns a log of every method called, in order.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Writes returns successful bulk payloads. Failed writes show up as nil.
func (d *Device) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.writes...)
}

func (d *Device) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Device) Claimed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claimed
}

// Started reports whether START was sent to d.
func (d *Device) Started() bool {
	for _, c := range d.Controls() {
		if c.Request == aoa.RequestStartAccessory {
			return true
		}
	}
	return false
}

// Bus is a scripted aoa.Bus. Devices is what Enumerate returns.
// Switched, when set, is what Find returns for accessory ids once
// AppearAfter Find calls have missed.
type Bus struct {
	Devices     []*Device
	EnumErr     error
	OpenErr     map[aoa.DeviceRef]error
	Switched    *Device
	AppearAfter int

	mu    sync.Mutex
	finds int
	opens []aoa.DeviceRef
}

func (b *Bus) Enumerate() ([]aoa.DeviceRef, error) {
	if b.EnumErr != nil {
		return nil, b.EnumErr
	}
	refs := make([]aoa.DeviceRef, 0, len(b.Devices))
	for _, d := range b.Devices {
		refs = append(refs, d.ID)
	}
	return refs, nil
}

func (b *Bus) Open(ref aoa.DeviceRef) (aoa.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens = append(b.opens, ref)
	if err := b.OpenErr[ref]; err != nil {
		return nil, err
	}
	for _, d := range b.Devices {
		if d.ID == ref {
			return d, nil
		}
	}
	return nil, aoa.ErrNotFound
}

func (b *Bus) Find(vendor, product uint16) (aoa.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finds++
	if b.Switched == nil || b.finds <= b.AppearAfter {
		return nil, aoa.ErrNotFound
	}
	if b.Switched.ID.Vendor != vendor || b.Switched.ID.Product != product {
		return nil, aoa.ErrNotFound
	}
	return b.Switched, nil
}

// Finds returns the number of Find calls so far.
func (b *Bus) Finds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finds
}

func (b *Bus) Opens() []aoa.DeviceRef {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]aoa.DeviceRef(nil), b.opens...)
}

// BulkDescriptor is a single config/interface with one bulk IN and one
// bulk OUT endpoint, the layout Android accessories expose.
func BulkDescriptor(in, out uint8) aoa.DeviceDescriptor {
	return aoa.DeviceDescriptor{Configs: []aoa.ConfigDescriptor{{
		Number: 1,
		Interfaces: []aoa.InterfaceDescriptor{{
			Number: 0,
			AltSettings: []aoa.AltSetting{{
				Alternate: 0,
				Endpoints: []aoa.EndpointDescriptor{
					{Address: in, Direction: aoa.DirectionIn, TransferType: aoa.TransferTypeBulk},
					{Address: out, Direction: aoa.DirectionOut, TransferType: aoa.TransferTypeBulk},
				},
			}},
		}},
	}}}
}

// Phone returns a device in normal mode that speaks AOA version 2.
func Phone(bus, addr int) *Device {
	return &Device{ID: aoa.DeviceRef{Bus: bus, Address: addr, Vendor: 0x04e8, Product: 0x6860}}
}

// Accessory returns a device already in accessory mode.
func Accessory(bus, addr int, product uint16) *Device {
	return &Device{
		ID:   aoa.DeviceRef{Bus: bus, Address: addr, Vendor: aoa.AccessoryVendor, Product: product},
		Desc: BulkDescriptor(0x81, 0x01),
	}
}
