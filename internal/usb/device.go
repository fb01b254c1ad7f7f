package usb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/gousb"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
)

// Device is one open handle. It is not safe for concurrent use, the
// session serializes access.
type Device struct {
	dev    *gousb.Device
	ref    aoa.DeviceRef
	detach bool

	cfg     *gousb.Config
	intf    *gousb.Interface
	out     *gousb.OutEndpoint
	outAddr uint8

	log *logs.Logger
}

func (d *Device) Ref() aoa.DeviceRef {
	return d.ref
}

// Descriptor converts the gousb descriptor maps into sorted slices.
func (d *Device) Descriptor() (aoa.DeviceDescriptor, error) {
	var desc aoa.DeviceDescriptor

	nums := make([]int, 0, len(d.dev.Desc.Configs))
	for n := range d.dev.Desc.Configs {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	for _, n := range nums {
		c := d.dev.Desc.Configs[n]
		config := aoa.ConfigDescriptor{Number: c.Number}
		for _, i := range c.Interfaces {
			iface := aoa.InterfaceDescriptor{Number: i.Number}
			for _, s := range i.AltSettings {
				iface.AltSettings = append(iface.AltSettings, altSetting(s))
			}
			sort.Slice(iface.AltSettings, func(a, b int) bool {
				return iface.AltSettings[a].Alternate < iface.AltSettings[b].Alternate
			})
			config.Interfaces = append(config.Interfaces, iface)
		}
		sort.Slice(config.Interfaces, func(a, b int) bool {
			return config.Interfaces[a].Number < config.Interfaces[b].Number
		})
		desc.Configs = append(desc.Configs, config)
	}
	return desc, nil
}

func altSetting(s gousb.InterfaceSetting) aoa.AltSetting {
	alt := aoa.AltSetting{Alternate: s.Alternate}
	for _, e := range s.Endpoints {
		ep := aoa.EndpointDescriptor{
			Address:      uint8(e.Address),
			Direction:    aoa.DirectionOut,
			TransferType: transferType(e.TransferType),
		}
		if e.Direction == gousb.EndpointDirectionIn {
			ep.Direction = aoa.DirectionIn
		}
		alt.Endpoints = append(alt.Endpoints, ep)
	}
	sort.Slice(alt.Endpoints, func(a, b int) bool {
		return alt.Endpoints[a].Address < alt.Endpoints[b].Address
	})
	return alt
}

func transferType(t gousb.TransferType) aoa.TransferType {
	switch t {
	case gousb.TransferTypeIsochronous:
		return aoa.TransferTypeIsochronous
	case gousb.TransferTypeBulk:
		return aoa.TransferTypeBulk
	case gousb.TransferTypeInterrupt:
		return aoa.TransferTypeInterrupt
	}
	return aoa.TransferTypeControl
}

func (d *Device) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	n, err := d.dev.Control(rType, request, val, idx, data)
	return n, wrap(err)
}

// ClaimInterface claims num (alternate setting 0) in the active
// configuration.
func (d *Device) ClaimInterface(num int) error {
	if d.intf != nil {
		return fmt.Errorf("interface %d already claimed", d.intf.Setting.Number)
	}
	if err := d.dev.SetAutoDetach(d.detach); err != nil {
		// not supported everywhere, the claim may still work
		d.log.Log(fmt.Sprintf("Warning: error at auto detach: %s", err))
	}

	cfgNum, err := d.dev.ActiveConfigNum()
	if err != nil {
		return wrap(err)
	}
	d.log.Log(fmt.Sprintf("active configuration %d", cfgNum))
	cfg, err := d.dev.Config(cfgNum)
	if err != nil {
		return wrap(err)
	}
	intf, err := cfg.Interface(num, 0)
	if err != nil {
		cfg.Close()
		return wrap(err)
	}
	d.cfg = cfg
	d.intf = intf
	return nil
}

func (d *Device) ReleaseInterface(num int) error {
	if d.intf == nil || d.intf.Setting.Number != num {
		return aoa.ErrNotClaimed
	}
	d.intf.Close()
	d.intf = nil
	d.out = nil

	err := d.cfg.Close()
	d.cfg = nil
	return wrap(err)
}

// Unconfigure sets configuration 0, the device drops back to the
// address state and the phone ends the accessory session.
//
// gousb has no wrapper for libusb_set_configuration(-1), and a Config
// can only be obtained by selecting a configuration, not by dropping
// one. The standard SET_CONFIGURATION(0) request goes straight to the
// device instead. libusb's view of the active configuration is stale
// afterwards, only release, reset and close may follow.
func (d *Device) Unconfigure() error {
	_, err := d.dev.Control(aoa.RequestTypeStdOut, aoa.RequestSetConfiguration, 0, 0, nil)
	return wrap(err)
}

func (d *Device) Reset() error {
	return wrap(d.dev.Reset())
}

func (d *Device) WriteBulk(ep aoa.AccessoryEndpoint, data []byte, timeout time.Duration) (int, error) {
	if d.intf == nil {
		return 0, aoa.ErrNotClaimed
	}
	if err := checkClaimed(d.intf.Setting.Number, d.intf.Setting.Alternate, ep); err != nil {
		return 0, err
	}
	if d.out == nil || d.outAddr != ep.Address {
		out, err := d.intf.OutEndpoint(int(ep.Address & 0x0f))
		if err != nil {
			return 0, err
		}
		d.out = out
		d.outAddr = ep.Address
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	n, err := d.out.WriteContext(ctx, data)
	return n, wrap(err)
}

// checkClaimed fails when ep does not belong to the claimed interface
// and alternate setting; writing there would hit another endpoint.
func checkClaimed(num, alt int, ep aoa.AccessoryEndpoint) error {
	if ep.Interface != num || ep.Alternate != alt {
		return fmt.Errorf("%w: %s, claimed interface %d alt %d", aoa.ErrEndpointNotClaimed, ep, num, alt)
	}
	return nil
}

// Close releases a still claimed interface first, gousb refuses to
// close a device with an open configuration.
func (d *Device) Close() error {
	if d.intf != nil {
		if err := d.ReleaseInterface(d.intf.Setting.Number); err != nil {
			d.log.Log(fmt.Sprintf("Warning: error at releasing interface: %s", err))
		}
	}
	return wrap(d.dev.Close())
}
