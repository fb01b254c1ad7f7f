// Package aoa drives USB devices into Android Open Accessory mode.
//
// The package does not import any USB library. Bus and Device are
// implemented in internal/usb on top of libusb (cgo), which keeps this
// package, the handshake state machine and their tests buildable
// without libusb installed.
package aoa

import (
	"errors"
	"fmt"
	"time"
)

const (
	AccessoryVendor       = 0x18D1
	AccessoryProduct      = 0x2D00 // accessory
	AccessoryProductDebug = 0x2D01 // accessory + adb
	AccessoryInterface    = 0
)

// Control requests.
const (
	RequestGetProtocol      = 51
	RequestSendString       = 52
	RequestStartAccessory   = 53
	RequestSetConfiguration = 9 // standard SET_CONFIGURATION

	RequestTypeVendorIn  = 0xC0 // device-to-host | vendor | device
	RequestTypeVendorOut = 0x40 // host-to-device | vendor | device
	RequestTypeStdOut    = 0x00 // host-to-device | standard | device
)

var (
	ErrNotFound   = errors.New("device not found")
	ErrNotClaimed = errors.New("interface not claimed")

	// the first bulk OUT endpoint is not on interface 0, alternate 0,
	// the only interface the handshake claims
	ErrEndpointNotClaimed = errors.New("bulk endpoint outside the claimed interface")
)

// DeviceRef identifies a device for one discovery pass only. A mode
// switch re-enumerates the device under another product id, so refs
// are never carried across it.
type DeviceRef struct {
	Bus     int
	Address int
	Vendor  uint16
	Product uint16
}

func (r DeviceRef) String() string {
	return fmt.Sprintf("Bus %03d Device %03d ID %04x:%04x", r.Bus, r.Address, r.Vendor, r.Product)
}

// IsAccessory reports whether the device already runs in accessory mode.
func (r DeviceRef) IsAccessory() bool {
	return IsAccessory(r.Vendor, r.Product)
}

func IsAccessory(vendor, product uint16) bool {
	return vendor == AccessoryVendor &&
		(product == AccessoryProduct || product == AccessoryProductDebug)
}

type Direction int

const (
	DirectionOut Direction = 0
	DirectionIn  Direction = 1
)

type TransferType int

const (
	TransferTypeControl     TransferType = 0
	TransferTypeIsochronous TransferType = 1
	TransferTypeBulk        TransferType = 2
	TransferTypeInterrupt   TransferType = 3
)

// Descriptor tree of one device. Implementations must return every
// level in ascending order (config number, interface number, alternate
// setting, endpoint address) so endpoint discovery is deterministic.
type DeviceDescriptor struct {
	Configs []ConfigDescriptor
}

type ConfigDescriptor struct {
	Number     int
	Interfaces []InterfaceDescriptor
}

type InterfaceDescriptor struct {
	Number      int
	AltSettings []AltSetting
}

type AltSetting struct {
	Alternate int
	Endpoints []EndpointDescriptor
}

type EndpointDescriptor struct {
	Address      uint8
	Direction    Direction
	TransferType TransferType
}

// AccessoryEndpoint is the bulk OUT endpoint found by the handshake.
// It is only valid for the session that found it.
type AccessoryEndpoint struct {
	Config    int
	Interface int
	Alternate int
	Address   uint8
}

func (e AccessoryEndpoint) String() string {
	return fmt.Sprintf("config %d interface %d alt %d ep 0x%02x", e.Config, e.Interface, e.Alternate, e.Address)
}

// Bus is the set of attached USB devices.
type Bus interface {
	Enumerate() ([]DeviceRef, error)
	Open(ref DeviceRef) (Device, error)
	// Find opens the first device with the given ids, or returns
	// ErrNotFound.
	Find(vendor, product uint16) (Device, error)
}

// Device is one open USB device handle.
type Device interface {
	Ref() DeviceRef
	Descriptor() (DeviceDescriptor, error)
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	ClaimInterface(num int) error
	ReleaseInterface(num int) error
	Unconfigure() error
	Reset() error
	WriteBulk(ep AccessoryEndpoint, data []byte, timeout time.Duration) (int, error)
	Close() error
}
