package aoa

import (
	"errors"
	"fmt"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
)

var errShortVersion = errors.New("short version reply")

// ParseVersion decodes the reply to GET_PROTOCOL. A reply shorter
// than two bytes yields version 0, which is never supported.
func ParseVersion(b []byte) int {
	if len(b) < 2 {
		return 0
	}
	return int(b[1])<<7 | int(b[0])
}

func SupportedVersion(v int) bool {
	return v == 1 || v == 2
}

// QueryVersion asks the device which AOA protocol version it speaks.
func QueryVersion(d Device) (int, error) {
	buf := make([]byte, 2)
	n, err := d.Control(RequestTypeVendorIn, RequestGetProtocol, 0, 0, buf)
	if err != nil {
		return 0, err
	}
	if n < len(buf) {
		return 0, errShortVersion
	}
	return ParseVersion(buf), nil
}

type Candidate struct {
	Ref     DeviceRef
	Version int
}

// Candidates is the result of one discovery pass.
type Candidates struct {
	// already in accessory mode, endpoint discovery can start right away
	Accessory []DeviceRef
	// answered GET_PROTOCOL with a supported version
	Switchable []Candidate
	// could not be opened
	Skipped []*DiscoveryError
}

// Refs lists every candidate, already switched devices first.
func (c Candidates) Refs() []DeviceRef {
	refs := make([]DeviceRef, 0, len(c.Accessory)+len(c.Switchable))
	refs = append(refs, c.Accessory...)
	for _, s := range c.Switchable {
		refs = append(refs, s.Ref)
	}
	return refs
}

func (c Candidates) Len() int {
	return len(c.Accessory) + len(c.Switchable)
}

// Discover classifies every attached device. Handles opened here are
// closed again; device state is never changed.
func Discover(bus Bus, log *logs.Logger) (Candidates, error) {
	var res Candidates

	log.Log("enumerating")
	refs, err := bus.Enumerate()
	if err != nil {
		return res, fmt.Errorf("enumerating devices: %w", err)
	}

	for _, ref := range refs {
		log.Log(ref.String())

		dev, err := bus.Open(ref)
		if err != nil {
			log.Log(fmt.Sprintf("could not open %s, skipping: %s", ref, err))
			res.Skipped = append(res.Skipped, &DiscoveryError{Device: ref, Err: err})
			continue
		}

		if ref.IsAccessory() {
			log.Log("already in accessory mode")
			res.Accessory = append(res.Accessory, ref)
			closeQuietly(dev, log)
			continue
		}

		version, err := QueryVersion(dev)
		closeQuietly(dev, log)
		if err != nil {
			log.Log("not an AOA device: " + err.Error())
			continue
		}
		if !SupportedVersion(version) {
			log.Log(fmt.Sprintf("unsupported AOA version %d", version))
			continue
		}
		log.Log(fmt.Sprintf("AOA version %d", version))
		res.Switchable = append(res.Switchable, Candidate{Ref: ref, Version: version})
	}
	return res, nil
}

func closeQuietly(dev Device, log *logs.Logger) {
	if err := dev.Close(); err != nil {
		log.Log("close: " + err.Error())
	}
}
