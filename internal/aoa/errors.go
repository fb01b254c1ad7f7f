package aoa

import (
	"errors"
	"fmt"
)

// Handshake steps that can fail. Every one of them is terminal for the
// connect attempt; the engine never retries internally.
var (
	ErrVersionQueryFailed   = errors.New("version query failed")
	ErrUnsupportedVersion   = errors.New("unsupported AOA version")
	ErrProtocolStartFailed  = errors.New("accessory start failed")
	ErrReenumerationTimeout = errors.New("accessory did not re-enumerate")
	ErrClaimFailed          = errors.New("claiming interface failed")
	ErrNoBulkEndpoint       = errors.New("no bulk OUT endpoint")
)

// HandshakeError is what Engine.Connect returns. Step is one of the
// sentinels above, Err the underlying USB error (may be nil).
type HandshakeError struct {
	Device  DeviceRef
	Step    error
	Version int
	Err     error
}

func (e *HandshakeError) Error() string {
	msg := e.Step.Error()
	if errors.Is(e.Step, ErrUnsupportedVersion) {
		msg = fmt.Sprintf("%s %d", msg, e.Version)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return e.Device.String() + ": " + msg
}

func (e *HandshakeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Step}
	}
	return []error{e.Step, e.Err}
}

// DiscoveryError records a device that could not be classified.
// Discovery logs and skips these; they are returned for callers
// that want to show them.
type DiscoveryError struct {
	Device DeviceRef
	Err    error
}

func (e *DiscoveryError) Error() string {
	return e.Device.String() + ": " + e.Err.Error()
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
