package aoa

import (
	"context"
	"fmt"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
)

type State int

const (
	StateDiscovered State = iota
	StateVersionQueried
	StateProtocolStarted
	StateAwaitingReenumeration
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateVersionQueried:
		return "version-queried"
	case StateProtocolStarted:
		return "protocol-started"
	case StateAwaitingReenumeration:
		return "awaiting-reenumeration"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Identity is sent with SEND_STRING before the switch, when enabled.
// The order of the fields is the AOA string index order.
type Identity struct {
	Manufacturer string
	Model        string
	Description  string
	Version      string
	URI          string
	Serial       string
}

func (i Identity) strings() []string {
	return []string{i.Manufacturer, i.Model, i.Description, i.Version, i.URI, i.Serial}
}

type Options struct {
	// re-discovery budget after START
	Attempts int
	Interval time.Duration

	SendIdentity bool
	Identity     Identity
}

// Transition is reported for every state the handshake enters.
type Transition struct {
	Device  DeviceRef
	State   State
	Version int
	Err     error
}

// Result is a connected accessory. The caller owns Device and must
// release it (see core.Session).
type Result struct {
	Device   Device
	Endpoint AccessoryEndpoint
	Version  int
	Trace    []State
}

type Engine struct {
	bus       Bus
	opts      Options
	log       *logs.Logger
	observers []func(Transition)
}

func NewEngine(bus Bus, opts Options, log *logs.Logger) *Engine {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Engine{
		bus:  bus,
		opts: opts,
		log:  log,
	}
}

// OnTransition registers f to be called synchronously on every state
// change of every handshake.
func (e *Engine) OnTransition(f func(Transition)) {
	e.observers = append(e.observers, f)
}

type attempt struct {
	e       *Engine
	ref     DeviceRef
	version int
	trace   []State
}

func (a *attempt) enter(s State) {
	a.trace = append(a.trace, s)
	a.e.log.Log(fmt.Sprintf("%s -> %s", a.ref, s))
	for _, f := range a.e.observers {
		f(Transition{Device: a.ref, State: s, Version: a.version})
	}
}

func (a *attempt) fail(step error, err error) error {
	herr := &HandshakeError{
		Device:  a.ref,
		Step:    step,
		Version: a.version,
		Err:     err,
	}
	a.trace = append(a.trace, StateFailed)
	a.e.log.Log(herr.Error())
	for _, f := range a.e.observers {
		f(Transition{Device: a.ref, State: StateFailed, Version: a.version, Err: herr})
	}
	return herr
}

// Connect runs the handshake once against ref. It never retries a
// failed step.
func (e *Engine) Connect(ctx context.Context, ref DeviceRef) (*Result, error) {
	a := &attempt{e: e, ref: ref}
	a.enter(StateDiscovered)

	dev, err := e.bus.Open(ref)
	if err != nil {
		return nil, a.fail(ErrVersionQueryFailed, err)
	}

	version, err := QueryVersion(dev)
	if err != nil {
		closeQuietly(dev, e.log)
		return nil, a.fail(ErrVersionQueryFailed, err)
	}
	a.version = version
	if !SupportedVersion(version) {
		closeQuietly(dev, e.log)
		return nil, a.fail(ErrUnsupportedVersion, nil)
	}
	a.enter(StateVersionQueried)

	if !ref.IsAccessory() {
		if e.opts.SendIdentity {
			if err := e.sendIdentity(dev); err != nil {
				closeQuietly(dev, e.log)
				return nil, a.fail(ErrProtocolStartFailed, err)
			}
		}
		e.log.Log("starting accessory mode")
		if _, err := dev.Control(RequestTypeVendorOut, RequestStartAccessory, 0, 0, nil); err != nil {
			closeQuietly(dev, e.log)
			return nil, a.fail(ErrProtocolStartFailed, err)
		}
		a.enter(StateProtocolStarted)

		// the device drops off the bus now, this handle is dead
		closeQuietly(dev, e.log)

		a.enter(StateAwaitingReenumeration)
		dev, err = e.awaitAccessory(ctx)
		if err != nil {
			return nil, a.fail(ErrReenumerationTimeout, err)
		}
	} else {
		e.log.Log("already in accessory mode, skipping start")
	}

	e.log.Log("claiming interface")
	if err := dev.ClaimInterface(AccessoryInterface); err != nil {
		closeQuietly(dev, e.log)
		return nil, a.fail(ErrClaimFailed, err)
	}

	desc, err := dev.Descriptor()
	if err != nil {
		e.releaseAndClose(dev)
		return nil, a.fail(ErrNoBulkEndpoint, err)
	}
	ep, ok := FindBulkOut(desc)
	if !ok {
		e.releaseAndClose(dev)
		return nil, a.fail(ErrNoBulkEndpoint, nil)
	}
	if ep.Interface != AccessoryInterface || ep.Alternate != 0 {
		e.releaseAndClose(dev)
		return nil, a.fail(ErrNoBulkEndpoint, fmt.Errorf("%w: %s", ErrEndpointNotClaimed, ep))
	}
	e.log.Log("bulk endpoint " + ep.String())

	a.enter(StateConnected)
	return &Result{
		Device:   dev,
		Endpoint: ep,
		Version:  version,
		Trace:    a.trace,
	}, nil
}

func (e *Engine) sendIdentity(dev Device) error {
	for idx, s := range e.opts.Identity.strings() {
		data := append([]byte(s), 0)
		if _, err := dev.Control(RequestTypeVendorOut, RequestSendString, 0, uint16(idx), data); err != nil {
			return fmt.Errorf("sending identity string %d: %w", idx, err)
		}
	}
	return nil
}

func (e *Engine) awaitAccessory(ctx context.Context) (Device, error) {
	err := ErrNotFound
	for i := 0; i < e.opts.Attempts; i++ {
		if i > 0 {
			if werr := wait(ctx, e.opts.Interval); werr != nil {
				return nil, werr
			}
		}
		for _, product := range []uint16{AccessoryProduct, AccessoryProductDebug} {
			dev, ferr := e.bus.Find(AccessoryVendor, product)
			if ferr == nil {
				e.log.Log(fmt.Sprintf("found at 0x%04x", product))
				return dev, nil
			}
			e.log.Log(fmt.Sprintf("0x%04x:0x%04x not openable: %s", AccessoryVendor, product, ferr))
			err = ferr
		}
	}
	return nil, err
}

func (e *Engine) releaseAndClose(dev Device) {
	if err := dev.ReleaseInterface(AccessoryInterface); err != nil {
		e.log.Log("release: " + err.Error())
	}
	closeQuietly(dev, e.log)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
