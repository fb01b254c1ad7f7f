// Package core ties discovery, the AOA handshake, transports and the
// stream loop together into mirroring sessions.
//
// USB package is not imported here: internal/usb uses cgo (libusb),
// the core and its tests only see the aoa.Bus interface.
package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/capture"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/config"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/events"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/metrics"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/transport"
)

var (
	ErrNoBus    = errors.New("usb not available")
	ErrNoDevice = errors.New("no AOA capable device found")
)

type Core struct {
	cfg     config.Config
	bus     aoa.Bus
	src     capture.Source
	events  *events.Bus
	metrics *metrics.Metrics
	log     *logs.Logger

	// OnOutcome, when set, is called after every session ended.
	OnOutcome func(Outcome)

	lastID uint64     // atomic
	mutex  sync.Mutex // one session at a time
}

// New creates the core. bus may be nil when only TCP is used; ev and m
// are optional.
func New(
	cfg config.Config,
	bus aoa.Bus,
	src capture.Source,
	ev *events.Bus,
	m *metrics.Metrics,
	log *logs.Logger,
) *Core {
	return &Core{
		cfg:     cfg,
		bus:     bus,
		src:     src,
		events:  ev,
		metrics: m,
		log:     log,
	}
}

func (c *Core) streamOptions() StreamOptions {
	return StreamOptions{
		Quality:            c.cfg.Stream.Quality,
		FailureThreshold:   c.cfg.Stream.FailureThreshold,
		CaptureRetryDelay:  c.cfg.Stream.CaptureRetryDelay.D(),
		MaxCaptureFailures: c.cfg.Stream.MaxCaptureFailures,
	}
}

func (c *Core) handshakeOptions() aoa.Options {
	u := c.cfg.USB
	return aoa.Options{
		Attempts:     u.ReenumerationAttempts,
		Interval:     u.ReenumerationInterval.D(),
		SendIdentity: u.SendIdentity,
		Identity: aoa.Identity{
			Manufacturer: u.Identity.Manufacturer,
			Model:        u.Identity.Model,
			Description:  u.Identity.Description,
			Version:      u.Identity.Version,
			URI:          u.Identity.URI,
			Serial:       u.Identity.Serial,
		},
	}
}

// List runs one discovery pass without touching any device.
func (c *Core) List() (aoa.Candidates, error) {
	if c.bus == nil {
		return aoa.Candidates{}, ErrNoBus
	}
	return aoa.Discover(c.bus, c.log)
}

// MirrorUSB finds an AOA capable device, switches it to accessory mode
// and streams to it until ctx is cancelled or sending keeps failing.
// Candidates are tried in discovery order, already switched devices
// first; a failed handshake moves on to the next candidate.
func (c *Core) MirrorUSB(ctx context.Context) Outcome {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.bus == nil {
		return failed(ModeUSB, ErrNoBus)
	}
	cands, err := aoa.Discover(c.bus, c.log)
	if err != nil {
		return failed(ModeUSB, err)
	}
	if cands.Len() == 0 {
		c.log.Log("no candidates")
		return failed(ModeUSB, ErrNoDevice)
	}

	engine := aoa.NewEngine(c.bus, c.handshakeOptions(), c.log)
	engine.OnTransition(c.publishTransition)

	var lastErr error
	for _, ref := range cands.Refs() {
		if err := ctx.Err(); err != nil {
			return failed(ModeUSB, err)
		}
		res, err := engine.Connect(ctx, ref)
		if err != nil {
			lastErr = err
			c.metrics.HandshakeFailed(reason(err))
			continue
		}
		id := atomic.AddUint64(&c.lastID, 1)
		s := NewUSBSession(id, res, c.log)
		tr := transport.NewUSB(s.Guard(res.Device), res.Endpoint, c.cfg.USB.BulkTimeout.D())
		return c.run(ctx, s, tr)
	}
	return failed(ModeUSB, lastErr)
}

func (c *Core) publishTransition(t aoa.Transition) {
	ev := events.HandshakeProgress{
		Device:  t.Device.String(),
		State:   t.State.String(),
		Version: t.Version,
		Time:    time.Now(),
	}
	if t.Err != nil {
		ev.Error = t.Err.Error()
	}
	c.events.Publish(ev)
}

// run streams over tr until the session ends, then tears it down.
func (c *Core) run(ctx context.Context, s *Session, tr transport.Transport) Outcome {
	framed, err := transport.Framed(tr, c.cfg.Stream.Framing)
	if err != nil {
		o := failed(s.Mode, err)
		o.Session, o.Peer = s.ID, s.Peer
		o.Teardown = s.Teardown()
		return o
	}

	c.log.Logf("session %d started (%s %s)", s.ID, s.Mode, s.Peer)
	s.Watch(ctx)
	c.metrics.SessionStarted()
	c.events.Publish(events.SessionStarted{
		ID:   s.ID,
		Mode: s.Mode,
		Peer: s.Peer,
		Time: s.Started,
	})

	st := NewStreamer(c.src, framed, c.streamOptions(), c.metrics, c.log)
	st.OnSendFailure = func(n int, err error) {
		c.events.Publish(events.FrameSendFailed{
			ID:          s.ID,
			Consecutive: n,
			Error:       err.Error(),
			Time:        time.Now(),
		})
	}

	s.setRunning(true)
	err = st.Run(ctx)
	s.setRunning(false)

	td := s.Teardown()
	if terr := td.Err(); terr != nil {
		c.log.Log("teardown finished with errors: " + terr.Error())
	}

	o := Outcome{
		Session:  s.ID,
		Mode:     s.Mode,
		Peer:     s.Peer,
		State:    Connected,
		Err:      err,
		Frames:   st.Frames(),
		Teardown: td,
	}
	if ctx.Err() == nil || !errors.Is(err, ctx.Err()) {
		o.State = Failed
		o.Reason = reason(err)
	}
	c.finish(o, time.Since(s.Started))
	return o
}

func (c *Core) finish(o Outcome, d time.Duration) {
	c.log.Logf("session %d ended: %s %s, %d frames", o.Session, o.State, o.Reason, o.Frames)
	c.metrics.SessionEnded(o.Mode, o.label())
	c.events.Publish(events.SessionEnded{
		ID:       o.Session,
		Mode:     o.Mode,
		Peer:     o.Peer,
		Frames:   o.Frames,
		Outcome:  o.label(),
		Reason:   o.Reason,
		Duration: d,
		Time:     time.Now(),
	})
	if c.OnOutcome != nil {
		c.OnOutcome(o)
	}
}
