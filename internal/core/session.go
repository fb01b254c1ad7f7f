package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/transport"
)

var ErrSessionClosed = errors.New("session closed")

const (
	ModeUSB = "usb"
	ModeTCP = "tcp"
)

// StepResult is one teardown step. Err is nil when the step succeeded.
type StepResult struct {
	Name string
	Err  error
}

// TeardownResult lists every teardown step in the order it was run.
// Every step is attempted, whatever happened to the ones before it.
type TeardownResult struct {
	Steps []StepResult
}

func (r TeardownResult) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return errors.Join(errs...)
}

func (r TeardownResult) String() string {
	parts := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if s.Err != nil {
			parts = append(parts, s.Name+" failed ("+s.Err.Error()+")")
		} else {
			parts = append(parts, s.Name+" ok")
		}
	}
	return strings.Join(parts, ", ")
}

type teardownStep struct {
	name string
	run  func() error
}

// Session owns one connected peer: an accessory device or a TCP
// client. Device access is serialized by the session mutex, teardown
// may run from another goroutine while the stream loop is sending.
type Session struct {
	ID      uint64
	Mode    string
	Peer    string
	Started time.Time

	log *logs.Logger

	mutex  sync.Mutex // guards the device handle and closed
	closed bool

	running      int32 // atomic
	teardownDone int32 // atomic

	once   sync.Once
	done   chan struct{}
	steps  []teardownStep
	result TeardownResult
}

func newSession(id uint64, mode, peer string, log *logs.Logger) *Session {
	return &Session{
		ID:      id,
		Mode:    mode,
		Peer:    peer,
		Started: time.Now(),
		log:     log,
		done:    make(chan struct{}),
	}
}

// NewUSBSession takes ownership of a connected accessory. Teardown
// unconfigures the device, releases interface 0, resets the device and
// closes the handle.
func NewUSBSession(id uint64, res *aoa.Result, log *logs.Logger) *Session {
	s := newSession(id, ModeUSB, res.Device.Ref().String(), log)
	dev := res.Device
	s.steps = []teardownStep{
		{"unconfigure", dev.Unconfigure},
		{"release", func() error { return dev.ReleaseInterface(aoa.AccessoryInterface) }},
		{"reset", dev.Reset},
		{"close", dev.Close},
	}
	return s
}

// NewTCPSession takes ownership of a client stream, teardown closes it.
func NewTCPSession(id uint64, tr *transport.TCP, log *logs.Logger) *Session {
	s := newSession(id, ModeTCP, tr.RemoteAddr().String(), log)
	s.steps = []teardownStep{
		{"close", tr.Close},
	}
	return s
}

// Guard returns a BulkWriter that writes to dev under the session
// mutex and fails once teardown started.
func (s *Session) Guard(dev transport.BulkWriter) transport.BulkWriter {
	return &guardedDevice{s: s, dev: dev}
}

type guardedDevice struct {
	s   *Session
	dev transport.BulkWriter
}

func (g *guardedDevice) WriteBulk(ep aoa.AccessoryEndpoint, data []byte, timeout time.Duration) (int, error) {
	g.s.mutex.Lock()
	defer g.s.mutex.Unlock()
	if g.s.closed {
		return 0, ErrSessionClosed
	}
	return g.dev.WriteBulk(ep, data, timeout)
}

func (s *Session) setRunning(r bool) {
	var v int32
	if r {
		v = 1
	}
	atomic.StoreInt32(&s.running, v)
}

// Running reports whether the stream loop is still going.
func (s *Session) Running() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// TornDown reports whether every teardown step has been attempted.
func (s *Session) TornDown() bool {
	return atomic.LoadInt32(&s.teardownDone) == 1
}

// Done is closed once teardown completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Watch tears the session down as soon as ctx is cancelled, without
// waiting for the stream loop to notice.
func (s *Session) Watch(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.log.Log("cancelled, tearing down")
			s.Teardown()
		case <-s.done:
		}
	}()
}

// Teardown runs every step once; later calls wait for the first one
// and return its result.
func (s *Session) Teardown() TeardownResult {
	s.once.Do(func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		s.closed = true
		for _, step := range s.steps {
			s.log.Log(step.name)
			err := step.run()
			if err != nil {
				// do not abort, the remaining steps still have to run
				s.log.Logf("Warning: error at %s: %s", step.name, err)
			}
			s.result.Steps = append(s.result.Steps, StepResult{Name: step.name, Err: err})
		}

		atomic.StoreInt32(&s.teardownDone, 1)
		close(s.done)
		s.log.Log("done")
	})
	<-s.done
	return s.result
}
