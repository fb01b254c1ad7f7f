package status

import (
	"sync"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/events"
)

const recentSessions = 10

type SessionInfo struct {
	ID       uint64
	Mode     string
	Peer     string
	Started  time.Time
	Frames   uint64
	Failures int // consecutive send failures right now
	Outcome  string
	Reason   string
	Duration time.Duration
}

type HandshakeInfo struct {
	Device  string
	State   string
	Version int
	Error   string
	Time    time.Time
}

// Snapshot is a copy of the tracker state, safe to render.
type Snapshot struct {
	Mode      string
	Active    *SessionInfo
	Recent    []SessionInfo
	Handshake *HandshakeInfo
}

// Tracker follows session events and keeps what the status page shows.
type Tracker struct {
	mode string

	mutex     sync.Mutex
	active    *SessionInfo
	recent    []SessionInfo
	handshake *HandshakeInfo
}

func NewTracker(mode string) *Tracker {
	return &Tracker{mode: mode}
}

// Attach subscribes the tracker to bus and returns the unsubscribe
// function.
func (t *Tracker) Attach(bus *events.Bus) func() {
	return bus.SubscribeAll(t.Apply)
}

func (t *Tracker) Apply(ev events.Event) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	switch e := ev.(type) {
	case events.SessionStarted:
		t.active = &SessionInfo{
			ID:      e.ID,
			Mode:    e.Mode,
			Peer:    e.Peer,
			Started: e.Time,
		}
	case events.FrameSendFailed:
		if t.active != nil && t.active.ID == e.ID {
			t.active.Failures = e.Consecutive
		}
	case events.SessionEnded:
		info := SessionInfo{
			ID:       e.ID,
			Mode:     e.Mode,
			Peer:     e.Peer,
			Started:  e.Time.Add(-e.Duration),
			Frames:   e.Frames,
			Outcome:  e.Outcome,
			Reason:   e.Reason,
			Duration: e.Duration,
		}
		if t.active != nil && t.active.ID == e.ID {
			t.active = nil
		}
		t.recent = append([]SessionInfo{info}, t.recent...)
		if len(t.recent) > recentSessions {
			t.recent = t.recent[:recentSessions]
		}
	case events.HandshakeProgress:
		t.handshake = &HandshakeInfo{
			Device:  e.Device,
			State:   e.State,
			Version: e.Version,
			Error:   e.Error,
			Time:    e.Time,
		}
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	s := Snapshot{
		Mode:   t.mode,
		Recent: append([]SessionInfo(nil), t.recent...),
	}
	if t.active != nil {
		a := *t.active
		s.Active = &a
	}
	if t.handshake != nil {
		h := *t.handshake
		s.Handshake = &h
	}
	return s
}
