package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionEnded
	TypeHandshakeProgress
	TypeFrameSendFailed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStarted is published once a transport is ready to stream.
type SessionStarted struct {
	ID   uint64
	Mode string // "usb" or "tcp"
	Peer string
	Time time.Time
}

func (e SessionStarted) Type() uint32 { return TypeSessionStarted }

// SessionEnded is published after teardown completed.
type SessionEnded struct {
	ID       uint64
	Mode     string
	Peer     string
	Frames   uint64
	Outcome  string // "connected", "failed" or "cancelled"
	Reason   string
	Duration time.Duration
	Time     time.Time
}

func (e SessionEnded) Type() uint32 { return TypeSessionEnded }

// HandshakeProgress mirrors every AOA handshake transition.
type HandshakeProgress struct {
	Device  string
	State   string
	Version int
	Error   string
	Time    time.Time
}

func (e HandshakeProgress) Type() uint32 { return TypeHandshakeProgress }

// FrameSendFailed is published for every failed send, with the count of
// consecutive failures so far.
type FrameSendFailed struct {
	ID          uint64
	Consecutive int
	Error       string
	Time        time.Time
}

func (e FrameSendFailed) Type() uint32 { return TypeFrameSendFailed }
