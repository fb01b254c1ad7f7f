package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
)

type OutcomeState int

const (
	Connected OutcomeState = iota
	Failed
)

func (s OutcomeState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(s))
}

// Outcome is how one session (or one failed attempt to get one) ended.
// A session that streamed until cancelled is Connected; handshake
// failures and exhausted retries are Failed.
type Outcome struct {
	Session  uint64
	Mode     string
	Peer     string
	State    OutcomeState
	Reason   string
	Err      error
	Frames   uint64
	Teardown TeardownResult
}

func (o Outcome) OK() bool {
	return o.State == Connected
}

// label is used for metrics and events.
func (o Outcome) label() string {
	if o.State == Connected && errors.Is(o.Err, context.Canceled) {
		return "cancelled"
	}
	return o.State.String()
}

func failed(mode string, err error) Outcome {
	return Outcome{
		Mode:   mode,
		State:  Failed,
		Reason: reason(err),
		Err:    err,
	}
}

// reason is a short user facing description of err.
func reason(err error) string {
	var herr *aoa.HandshakeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &herr):
		return herr.Step.Error()
	case errors.Is(err, ErrTooManyFailures):
		return ErrTooManyFailures.Error()
	case errors.Is(err, ErrTooManyCaptureFailures):
		return ErrTooManyCaptureFailures.Error()
	}
	return err.Error()
}
