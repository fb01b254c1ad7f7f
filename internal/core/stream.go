package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/capture"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/metrics"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/transport"
)

var (
	ErrTooManyFailures        = errors.New("too many consecutive send failures")
	ErrTooManyCaptureFailures = errors.New("too many consecutive capture failures")
)

type StreamOptions struct {
	Quality          int
	FailureThreshold int

	// zero means retry immediately / forever
	CaptureRetryDelay  time.Duration
	MaxCaptureFailures int
}

// Streamer pulls frames from a source and pushes them to a transport
// until cancelled or until FailureThreshold sends in a row have failed.
type Streamer struct {
	src     capture.Source
	tr      transport.Transport
	opts    StreamOptions
	log     *logs.Logger
	metrics *metrics.Metrics

	// called after every failed send with the consecutive count
	OnSendFailure func(consecutive int, err error)

	frames uint64 // atomic
}

func NewStreamer(
	src capture.Source,
	tr transport.Transport,
	opts StreamOptions,
	m *metrics.Metrics,
	log *logs.Logger,
) *Streamer {
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 1
	}
	return &Streamer{
		src:     src,
		tr:      tr,
		opts:    opts,
		log:     log,
		metrics: m,
	}
}

// Frames returns the number of frames sent so far.
func (s *Streamer) Frames() uint64 {
	return atomic.LoadUint64(&s.frames)
}

// Run streams until ctx is done (returns ctx.Err()) or the transport
// failed too often (returns ErrTooManyFailures wrapping the last
// transport error). Cancellation is checked between frames only.
func (s *Streamer) Run(ctx context.Context) error {
	failures := 0
	captureFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			s.log.Log("cancelled")
			return err
		}

		frame, err := s.src.Capture(s.opts.Quality)
		if err == nil && len(frame) == 0 {
			err = capture.ErrEmptyFrame
		}
		if err != nil {
			captureFailures++
			s.metrics.CaptureFailed()
			s.log.Log(captureError(err).Error())
			if s.opts.MaxCaptureFailures > 0 && captureFailures >= s.opts.MaxCaptureFailures {
				return fmt.Errorf("%w: %w", ErrTooManyCaptureFailures, err)
			}
			if s.opts.CaptureRetryDelay > 0 {
				if werr := sleep(ctx, s.opts.CaptureRetryDelay); werr != nil {
					return werr
				}
			}
			continue
		}
		captureFailures = 0

		if err := s.tr.Send(frame); err != nil {
			failures++
			s.metrics.SendFailed()
			s.log.Logf("send failed (%d/%d): %s", failures, s.opts.FailureThreshold, err)
			if s.OnSendFailure != nil {
				s.OnSendFailure(failures, err)
			}
			if failures >= s.opts.FailureThreshold {
				return fmt.Errorf("%w: %w", ErrTooManyFailures, err)
			}
			continue
		}
		failures = 0
		atomic.AddUint64(&s.frames, 1)
		s.metrics.FrameSent(len(frame))
	}
}

func captureError(err error) error {
	var cerr *capture.CaptureError
	if errors.As(err, &cerr) {
		return err
	}
	return &capture.CaptureError{Err: err}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
