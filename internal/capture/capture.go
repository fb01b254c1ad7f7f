// Package capture produces the JPEG frames that get mirrored.
//
// Grabbing the real screen is platform specific and lives outside this
// module; the sources here are a synthetic test card and the fixed
// payload receivers use for wire checks.
package capture

import (
	"errors"
	"fmt"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/config"
)

// Source returns one encoded frame per call. Implementations need not
// be safe for concurrent use.
type Source interface {
	Capture(quality int) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(quality int) ([]byte, error)

func (f SourceFunc) Capture(quality int) ([]byte, error) {
	return f(quality)
}

var ErrEmptyFrame = errors.New("empty frame")

// CaptureError is a failed capture. The streaming loop logs it and
// asks again.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return "capture failed: " + e.Err.Error()
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// New builds the source named in cfg.
func New(cfg config.Capture) (Source, error) {
	switch cfg.Source {
	case config.SourcePattern:
		return NewPattern(cfg.Width, cfg.Height)
	case config.SourceTestData:
		return TestData{}, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrSource, cfg.Source)
}
