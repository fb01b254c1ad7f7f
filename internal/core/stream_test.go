package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/capture"
)

var errSend = errors.New("send failed")

// scripted fails the i-th Send when fail(i) is true.
type scripted struct {
	mutex  sync.Mutex
	fail   func(i int) bool
	sends  int
	onSend func(i int)
}

func (s *scripted) Send(frame []byte) error {
	s.mutex.Lock()
	i := s.sends
	s.sends++
	s.mutex.Unlock()

	if s.onSend != nil {
		s.onSend(i)
	}
	if s.fail(i) {
		return errSend
	}
	return nil
}

func (s *scripted) Close() error { return nil }

func (s *scripted) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.sends
}

func opts() StreamOptions {
	return StreamOptions{Quality: 80, FailureThreshold: 5}
}

func TestStreamThreshold(t *testing.T) {
	tr := &scripted{fail: func(int) bool { return true }}
	st := NewStreamer(capture.TestData{}, tr, opts(), nil, nil)

	err := st.Run(context.Background())
	if !errors.Is(err, ErrTooManyFailures) || !errors.Is(err, errSend) {
		t.Fatalf("err = %v", err)
	}
	if tr.count() != 5 {
		t.Errorf("%d sends, want exactly 5", tr.count())
	}
	if st.Frames() != 0 {
		t.Errorf("frames = %d", st.Frames())
	}
}

func TestStreamSuccessResetsCounter(t *testing.T) {
	// four failures, one success, then failures only
	tr := &scripted{fail: func(i int) bool { return i != 4 }}
	st := NewStreamer(capture.TestData{}, tr, opts(), nil, nil)

	if err := st.Run(context.Background()); !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("err = %v", err)
	}
	if tr.count() != 10 {
		t.Errorf("%d sends, want 10", tr.count())
	}
	if st.Frames() != 1 {
		t.Errorf("frames = %d, want 1", st.Frames())
	}
}

func TestStreamThresholdConfigurable(t *testing.T) {
	tr := &scripted{fail: func(int) bool { return true }}
	o := opts()
	o.FailureThreshold = 2
	NewStreamer(capture.TestData{}, tr, o, nil, nil).Run(context.Background())
	if tr.count() != 2 {
		t.Errorf("%d sends, want 2", tr.count())
	}
}

func TestStreamCaptureFailuresDoNotCount(t *testing.T) {
	calls := 0
	src := capture.SourceFunc(func(int) ([]byte, error) {
		calls++
		if calls%2 == 1 {
			return nil, errors.New("no frame")
		}
		return []byte{1}, nil
	})
	tr := &scripted{fail: func(int) bool { return true }}
	err := NewStreamer(src, tr, opts(), nil, nil).Run(context.Background())
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("err = %v", err)
	}
	if tr.count() != 5 {
		t.Errorf("%d sends, want 5", tr.count())
	}
	if calls != 10 {
		t.Errorf("%d captures, want 10", calls)
	}
}

func TestStreamEmptyFrameIsCaptureFailure(t *testing.T) {
	src := capture.SourceFunc(func(int) ([]byte, error) { return nil, nil })
	tr := &scripted{fail: func(int) bool { return false }}
	o := opts()
	o.MaxCaptureFailures = 3
	err := NewStreamer(src, tr, o, nil, nil).Run(context.Background())
	if !errors.Is(err, ErrTooManyCaptureFailures) || !errors.Is(err, capture.ErrEmptyFrame) {
		t.Errorf("err = %v", err)
	}
	if tr.count() != 0 {
		t.Errorf("empty frame was sent")
	}
}

func TestStreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &scripted{
		fail: func(int) bool { return false },
		onSend: func(i int) {
			if i == 9 {
				cancel()
			}
		},
	}
	st := NewStreamer(capture.TestData{}, tr, opts(), nil, nil)
	if err := st.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	// the frame in flight when cancel happened still completes
	if tr.count() != 10 || st.Frames() != 10 {
		t.Errorf("sends = %d, frames = %d", tr.count(), st.Frames())
	}
}

func TestStreamCaptureRetryDelayCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	src := capture.SourceFunc(func(int) ([]byte, error) { return nil, errors.New("no frame") })
	o := opts()
	o.CaptureRetryDelay = time.Hour

	err := NewStreamer(src, &scripted{fail: func(int) bool { return false }}, o, nil, nil).Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestStreamOnSendFailure(t *testing.T) {
	tr := &scripted{fail: func(int) bool { return true }}
	st := NewStreamer(capture.TestData{}, tr, opts(), nil, nil)
	var seen []int
	st.OnSendFailure = func(n int, err error) { seen = append(seen, n) }
	st.Run(context.Background())

	want := []int{1, 2, 3, 4, 5}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen = %v, want %v", seen, want)
			break
		}
	}
}
