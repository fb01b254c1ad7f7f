package capture

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/config"
)

func TestPatternDecodes(t *testing.T) {
	p, err := NewPattern(64, 48)
	if err != nil {
		t.Fatal(err)
	}
	p.now = func() time.Time { return time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC) }

	first, err := p.Capture(80)
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(first))
	if err != nil {
		t.Fatalf("not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("size = %v", img.Bounds())
	}

	second, err := p.Capture(80)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first, second) {
		t.Errorf("consecutive frames are identical")
	}
}

func TestPatternQuality(t *testing.T) {
	lo, _ := NewPattern(320, 240)
	hi, _ := NewPattern(320, 240)
	a, err := lo.Capture(5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := hi.Capture(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) >= len(b) {
		t.Errorf("quality 5 frame (%d bytes) not smaller than quality 100 (%d bytes)", len(a), len(b))
	}
}

func TestPatternBadSize(t *testing.T) {
	if _, err := NewPattern(0, 10); !errors.Is(err, config.ErrSize) {
		t.Errorf("err = %v", err)
	}
}

func TestTestData(t *testing.T) {
	f, _ := TestData{}.Capture(80)
	if !bytes.Equal(f, []byte{10, 8, 8, 8, 8, 8, 8, '\n'}) {
		t.Errorf("payload = %v", f)
	}
	// callers may modify the frame
	f[0] = 0
	g, _ := TestData{}.Capture(80)
	if g[0] != 10 {
		t.Errorf("payload shared between frames")
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default().Capture
	for _, src := range []string{config.SourcePattern, config.SourceTestData} {
		cfg.Source = src
		if _, err := New(cfg); err != nil {
			t.Errorf("%s: %v", src, err)
		}
	}
	cfg.Source = "webcam"
	if _, err := New(cfg); !errors.Is(err, config.ErrSource) {
		t.Errorf("err = %v", err)
	}
}
