package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsMatchReferenceBehaviour(t *testing.T) {
	c := Default()
	if c.USB.ReenumerationAttempts != 10 {
		t.Errorf("attempts = %d", c.USB.ReenumerationAttempts)
	}
	if c.USB.ReenumerationInterval.D() != time.Second {
		t.Errorf("interval = %v", c.USB.ReenumerationInterval.D())
	}
	if c.USB.BulkTimeout.D() != 5*time.Second {
		t.Errorf("bulk timeout = %v", c.USB.BulkTimeout.D())
	}
	if c.Stream.FailureThreshold != 5 {
		t.Errorf("threshold = %d", c.Stream.FailureThreshold)
	}
	if c.TCP.Address != "0.0.0.0:3000" {
		t.Errorf("tcp address = %q", c.TCP.Address)
	}
	if c.Stream.Framing != FramingRaw {
		t.Errorf("framing = %q", c.Stream.Framing)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestDecodeOverridesOnlyGivenKeys(t *testing.T) {
	cfg := Default()
	data := []byte(`
[usb]
reenumeration_attempts = 3
reenumeration_interval = "250ms"

[stream]
framing = "length-prefixed"
`)
	if err := Decode(data, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.USB.ReenumerationAttempts != 3 {
		t.Errorf("attempts = %d", cfg.USB.ReenumerationAttempts)
	}
	if cfg.USB.ReenumerationInterval.D() != 250*time.Millisecond {
		t.Errorf("interval = %v", cfg.USB.ReenumerationInterval.D())
	}
	if cfg.Stream.Framing != FramingLengthPrefixed {
		t.Errorf("framing = %q", cfg.Stream.Framing)
	}
	// untouched keys keep their defaults
	if cfg.Stream.FailureThreshold != 5 {
		t.Errorf("threshold = %d", cfg.Stream.FailureThreshold)
	}
	if cfg.USB.BulkTimeout.D() != 5*time.Second {
		t.Errorf("bulk timeout = %v", cfg.USB.BulkTimeout.D())
	}
}

func TestDecodeRejectsBadDuration(t *testing.T) {
	cfg := Default()
	err := Decode([]byte("[usb]\nbulk_timeout = \"soon\"\n"), &cfg)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stream.FailureThreshold != 5 {
		t.Errorf("threshold = %d", cfg.Stream.FailureThreshold)
	}
}

func TestLoadRoundTripsEncode(t *testing.T) {
	want := Default()
	want.TCP.Address = "127.0.0.1:4000"
	want.Stream.CaptureRetryDelay = Duration(20 * time.Millisecond)

	data, err := Encode(want)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "gabinator.toml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.TCP.Address != want.TCP.Address {
		t.Errorf("address = %q", got.TCP.Address)
	}
	if got.Stream.CaptureRetryDelay != want.Stream.CaptureRetryDelay {
		t.Errorf("retry delay = %v", got.Stream.CaptureRetryDelay.D())
	}
}

func TestValidate(t *testing.T) {
	testcases := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"zero threshold", func(c *Config) { c.Stream.FailureThreshold = 0 }, ErrThreshold},
		{"zero attempts", func(c *Config) { c.USB.ReenumerationAttempts = 0 }, ErrAttempts},
		{"quality too high", func(c *Config) { c.Stream.Quality = 101 }, ErrQuality},
		{"unknown framing", func(c *Config) { c.Stream.Framing = "netstring" }, ErrFraming},
		{"unknown source", func(c *Config) { c.Capture.Source = "x11" }, ErrSource},
		{"zero width", func(c *Config) { c.Capture.Width = 0 }, ErrSize},
	}
	for _, tc := range testcases {
		c := Default()
		tc.modify(&c)
		if err := c.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: Validate() = %v, want %v", tc.name, err, tc.want)
		}
	}
}
