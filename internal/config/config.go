// Package config holds the tunables of gabinator. Every protocol
// constant that used to be a literal (re-enumeration polls, failure
// threshold, transfer timeouts) lives here with its historical default.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration read from TOML as a string ("1s", "500ms").
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) D() time.Duration {
	return time.Duration(d)
}

type Identity struct {
	Manufacturer string `toml:"manufacturer"`
	Model        string `toml:"model"`
	Description  string `toml:"description"`
	Version      string `toml:"version"`
	URI          string `toml:"uri"`
	Serial       string `toml:"serial"`
}

type USB struct {
	ReenumerationAttempts int      `toml:"reenumeration_attempts"`
	ReenumerationInterval Duration `toml:"reenumeration_interval"`
	BulkTimeout           Duration `toml:"bulk_timeout"`
	ControlTimeout        Duration `toml:"control_timeout"`
	DetachKernelDriver    bool     `toml:"detach_kernel_driver"`
	SendIdentity          bool     `toml:"send_identity"`
	Identity              Identity `toml:"identity"`
}

type Stream struct {
	FailureThreshold   int      `toml:"failure_threshold"`
	Quality            int      `toml:"quality"`
	Framing            string   `toml:"framing"`
	CaptureRetryDelay  Duration `toml:"capture_retry_delay"`
	MaxCaptureFailures int      `toml:"max_capture_failures"`
}

type TCP struct {
	Address      string   `toml:"address"`
	WriteTimeout Duration `toml:"write_timeout"`
}

type Capture struct {
	Source string `toml:"source"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type Status struct {
	Address string `toml:"address"`
	Enabled bool   `toml:"enabled"`
}

type Config struct {
	USB     USB     `toml:"usb"`
	Stream  Stream  `toml:"stream"`
	TCP     TCP     `toml:"tcp"`
	Capture Capture `toml:"capture"`
	Status  Status  `toml:"status"`
}

const (
	FramingRaw            = "raw"
	FramingLengthPrefixed = "length-prefixed"

	SourcePattern  = "pattern"
	SourceTestData = "testdata"
)

// Default returns the configuration the reference device behaviour
// was built with.
func Default() Config {
	return Config{
		USB: USB{
			ReenumerationAttempts: 10,
			ReenumerationInterval: Duration(time.Second),
			BulkTimeout:           Duration(5000 * time.Millisecond),
			ControlTimeout:        Duration(time.Second),
			DetachKernelDriver:    true,
			SendIdentity:          false,
			Identity: Identity{
				Manufacturer: "Chaos",
				Model:        "EEST",
				Description:  "Gabinator",
				Version:      "1.0",
				URI:          "https://github.com/Gonanf/Gabinator_Android/tree/master",
				Serial:       "1990",
			},
		},
		Stream: Stream{
			FailureThreshold: 5,
			Quality:          80,
			Framing:          FramingRaw,
		},
		TCP: TCP{
			Address: "0.0.0.0:3000",
		},
		Capture: Capture{
			Source: SourcePattern,
			Width:  1280,
			Height: 720,
		},
		Status: Status{
			Address: "127.0.0.1:21330",
			Enabled: true,
		},
	}
}

var (
	ErrThreshold = errors.New("failure threshold must be at least 1")
	ErrAttempts  = errors.New("re-enumeration attempts must be at least 1")
	ErrQuality   = errors.New("quality must be between 1 and 100")
	ErrFraming   = errors.New("unknown framing")
	ErrSource    = errors.New("unknown capture source")
	ErrSize      = errors.New("capture size must be positive")
)

// Load reads a TOML file over the defaults. A missing file is not an
// error: the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode applies TOML data on top of whatever cfg already holds.
func Decode(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML, used by "gabinator config".
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}

func (c Config) Validate() error {
	if c.Stream.FailureThreshold < 1 {
		return ErrThreshold
	}
	if c.USB.ReenumerationAttempts < 1 {
		return ErrAttempts
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		return ErrQuality
	}
	switch c.Stream.Framing {
	case FramingRaw, FramingLengthPrefixed:
	default:
		return fmt.Errorf("%w: %q", ErrFraming, c.Stream.Framing)
	}
	switch c.Capture.Source {
	case SourcePattern, SourceTestData:
	default:
		return fmt.Errorf("%w: %q", ErrSource, c.Capture.Source)
	}
	if c.Capture.Width < 1 || c.Capture.Height < 1 {
		return ErrSize
	}
	return nil
}
