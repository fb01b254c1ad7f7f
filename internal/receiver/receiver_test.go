package receiver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/transport"
)

func collect(t *testing.T, r io.Reader, framing string) [][]byte {
	t.Helper()
	var frames [][]byte
	err := Split(r, framing, func(f []byte) error {
		frames = append(frames, append([]byte(nil), f...))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return frames
}

// chunks returns one chunk per Read call.
type chunks struct {
	parts [][]byte
}

func (c *chunks) Read(p []byte) (int, error) {
	if len(c.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.parts[0])
	c.parts[0] = c.parts[0][n:]
	if len(c.parts[0]) == 0 {
		c.parts = c.parts[1:]
	}
	return n, nil
}

func TestSplitRawShortRead(t *testing.T) {
	big := bytes.Repeat([]byte{1}, 1500)

	// a 1500 byte frame arrives as 1024 + 476, then an 8 byte frame
	src := &chunks{parts: [][]byte{big, {10, 8, 8, 8, 8, 8, 8, '\n'}}}
	frames := collect(t, src, transport.FramingRaw)
	if len(frames) != 2 || len(frames[0]) != 1500 || len(frames[1]) != 8 {
		t.Errorf("got %d frames", len(frames))
	}
}

func TestSplitRawTrailingFrame(t *testing.T) {
	// exactly one full buffer, then the server hangs up
	data := bytes.Repeat([]byte{2}, readSize)
	frames := collect(t, bytes.NewReader(data), transport.FramingRaw)
	if len(frames) != 1 || len(frames[0]) != readSize {
		t.Errorf("frames = %d", len(frames))
	}
}

func TestSplitLengthPrefixed(t *testing.T) {
	var stream []byte
	stream = transport.AppendFrame(stream, bytes.Repeat([]byte{3}, 5000))
	stream = transport.AppendFrame(stream, []byte("ab"))

	frames := collect(t, iotest.OneByteReader(bytes.NewReader(stream)), transport.FramingLengthPrefixed)
	if len(frames) != 2 || len(frames[0]) != 5000 || string(frames[1]) != "ab" {
		t.Errorf("frames = %d", len(frames))
	}
}

func TestSplitUnknownFraming(t *testing.T) {
	err := Split(bytes.NewReader(nil), "mjpeg", func([]byte) error { return nil })
	if !errors.Is(err, transport.ErrFraming) {
		t.Errorf("err = %v", err)
	}
}

func TestRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var out []byte
		for i := 0; i < 5; i++ {
			out = transport.AppendFrame(out, []byte{byte(i), 1, 2})
		}
		conn.Write(out)
	}()

	dir := t.TempDir()
	n, err := Run(context.Background(), ln.Addr().String(), Options{
		Framing:   transport.FramingLengthPrefixed,
		Dir:       dir,
		MaxFrames: 3,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("stored %d frames, want 3", n)
	}
	data, err := os.ReadFile(filepath.Join(dir, "frame-00002.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{2, 1, 2}) {
		t.Errorf("frame 2 = %v", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "frame-00003.jpg")); !os.IsNotExist(err) {
		t.Errorf("stored more than MaxFrames")
	}
}
