// Package receiver is a minimal TCP client for the mirroring server,
// used to check a server without a phone. It stores every received
// frame as a file.
package receiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/logs"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/transport"
)

// raw streams have no frame boundaries; a read shorter than this
// buffer is taken as the end of a frame
const readSize = 1024

var errEnough = errors.New("enough frames")

type Options struct {
	Framing string
	Dir     string
	// stop after this many frames, 0 means until the server hangs up
	MaxFrames int
}

// Run connects to addr and stores frames until the server closes the
// connection, ctx is cancelled or MaxFrames were received. It returns
// the number of frames stored.
func Run(ctx context.Context, addr string, opts Options, log *logs.Logger) (int, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	log.Log("connected to " + conn.RemoteAddr().String())
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer func() {
		stop()
		conn.Close()
	}()

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return 0, err
	}

	count := 0
	err = Split(conn, opts.Framing, func(frame []byte) error {
		name := filepath.Join(opts.Dir, fmt.Sprintf("frame-%05d.jpg", count))
		if err := os.WriteFile(name, frame, 0o644); err != nil {
			return err
		}
		count++
		log.Logf("%s (%d bytes)", name, len(frame))
		if opts.MaxFrames > 0 && count >= opts.MaxFrames {
			return errEnough
		}
		return nil
	})
	switch {
	case errors.Is(err, errEnough):
		return count, nil
	case ctx.Err() != nil:
		return count, ctx.Err()
	}
	return count, err
}

// Split cuts the stream r into frames and calls fn for each. It
// returns nil when the stream ends cleanly.
func Split(r io.Reader, framing string, fn func(frame []byte) error) error {
	switch framing {
	case "", transport.FramingRaw:
		return splitRaw(r, fn)
	case transport.FramingLengthPrefixed:
		return splitPrefixed(bufio.NewReader(r), fn)
	}
	return fmt.Errorf("%w: %q", transport.ErrFraming, framing)
}

func splitRaw(r io.Reader, fn func([]byte) error) error {
	buf := make([]byte, readSize)
	var frame []byte
	for {
		n, err := r.Read(buf)
		frame = append(frame, buf[:n]...)
		if n > 0 && n < readSize {
			if ferr := fn(frame); ferr != nil {
				return ferr
			}
			frame = nil
		}
		if err != nil {
			if len(frame) > 0 {
				if ferr := fn(frame); ferr != nil {
					return ferr
				}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func splitPrefixed(r io.Reader, fn func([]byte) error) error {
	for {
		frame, err := transport.ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}
