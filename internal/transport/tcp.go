package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type TCP struct {
	conn    net.Conn
	w       *bufio.Writer
	timeout time.Duration

	mutex  sync.Mutex // guards w
	closed int32      // atomic
}

// NewTCP streams frames to conn. A zero timeout disables the write
// deadline.
func NewTCP(conn net.Conn, timeout time.Duration) *TCP {
	return &TCP{
		conn:    conn,
		w:       bufio.NewWriter(conn),
		timeout: timeout,
	}
}

func (t *TCP) Send(frame []byte) error {
	if atomic.LoadInt32(&t.closed) == 1 {
		return &TransportError{Kind: KindTCP, IOKind: IOClosed, Err: ErrClosed}
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.timeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
			return t.fail(err)
		}
	}
	if _, err := t.w.Write(frame); err != nil {
		return t.fail(err)
	}
	if err := t.w.Flush(); err != nil {
		return t.fail(err)
	}
	return nil
}

// fail drops whatever is still buffered; bufio.Writer errors are
// sticky and would fail every following send.
func (t *TCP) fail(err error) error {
	t.w.Reset(t.conn)
	return &TransportError{Kind: KindTCP, IOKind: ClassifyIO(err), Err: err}
}

// Close closes the connection, which also unblocks a Send stuck in a
// write. Only the first call closes.
func (t *TCP) Close() error {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return nil
	}
	return t.conn.Close()
}

func (t *TCP) Kind() Kind { return KindTCP }

func (t *TCP) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// ClassifyIO maps a socket write error to an IOKind.
func ClassifyIO(err error) IOKind {
	var nerr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return IOTimeout
	case errors.As(err, &nerr) && nerr.Timeout():
		return IOTimeout
	case errors.Is(err, syscall.ECONNRESET):
		return IOReset
	case errors.Is(err, syscall.EPIPE):
		return IOBrokenPipe
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe), errors.Is(err, io.EOF):
		return IOClosed
	}
	return IOOther
}
