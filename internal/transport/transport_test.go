package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa"
	"github.com/Gonanf/gabinator-desktop-remaster/internal/aoa/aoatest"
)

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("libusb error %d", e.code) }
func (e codedError) USBCode() int  { return e.code }

func TestUSBSend(t *testing.T) {
	dev := aoatest.Accessory(1, 2, aoa.AccessoryProduct)
	ep := aoa.AccessoryEndpoint{Config: 1, Address: 0x01}
	tr := NewUSB(dev, ep, time.Second)

	if err := tr.Send([]byte("frame")); err != nil {
		t.Fatal(err)
	}
	w := dev.Writes()
	if len(w) != 1 || string(w[0]) != "frame" {
		t.Errorf("writes = %q", w)
	}
}

func TestUSBSendError(t *testing.T) {
	dev := aoatest.Accessory(1, 2, aoa.AccessoryProduct)
	dev.WriteErr = func(int) error { return fmt.Errorf("bulk: %w", codedError{-7}) }
	tr := NewUSB(dev, aoa.AccessoryEndpoint{Address: 0x01}, time.Second)

	err := tr.Send([]byte("frame"))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v", err)
	}
	if terr.Kind != KindUSB || terr.Code != -7 {
		t.Errorf("err = %+v", terr)
	}
}

func TestUSBClosed(t *testing.T) {
	dev := aoatest.Accessory(1, 2, aoa.AccessoryProduct)
	tr := NewUSB(dev, aoa.AccessoryEndpoint{Address: 0x01}, time.Second)
	tr.Close()
	if err := tr.Send([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v", err)
	}
	if len(dev.Writes()) != 0 {
		t.Errorf("wrote after close")
	}
}

func TestTCPSend(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	tr := NewTCP(server, 0)

	done := make(chan []byte)
	go func() {
		buf := make([]byte, 5)
		io.ReadFull(client, buf)
		done <- buf
	}()
	if err := tr.Send([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if got := <-done; string(got) != "hello" {
		t.Errorf("read %q", got)
	}
}

func TestTCPSendAfterPeerClosed(t *testing.T) {
	server, client := net.Pipe()
	client.Close()
	tr := NewTCP(server, 0)

	err := tr.Send([]byte("hello"))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v", err)
	}
	if terr.Kind != KindTCP || terr.IOKind != IOClosed {
		t.Errorf("err = %+v", terr)
	}
}

func TestTCPWriteTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	// nobody reads from client
	tr := NewTCP(server, 10*time.Millisecond)

	err := tr.Send([]byte("hello"))
	var terr *TransportError
	if !errors.As(err, &terr) || terr.IOKind != IOTimeout {
		t.Errorf("err = %v", err)
	}
}

func TestTCPCloseIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	tr := NewTCP(server, 0)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := tr.Send([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("send after close: %v", err)
	}
}

func TestClassifyIO(t *testing.T) {
	testcases := []struct {
		err  error
		kind IOKind
	}{
		{os.ErrDeadlineExceeded, IOTimeout},
		{&net.OpError{Op: "write", Err: os.ErrDeadlineExceeded}, IOTimeout},
		{&net.OpError{Op: "write", Err: &os.SyscallError{Syscall: "write", Err: syscall.ECONNRESET}}, IOReset},
		{&net.OpError{Op: "write", Err: &os.SyscallError{Syscall: "write", Err: syscall.EPIPE}}, IOBrokenPipe},
		{net.ErrClosed, IOClosed},
		{io.ErrClosedPipe, IOClosed},
		{errors.New("something"), IOOther},
	}
	for _, tc := range testcases {
		if k := ClassifyIO(tc.err); k != tc.kind {
			t.Errorf("ClassifyIO(%v) = %s, want %s", tc.err, k, tc.kind)
		}
	}
}

type recorder struct {
	frames [][]byte
}

func (r *recorder) Send(frame []byte) error {
	r.frames = append(r.frames, append([]byte(nil), frame...))
	return nil
}

func (r *recorder) Close() error { return nil }

func TestFramedRaw(t *testing.T) {
	rec := &recorder{}
	tr, err := Framed(rec, FramingRaw)
	if err != nil {
		t.Fatal(err)
	}
	tr.Send([]byte{10, 8, 8})
	if !bytes.Equal(rec.frames[0], []byte{10, 8, 8}) {
		t.Errorf("raw frame altered: %v", rec.frames[0])
	}
}

func TestFramedLengthPrefixed(t *testing.T) {
	rec := &recorder{}
	tr, err := Framed(rec, FramingLengthPrefixed)
	if err != nil {
		t.Fatal(err)
	}
	tr.Send([]byte("abc"))
	tr.Send([]byte{})
	tr.Send(bytes.Repeat([]byte{1}, 300))

	if !bytes.Equal(rec.frames[0], []byte{0, 0, 0, 3, 'a', 'b', 'c'}) {
		t.Errorf("frame 0 = %v", rec.frames[0])
	}
	if !bytes.Equal(rec.frames[1], []byte{0, 0, 0, 0}) {
		t.Errorf("frame 1 = %v", rec.frames[1])
	}
	if !bytes.Equal(rec.frames[2][:4], []byte{0, 0, 1, 44}) || len(rec.frames[2]) != 304 {
		t.Errorf("frame 2 header = %v", rec.frames[2][:4])
	}

	var stream bytes.Buffer
	for _, f := range rec.frames {
		stream.Write(f)
	}
	for i, want := range []int{3, 0, 300} {
		f, err := ReadFrame(&stream)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if len(f) != want {
			t.Errorf("frame %d is %d bytes, want %d", i, len(f), want)
		}
	}
	if _, err := ReadFrame(&stream); err != io.EOF {
		t.Errorf("end of stream: %v", err)
	}
}

func TestFramedTooLarge(t *testing.T) {
	dev := aoatest.Accessory(1, 2, aoa.AccessoryProduct)
	tr, err := Framed(NewUSB(dev, aoa.AccessoryEndpoint{Address: 0x01}, time.Second), FramingLengthPrefixed)
	if err != nil {
		t.Fatal(err)
	}
	tr.(*lengthPrefixed).max = 3

	err = tr.Send([]byte("abcd"))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v", err)
	}
	if terr.Kind != KindUSB || !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %+v", terr)
	}
	if len(dev.Writes()) != 0 {
		t.Errorf("oversized frame was written")
	}
	if err := tr.Send([]byte("abc")); err != nil {
		t.Errorf("frame at the limit: %v", err)
	}

	rec, err := Framed(&recorder{}, FramingLengthPrefixed)
	if err != nil {
		t.Fatal(err)
	}
	rec.(*lengthPrefixed).max = 0
	if err := rec.Send([]byte("x")); !errors.As(err, &terr) || terr.Kind != KindOther {
		t.Errorf("unknown transport: %v", err)
	}
}

func TestFramedUnknown(t *testing.T) {
	if _, err := Framed(&recorder{}, "json"); !errors.Is(err, ErrFraming) {
		t.Errorf("err = %v", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	r := bytes.NewReader([]byte{0, 0, 0, 5, 'a', 'b'})
	if _, err := ReadFrame(r); err != io.ErrUnexpectedEOF {
		t.Errorf("err = %v", err)
	}
	r = bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := ReadFrame(r); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v", err)
	}
}
