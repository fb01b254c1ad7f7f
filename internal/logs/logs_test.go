package logs

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"
)

func TestLoggerAnnotatesCaller(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Writer: &buf}
	l.Log("hello")

	out := buf.String()
	if !strings.Contains(out, "logs_test.go") {
		t.Errorf("expected caller file in %q", out)
	}
	if !strings.Contains(out, "TestLoggerAnnotatesCaller") {
		t.Errorf("expected caller function in %q", out)
	}
	if !strings.HasSuffix(out, "hello\n") {
		t.Errorf("expected message at the end of %q", out)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger
	l.Log("nothing happens")
	l.Logf("nor %s", "here")
}

func TestMemoryWriterRotation(t *testing.T) {
	m, err := NewMemoryWriter(2, 1, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"a\n", "b\n", "c\n", "d\n"} {
		if _, err := m.Write([]byte(s)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.String("head\n")
	if err != nil {
		t.Fatal(err)
	}
	// newest first, then the kept start line
	want := "head\nd\nc\n...\na\n"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
}

func TestMemoryWriterTruncatesAndTees(t *testing.T) {
	var out bytes.Buffer
	m, err := NewMemoryWriter(10, 10, false, &out)
	if err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("x", maxLineLength+20)
	n, err := m.Write([]byte(long))
	if err != nil {
		t.Fatal(err)
	}
	if n != len(long) {
		t.Errorf("Write returned %d, want %d", n, len(long))
	}
	if out.Len() != maxLineLength {
		t.Errorf("tee got %d bytes, want %d", out.Len(), maxLineLength)
	}
}

func TestMemoryWriterGzip(t *testing.T) {
	m, err := NewMemoryWriter(10, 10, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = m.Write([]byte("line\n"))

	gz, err := m.Gzip("v1\n")
	if err != nil {
		t.Fatal(err)
	}
	r, err := gzip.NewReader(bytes.NewReader(gz))
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "v1\n...\nline\n" {
		t.Errorf("unexpected gzip body %q", body)
	}
	if r.Name != "log.txt" {
		t.Errorf("gzip name = %q", r.Name)
	}
}

func TestNewMemoryWriterRejectsZeroSize(t *testing.T) {
	if _, err := NewMemoryWriter(0, 1, false, nil); err == nil {
		t.Error("expected error for size 0")
	}
	if _, err := NewMemoryWriter(1, 0, false, nil); err == nil {
		t.Error("expected error for start size 0")
	}
}
