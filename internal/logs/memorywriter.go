package logs

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryWriter keeps the log in memory. The first startCount lines are
// never dropped (they describe how the process and the first session
// came up); after that, only the latest maxLineCount lines are kept.

// hardcoded so one huge line cannot eat the buffer
const maxLineLength = 500

var errSize = errors.New("size cannot be <1")

type MemoryWriter struct {
	maxLineCount int
	lines        [][]byte // lines include newlines
	startLines   [][]byte
	startTime    time.Time
	outWriter    io.Writer
	startCount   int
	mutex        sync.Mutex
	printTime    bool
}

func (m *MemoryWriter) Write(p []byte) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	n := len(p)
	if len(p) > maxLineLength {
		p = p[0:maxLineLength]
	}

	var line []byte
	if !m.printTime {
		line = make([]byte, len(p))
		copy(line, p)
	} else {
		now := time.Now()
		elapsed := now.Sub(m.startTime)
		line = []byte(fmt.Sprintf("[%.6f : %s] %s", elapsed.Seconds(), now.Format("15:04:05"), string(p)))
	}

	if len(m.startLines) < m.startCount {
		m.startLines = append(m.startLines, line)
	} else {
		for len(m.lines) >= m.maxLineCount {
			m.lines = m.lines[1:]
		}
		m.lines = append(m.lines, line)
	}

	if m.outWriter != nil {
		if _, err := m.outWriter.Write(line); err != nil {
			// give up, just print on stdout
			fmt.Println(err)
		}
	}
	return n, nil
}

// writeTo exports the newest lines first, then a "..." separator,
// then the start lines. header goes on top.
func (m *MemoryWriter) writeTo(header string, w io.Writer) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	for i := len(m.lines) - 1; i >= 0; i-- {
		if _, err := w.Write(m.lines[i]); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "...\n"); err != nil {
		return err
	}
	for i := len(m.startLines) - 1; i >= 0; i-- {
		if _, err := w.Write(m.startLines[i]); err != nil {
			return err
		}
	}
	return nil
}

// String exports the log as text.
func (m *MemoryWriter) String(header string) (string, error) {
	var b bytes.Buffer
	if err := m.writeTo(header, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Gzip exports the log as a gzip file named log.txt.
func (m *MemoryWriter) Gzip(header string) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	gw.Name = "log.txt"
	if err = m.writeTo(header, gw); err != nil {
		return nil, err
	}
	if err = gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Len is the number of lines currently held.
func (m *MemoryWriter) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.startLines) + len(m.lines)
}

func NewMemoryWriter(size int, startSize int, printTime bool, out io.Writer) (*MemoryWriter, error) {
	if size < 1 || startSize < 1 {
		return nil, errSize
	}
	return &MemoryWriter{
		maxLineCount: size,
		lines:        make([][]byte, 0, size),
		startCount:   startSize,
		startLines:   make([][]byte, 0, startSize),
		startTime:    time.Now(),
		printTime:    printTime,
		outWriter:    out,
	}, nil
}
