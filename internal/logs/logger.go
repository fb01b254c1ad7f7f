package logs

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
)

const modulePath = "github.com/Gonanf/gabinator-desktop-remaster/"

// Logger prefixes every line with the file, line and function
// of the caller, so the detailed log can be read without a debugger.
type Logger struct {
	Writer io.Writer
	mutex  sync.Mutex
}

func findInternalPrefix() string {
	pc := make([]uintptr, 15)
	n := runtime.Callers(1, pc)
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()
	return strings.TrimSuffix(frame.File, "internal/logs/logger.go")
}

var internalPrefix = findInternalPrefix()

// Discard returns a logger that drops everything; used by tests
// and by components created without a log.
func Discard() *Logger {
	return &Logger{Writer: io.Discard}
}

func (l *Logger) Write(p []byte) (int, error) {
	l.logIn(string(p), 3)
	return len(p), nil
}

// Log writes one line annotated with the calling function.
func (l *Logger) Log(s string) {
	l.logIn(s, 3)
}

// Logf is Log with fmt formatting.
func (l *Logger) Logf(format string, args ...interface{}) {
	l.logIn(fmt.Sprintf(format, args...), 3)
}

func (l *Logger) logIn(s string, callers int) {
	if l == nil || l.Writer == nil {
		return
	}
	s = strings.TrimSuffix(s, "\n")
	pc := make([]uintptr, 15)
	// callers is the number of frames between runtime.Callers and
	// the function that asked for the log line
	n := runtime.Callers(callers, pc)
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()
	file := strings.TrimPrefix(frame.File, internalPrefix)
	function := strings.TrimPrefix(frame.Function, modulePath)
	r := fmt.Sprintf("[%s %d %s]", file, frame.Line, function)
	l.println(r + " " + s)
}

func (l *Logger) println(s string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	_, err := l.Writer.Write([]byte(s + "\n"))
	if err != nil {
		// give up, just print on stdout
		fmt.Println(err)
	}
}
