// Package sink writes flushed capture logs. The lifecycle treats the sink
// as pluggable: one file per test execution, plain console output, or
// structured log entries.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sink receives the flushed lines of one test execution.
type Sink interface {
	Write(testName string, lines []string) error
}

// timestampLayout yields sortable date + time file names.
const timestampLayout = "2006-01-02_15-04-05"

// FileSink writes one log file per test execution into Dir, creating the
// directory on demand. File names combine the test name with a timestamp.
type FileSink struct {
	Dir string

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// NewFileSink returns a sink writing into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir, now: time.Now}
}

func (s *FileSink) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Write appends the lines to a fresh log file named
// <testName>_<timestamp>.log.
func (s *FileSink) Write(testName string, lines []string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create log directory %s: %w", s.Dir, err)
	}

	name := fmt.Sprintf("%s_%s.log", sanitizeName(testName), s.clock().Format(timestampLayout))
	path := filepath.Join(s.Dir, name)

	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write network log %s: %w", path, err)
	}
	return nil
}

// sanitizeName makes a test name usable as a file name component. Go test
// names contain slashes for subtests.
func sanitizeName(name string) string {
	if name == "" {
		return "unknown-test"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, name)
}

// ConsoleSink writes lines to a writer, one per line, prefixed with the
// test name.
type ConsoleSink struct {
	Out io.Writer
}

// NewConsoleSink returns a sink writing to out, or stdout when out is nil.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{Out: out}
}

func (s *ConsoleSink) Write(testName string, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintf(s.Out, "[%s] %s\n", testName, line); err != nil {
			return fmt.Errorf("write console log: %w", err)
		}
	}
	return nil
}

// LogSink emits each line as a structured log entry.
type LogSink struct {
	Logger *zap.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) Write(testName string, lines []string) error {
	for _, line := range lines {
		s.Logger.Info(line, zap.String("test", testName))
	}
	return nil
}
