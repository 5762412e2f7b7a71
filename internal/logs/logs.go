// Package logs configures the application logger: logrus writing to a rotated file with a
// cap on the number of lines per run.
package logs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultFile     = "toolcore.log"
	DefaultKeep     = 5
	DefaultMaxLines = 500
)

type Config struct {
	Dir  string
	File string
	// Keep is the number of previous runs' files kept next to the current one.
	Keep      int
	MaxSizeMB int
	// MaxLines stops logging after this many lines. 0 disables the cap.
	MaxLines int
	Level    string
	// Stderr mirrors log lines to stderr.
	Stderr bool
}

func (c *Config) applyDefaults() {
	if c.File == "" {
		c.File = DefaultFile
	}
	if c.Keep <= 0 {
		c.Keep = DefaultKeep
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.Level == "" {
		c.Level = "info"
	}
}

// Logger is a configured logger together with the file it writes to.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
	cap  *capWriter
}

// New opens the log file, rotating the previous run's file out of the way.
func New(cfg Config) (*Logger, error) {
	cfg.applyDefaults()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, cfg.File),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.Keep - 1,
	}
	if _, err := os.Stat(file.Filename); err == nil {
		if err := file.Rotate(); err != nil {
			return nil, fmt.Errorf("rotate log: %w", err)
		}
	}

	var out io.Writer = file
	if cfg.Stderr {
		out = io.MultiWriter(file, os.Stderr)
	}
	cw := newCapWriter(out, cfg.MaxLines)

	l := logrus.New()
	l.SetOutput(cw)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true, TimestampFormat: "02-01-06 15-04-05"})
	l.Info("logging started")
	return &Logger{Logger: l, file: file, cap: cw}, nil
}

// Stopped reports whether the line cap has been reached.
func (l *Logger) Stopped() bool { return l.cap.Stopped() }

func (l *Logger) Close() error {
	if !l.cap.Stopped() {
		l.Info("logging stopped")
	}
	return l.file.Close()
}

// capWriter passes through whole log lines until max have been written, then writes one
// notice and swallows the rest.
type capWriter struct {
	mu      sync.Mutex
	w       io.Writer
	max     int
	n       int
	stopped bool
}

func newCapWriter(w io.Writer, max int) *capWriter {
	return &capWriter{w: w, max: max}
}

func (c *capWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return len(p), nil
	}
	if c.max > 0 && c.n >= c.max {
		c.stopped = true
		msg := fmt.Sprintf("logging stopped at %d lines for overflow protection\n", c.max)
		if _, err := io.WriteString(c.w, msg); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	c.n++
	return c.w.Write(p)
}

func (c *capWriter) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Recovered logs a panic recovered at a phase boundary, with the stack.
func Recovered(log logrus.FieldLogger, phase string, r any) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"phase": phase,
		"panic": fmt.Sprint(r),
		"stack": string(debug.Stack()),
	}).Error("recovered from panic")
}
