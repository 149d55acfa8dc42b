package logging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gluk-w/sshagent/internal/config"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	LevelTrace = "trace"
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

var (
	Formats = []string{FormatText, FormatJSON}
	Levels  = []string{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError}
)

var (
	logFile *os.File
	mu      sync.Mutex
)

// Init configures the standard logrus logger from config.Cfg. Output goes to
// stderr and, when LogPath is set, is appended to that file as well.
// Must be called after config.Load().
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stderr
	if path := config.Cfg.LogPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", path, err)
		}
		closeFile()
		logFile = f
		out = io.MultiWriter(os.Stderr, f)
	} else {
		closeFile()
	}

	if err := Configure(log.StandardLogger(), config.Cfg.LogLevel, config.Cfg.LogFormat); err != nil {
		return err
	}
	log.SetOutput(out)
	return nil
}

// Configure sets the level and formatter of l.
func Configure(l *log.Logger, level, format string) error {
	formatter, err := formatterFor(format)
	if err != nil {
		return err
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level: %s", level)
	}
	l.SetFormatter(formatter)
	l.SetLevel(lvl)
	return nil
}

func formatterFor(format string) (log.Formatter, error) {
	switch format {
	case FormatText, "":
		return &log.TextFormatter{FullTimestamp: true, PadLevelText: true}, nil
	case FormatJSON:
		return &log.JSONFormatter{}, nil
	}
	return nil, fmt.Errorf("unknown log format: %s", format)
}

// Close releases the log file opened by Init.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(os.Stderr)
	closeFile()
}

func closeFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// ErrNoLogFile is returned by Tail when Init did not open a log file.
var ErrNoLogFile = errors.New("file logging is disabled")

const (
	maxTailLines = 10000
	maxEntrySize = 1 << 20
)

// Tail returns up to n of the most recent entries in the log file opened by
// Init, oldest first. n is capped at 10000.
func Tail(n int) ([]string, error) {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil, ErrNoLogFile
	}
	if n <= 0 {
		return nil, nil
	}
	n = min(n, maxTailLines)

	f, err := os.Open(logFile.Name())
	if err != nil {
		return nil, fmt.Errorf("tail log: %w", err)
	}
	defer f.Close()

	ring := make([]string, n)
	seen := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(nil, maxEntrySize)
	for sc.Scan() {
		ring[seen%n] = sc.Text()
		seen++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tail log: %w", err)
	}
	if seen <= n {
		return ring[:seen], nil
	}
	start := seen % n
	return append(ring[start:], ring[:start]...), nil
}
