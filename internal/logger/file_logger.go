package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls how the process-wide logger is built
type Options struct {
	Level   string // debug, info, warn, error
	Dir     string // directory for the daily log file; empty disables file output
	Name    string // file name prefix
	Console bool   // human readable console output instead of JSON
	Out     io.Writer
}

// RunLogger writes optimizer session logs to a daily file and the console
type RunLogger struct {
	name    string
	logDir  string
	logFile *os.File
	mu      sync.Mutex
	logger  zerolog.Logger
}

// ParseLevel converts a textual level into a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Setup configures the global zerolog logger and returns a RunLogger that
// owns the optional log file. Close must be called when the run ends.
func Setup(opts Options) (*RunLogger, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	rl := &RunLogger{name: opts.Name, logDir: opts.Dir}
	writers := []io.Writer{out}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(rl.GetLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		rl.logFile = file
		writers = append(writers, file)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	rl.logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()
	log.Logger = rl.logger

	rl.writeSessionHeader()
	return rl, nil
}

// Logger returns the configured zerolog logger
func (l *RunLogger) Logger() zerolog.Logger {
	return l.logger
}

// writeSessionHeader marks the start of a session in the log
func (l *RunLogger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Info().
		Str("session", l.name).
		Str("log_file", l.pathOrNone()).
		Msg("🚀 optimizer session started")
}

// Close writes the session footer and closes the log file
func (l *RunLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Info().Str("session", l.name).Msg("🛑 optimizer session ended")
	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		return err
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *RunLogger) GetLogPath() string {
	name := l.name
	if name == "" {
		name = "optimizer"
	}
	filename := fmt.Sprintf("%s_%s.log", name, time.Now().Format("2006-01-02"))
	return filepath.Join(l.logDir, filename)
}

func (l *RunLogger) pathOrNone() string {
	if l.logFile == nil {
		return "none"
	}
	return l.logFile.Name()
}
