package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a printf-style logger backed by zap. Console output goes to
// stdout (errors to stderr); an optional log file receives every level.
type Logger struct {
	Verbose bool

	mu      sync.Mutex
	console zapcore.Core
	fileLog *os.File
	sugar   atomic.Pointer[zap.SugaredLogger]
	hasBar  atomic.Bool
}

// New creates a new Logger writing to the process's stdout and stderr.
func New(verbose bool) *Logger {
	return NewWithWriters(verbose, os.Stdout, os.Stderr)
}

// NewWithWriters creates a Logger writing console output to out and errors
// to errOut.
func NewWithWriters(verbose bool, out, errOut io.Writer) *Logger {
	l := &Logger{Verbose: verbose}

	minLevel := zapcore.InfoLevel
	if verbose {
		minLevel = zapcore.DebugLevel
	}

	enc := zapcore.NewConsoleEncoder(consoleEncoderConfig())
	stdout := zapcore.NewCore(enc, zapcore.AddSync(&barAwareWriter{w: out, l: l}),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= minLevel && lvl < zapcore.ErrorLevel
		}))
	stderr := zapcore.NewCore(enc, zapcore.AddSync(errOut), zapcore.ErrorLevel)

	l.console = zapcore.NewTee(stdout, stderr)
	l.sugar.Store(zap.New(l.console).Sugar())
	return l
}

// SetFileLog enables logging to a file. The file receives DEBUG and above
// regardless of verbosity.
func (l *Logger) SetFileLog(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncoderConfig()), zapcore.AddSync(f), zapcore.DebugLevel)
	l.fileLog = f
	l.sugar.Store(zap.New(zapcore.NewTee(l.console, fileCore)).Sugar())
	return nil
}

// SetProgressBar indicates that a progress bar is active. Console output
// below ERROR is suppressed while it is, unless the logger is verbose.
func (l *Logger) SetProgressBar(active bool) {
	l.hasBar.Store(active)
}

// Close flushes and closes the log file if open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.sugar.Load().Sync()
	if l.fileLog != nil {
		err := l.fileLog.Close()
		l.fileLog = nil
		l.sugar.Store(zap.New(l.console).Sugar())
		return err
	}
	return nil
}

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Load().Infof(format, args...)
}

// Debug logs detailed messages. They reach the console only in verbose mode
// but always reach the log file.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Load().Debugf(format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Load().Warnf(format, args...)
}

// Error logs error messages to stderr
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Load().Errorf(format, args...)
}

// barAwareWriter drops console output while a progress bar owns the terminal.
type barAwareWriter struct {
	w io.Writer
	l *Logger
}

func (b *barAwareWriter) Write(p []byte) (int, error) {
	if b.l.hasBar.Load() && !b.l.Verbose {
		return len(p), nil
	}
	return b.w.Write(p)
}

// consoleEncoderConfig prints INFO lines bare and other levels with a
// "[LEVEL]" prefix.
func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		LineEnding:  zapcore.DefaultLineEnding,
		EncodeLevel: bracketLevelEncoder,
	}
}

func fileEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func bracketLevelEncoder(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if lvl == zapcore.InfoLevel {
		return
	}
	enc.AppendString("[" + lvl.CapitalString() + "]")
}
