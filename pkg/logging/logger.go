package logging

import (
	"bytes"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger is a wrapper around the log.Logger from the charmbracelet/log package.
type Logger struct {
	*log.Logger
	// Buffer is only set for loggers created by NewTestLogger.
	Buffer *bytes.Buffer
}

var (
	logger *Logger
	once   sync.Once
	mu     sync.Mutex
)

// CreateLogger sets up the logger. It must be called before using the logger.
func CreateLogger() {
	once.Do(func() {
		baseLogger := log.New(os.Stderr)

		// DEBUG=1 switches on caller reporting, timestamps and debug level.
		if os.Getenv("DEBUG") == "1" {
			baseLogger = log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				Prefix:          "notescribe",
			})
			baseLogger.SetLevel(log.DebugLevel)
		} else {
			baseLogger.SetLevel(log.InfoLevel)
		}

		mu.Lock()
		logger = &Logger{Logger: baseLogger}
		mu.Unlock()
	})
}

// NewTestLogger returns a debug level logger that writes into an in-memory buffer.
func NewTestLogger() *Logger {
	buf := new(bytes.Buffer)
	base := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	return &Logger{Logger: base, Buffer: buf}
}

// SetTestLogger replaces the process logger. Tests only.
func SetTestLogger(l *Logger) {
	once.Do(func() {})
	mu.Lock()
	logger = l
	mu.Unlock()
}

// ResetForTest drops the process logger so the next call recreates it.
func ResetForTest() {
	mu.Lock()
	logger = nil
	once = sync.Once{}
	mu.Unlock()
}

// GetOutput returns everything written to a test logger so far.
func (l *Logger) GetOutput() string {
	if l.Buffer == nil {
		return ""
	}
	return l.Buffer.String()
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(keyvals...), Buffer: l.Buffer}
}

// GetLogger returns the Logger instance, creating it on first use.
func GetLogger() *Logger {
	EnsureInitialized()
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// EnsureInitialized creates the process logger if nobody did yet.
func EnsureInitialized() {
	mu.Lock()
	missing := logger == nil
	mu.Unlock()
	if missing {
		CreateLogger()
	}
}
