// Package audit keeps the durable, append-only record of delivered alerts.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"

	"stock-alert/internal/models"
)

// TimestampLayout is the timestamp format of an audit line.
const TimestampLayout = "2006-01-02 15:04:05"

// Config holds audit log configuration.
type Config struct {
	Path       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// Log appends one line per delivered alert.
type Log struct {
	mu     sync.Mutex
	writer io.WriteCloser
}

// New creates an audit log backed by a rotating file.
func New(cfg Config) (*Log, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	return NewWithWriter(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	}), nil
}

// NewWithWriter creates an audit log on an arbitrary writer.
func NewWithWriter(w io.WriteCloser) *Log {
	return &Log{writer: w}
}

// Record appends the audit line for a delivered alert.
func (l *Log) Record(alert models.Alert) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := io.WriteString(l.writer, FormatLine(alert)); err != nil {
		return fmt.Errorf("failed to write audit line: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}

// FormatLine renders one newline-terminated audit line.
func FormatLine(alert models.Alert) string {
	return fmt.Sprintf("[%s] ALERT: %s at $%s (target: $%s %s)\n",
		alert.Timestamp.Format(TimestampLayout),
		alert.Symbol,
		Money(alert.Price),
		Money(alert.Target),
		alert.Direction,
	)
}

// Money formats an amount rounded to two decimal places.
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
