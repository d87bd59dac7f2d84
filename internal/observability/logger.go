// Package observability wires logging and metrics for the daemon.
package observability

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

// InitLogger builds the process logger: human console output plus JSON
// lines into file when one is given. The level applies process-wide and can
// be adjusted later with SetLevel.
func InitLogger(level string, file io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	var out io.Writer = console
	if file != nil {
		out = zerolog.MultiLevelWriter(console, file)
	}
	logger := zerolog.New(out).With().Timestamp().Str("app", "ookd").Logger()
	log.Logger = logger
	return logger
}

// SetLevel adjusts the process log level at runtime.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// LogFileName returns the monthly log file name for t, e.g.
// "ookd_2026_aug.log".
func LogFileName(t time.Time) string {
	return strings.ToLower(t.Format("ookd_2006_Jan")) + ".log"
}

// MonthlyWriter appends to the month's log file under dir, reopening when
// the month rolls over.
type MonthlyWriter struct {
	mu   sync.Mutex
	dir  string
	name string
	file *os.File
	now  func() time.Time
}

func NewMonthlyWriter(dir string) (*MonthlyWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &MonthlyWriter{dir: dir, now: time.Now}
	if err := w.reopen(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *MonthlyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if name := LogFileName(w.now()); name != w.name {
		if err := w.reopen(); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *MonthlyWriter) reopen() error {
	if w.file != nil {
		w.file.Close()
	}
	name := LogFileName(w.now())
	file, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.file = file
	w.name = name
	return nil
}

func (w *MonthlyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
