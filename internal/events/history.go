package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxHistorySize bounds the history file before rotation (10MB).
	DefaultMaxHistorySize = 10 * 1024 * 1024
	historyExtension      = ".jsonl"
)

// History appends every event to a JSONL file, rotating the file aside once
// it grows past maxSize. Rotated files stay in the same directory so the
// log endpoints can still serve them.
type History struct {
	mu        sync.Mutex
	file      *os.File
	size      int64
	maxSize   int64
	path      string
	rotations int
}

// NewHistory opens (or creates) the history file at path.
func NewHistory(path string, maxSize int64) (*History, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxHistorySize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	h := &History{path: path, maxSize: maxSize}
	if err := h.open(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *History) open() error {
	file, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat history file: %w", err)
	}
	h.file = file
	h.size = stat.Size()
	return nil
}

// Record appends one event.
func (h *History) Record(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data = append(data, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		return os.ErrClosed
	}
	if h.size+int64(len(data)) > h.maxSize {
		if err := h.rotate(); err != nil {
			return fmt.Errorf("rotate history: %w", err)
		}
	}
	n, err := h.file.Write(data)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	h.size += int64(n)
	return nil
}

// rotate renames the current file with a timestamp suffix and reopens a
// fresh one. The counter keeps same-second rotations from colliding.
func (h *History) rotate() error {
	if err := h.file.Close(); err != nil {
		return err
	}
	h.rotations++
	stem := strings.TrimSuffix(filepath.Base(h.path), historyExtension)
	rotated := fmt.Sprintf("%s.%s.%d%s",
		stem, time.Now().Format("20060102_150405"), h.rotations, historyExtension)
	if err := os.Rename(h.path, filepath.Join(filepath.Dir(h.path), rotated)); err != nil {
		return err
	}
	return h.open()
}

// Path returns the history file path.
func (h *History) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.path
}

func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		return nil
	}
	err := h.file.Sync()
	if cerr := h.file.Close(); err == nil {
		err = cerr
	}
	h.file = nil
	return err
}
