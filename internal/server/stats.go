package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Stats tracks what the status endpoint reports.
type Stats struct {
	mu        sync.Mutex
	pid       int
	startTime time.Time
	txCount   int
	lastTX    time.Time
	digest    string
	logsDir   string
	affinity  string
	now       func() time.Time
}

func NewStats(logsDir string) *Stats {
	return &Stats{
		pid:       os.Getpid(),
		startTime: time.Now(),
		digest:    binaryDigest(),
		logsDir:   logsDir,
		affinity:  "unknown",
		now:       time.Now,
	}
}

// RecordTX counts a successful transmission.
func (s *Stats) RecordTX() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	s.lastTX = s.now()
}

func (s *Stats) SetAffinity(affinity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affinity = affinity
}

func (s *Stats) TXCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

type StatusSnapshot struct {
	PID       int    `json:"pid"`
	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	TXCount   int    `json:"tx_count"`
	LastTX    string `json:"last_tx"`
	Digest    string `json:"digest"`
	LogsDir   string `json:"logs_directory"`
	Affinity  string `json:"isolated_cpu_affinity"`
}

func (s *Stats) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastTX := "never"
	if !s.lastTX.IsZero() {
		lastTX = s.lastTX.Format("2006-01-02 15:04:05")
	}
	return StatusSnapshot{
		PID:       s.pid,
		StartTime: s.startTime.Format("2006-01-02 15:04:05"),
		Uptime:    humanDuration(s.now().Sub(s.startTime)),
		TXCount:   s.txCount,
		LastTX:    lastTX,
		Digest:    s.digest,
		LogsDir:   s.logsDir,
		Affinity:  s.affinity,
	}
}

// humanDuration renders "N days, N hours, N minutes, N seconds", dropping
// leading units that are zero.
func humanDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%d %s, ", days, plural(days, "day"))
	}
	if b.Len() > 0 || hours > 0 {
		fmt.Fprintf(&b, "%d %s, ", hours, plural(hours, "hour"))
	}
	if b.Len() > 0 || minutes > 0 {
		fmt.Fprintf(&b, "%d %s, ", minutes, plural(minutes, "minute"))
	}
	fmt.Fprintf(&b, "%d %s", seconds, plural(seconds, "second"))
	return b.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// binaryDigest hashes the running executable, so status reports exactly
// which build is on the air.
func binaryDigest() string {
	exe, err := os.Executable()
	if err != nil {
		return "unknown"
	}
	f, err := os.Open(exe)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(h.Sum(nil))
}
