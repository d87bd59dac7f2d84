// Package lock provides the daemon's single-instance file lock and the
// per-channel transmit locks.
package lock

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Channels hands out one mutex per GPIO channel, so concurrent requests for
// the same channel transmit one at a time while different channels stay
// independent.
type Channels struct {
	mu      sync.Mutex
	mutexes map[int]*sync.Mutex
}

func NewChannels() *Channels {
	return &Channels{
		mutexes: make(map[int]*sync.Mutex),
	}
}

func (c *Channels) Lock(channel int) {
	c.getMutex(channel).Lock()
}

func (c *Channels) Unlock(channel int) {
	c.getMutex(channel).Unlock()
}

func (c *Channels) getMutex(channel int) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mu, ok := c.mutexes[channel]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	c.mutexes[channel] = mu
	return mu
}

// FileLock is an advisory flock plus PID file keeping a second daemon off
// the same radio.
type FileLock struct {
	path string
	file *os.File
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

func (fl *FileLock) TryLock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("acquire lock (another ookd may be running): %w", err)
	}

	if err := f.Truncate(0); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return fmt.Errorf("write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return fmt.Errorf("sync lock file: %w", err)
	}

	fl.file = f
	return nil
}

func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := unix.Flock(int(fl.file.Fd()), unix.LOCK_UN); err != nil {
		fl.file.Close()
		return fmt.Errorf("release lock: %w", err)
	}

	if err := fl.file.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}

	os.Remove(fl.path)
	fl.file = nil
	return nil
}
