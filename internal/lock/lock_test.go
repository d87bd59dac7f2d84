package lock

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestChannels_LockUnlock(t *testing.T) {
	c := NewChannels()

	c.Lock(17)
	c.Unlock(17)

	// Should be able to lock again
	c.Lock(17)
	c.Unlock(17)
}

func TestChannels_DifferentChannels(t *testing.T) {
	c := NewChannels()

	done := make(chan struct{})

	c.Lock(17)
	go func() {
		// channel 27 should not be blocked by channel 17
		c.Lock(27)
		c.Unlock(27)
		close(done)
	}()

	<-done
	c.Unlock(17)
}

func TestChannels_Concurrent(t *testing.T) {
	c := NewChannels()
	var counter int64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Lock(17)
			atomic.AddInt64(&counter, 1)
			c.Unlock(17)
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected counter=100, got %d", counter)
	}
}

func TestFileLock_TryLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "ookd.lock")

	fl := NewFileLock(lockPath)
	if err := fl.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer fl.Unlock()
}

func TestFileLock_DoubleLockRejected(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "ookd.lock")

	fl1 := NewFileLock(lockPath)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("first TryLock failed: %v", err)
	}
	defer fl1.Unlock()

	fl2 := NewFileLock(lockPath)
	if err := fl2.TryLock(); err == nil {
		fl2.Unlock()
		t.Fatal("expected second TryLock to fail")
	}
}

func TestFileLock_UnlockAllowsRelock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "ookd.lock")

	fl1 := NewFileLock(lockPath)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("first TryLock failed: %v", err)
	}
	if err := fl1.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	fl2 := NewFileLock(lockPath)
	if err := fl2.TryLock(); err != nil {
		t.Fatalf("re-lock after unlock failed: %v", err)
	}
	fl2.Unlock()
}

func TestFileLock_DoubleUnlockSafe(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "ookd.lock")

	fl := NewFileLock(lockPath)
	fl.TryLock()
	fl.Unlock()
	// Double unlock should be safe
	if err := fl.Unlock(); err != nil {
		t.Fatalf("double unlock should be safe, got: %v", err)
	}
}
