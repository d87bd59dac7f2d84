//go:build integration

package daemon

import (
	"os"
	"syscall"
	"testing"
	"time"
)

// SIGTERM to the test process itself must bring Run back. Tagged
// integration because the signal is process-wide.
func TestDaemon_SIGTERMShutsDown(t *testing.T) {
	cfg, path := testConfig(t)
	d := New(path, cfg)

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run() }()
	waitForSocket(t, cfg.Listen.Socket)

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop on SIGTERM")
	}
}
