//go:build linux

// Package gpio bit-bangs OOK pulse trains on a Broadcom GPIO line.
package gpio

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	hw "github.com/davecheney/gpio"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/picode"
)

type Driver struct {
	mu     sync.Mutex
	pins   map[int]hw.Pin
	closed bool
}

func Open() (*Driver, error) {
	return &Driver{pins: make(map[int]hw.Pin)}, nil
}

func (d *Driver) Name() string { return "gpio" }

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var first error
	for ch, pin := range d.pins {
		pin.Clear()
		if err := pin.Close(); err != nil && first == nil {
			first = err
		}
		delete(d.pins, ch)
	}
	d.closed = true
	return first
}

func (d *Driver) pin(channel int) (hw.Pin, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, driver.ErrClosed
	}
	if pin, ok := d.pins[channel]; ok {
		return pin, nil
	}
	pin, err := hw.OpenPin(channel, hw.ModeOutput)
	if err != nil {
		return nil, fmt.Errorf("open gpio %d: %w", channel, err)
	}
	d.pins[channel] = pin
	return pin, nil
}

// Transmit drives the line HIGH on even train indices and LOW on odd ones,
// repeating the train until the repeat count or the TX time budget runs out,
// whichever comes first. The goroutine is pinned to its OS thread for the
// duration; pulse spacing still depends on the kernel scheduler, which is
// why the daemon tries to isolate a CPU at boot.
func (d *Driver) Transmit(channel int, train picode.Train, repeats int) (int, error) {
	if channel < driver.MinChannel || channel > driver.MaxChannel {
		return 0, fmt.Errorf("%w: %d", driver.ErrChannel, channel)
	}
	if repeats < 1 || repeats > picode.MaxTxRepeats {
		return 0, fmt.Errorf("%w: %d", driver.ErrRepeats, repeats)
	}
	if len(train) < 1 || len(train) > picode.MaxPulseCount {
		return 0, &driver.Error{Code: driver.CodeInvalidCount}
	}
	if len(train)%2 != 0 {
		return 0, &driver.Error{Code: driver.CodeOddTrain}
	}
	micros := 0
	for _, pulse := range train {
		if pulse <= 0 || pulse > picode.MaxPulseLength {
			return 0, &driver.Error{Code: driver.CodeInvalidLength}
		}
		micros += pulse
		if micros > picode.MaxTxTime*1000 {
			return 0, &driver.Error{Code: driver.CodeInvalidTxTime}
		}
	}

	pin, err := d.pin(channel)
	if err != nil {
		return 0, err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	start := time.Now()
	for r := 0; r < repeats; r++ {
		for i, pulse := range train {
			if i%2 == 0 {
				pin.Set()
			} else {
				pin.Clear()
			}
			delayMicros(pulse)
		}
		if time.Since(start) > picode.MaxTxTime*time.Millisecond {
			break
		}
	}
	elapsed := time.Since(start)

	// The line must never be left HIGH.
	pin.Clear()

	return int(elapsed / time.Millisecond), nil
}

// delayMicros sleeps through the bulk of long pulses and spins the last
// stretch, since timer wakeup latency is far coarser than pulse spacing.
func delayMicros(micros int) {
	deadline := time.Now().Add(time.Duration(micros) * time.Microsecond)
	if d := time.Until(deadline) - time.Millisecond; d > 0 {
		time.Sleep(d)
	}
	for time.Now().Before(deadline) {
	}
}
