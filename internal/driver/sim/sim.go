// Package sim provides a transmitter that performs no I/O. It applies the
// same checks as the transmit firmware and blocks for the time a real
// transmission would take, so timing-sensitive callers behave as they
// would against hardware.
package sim

import (
	"fmt"
	"time"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/picode"
)

type Driver struct {
	sleep func(time.Duration)
}

func New() *Driver {
	return &Driver{sleep: time.Sleep}
}

// NewInstant returns a simulator that reports elapsed time without actually
// waiting. Used by tests and by `ookd check`.
func NewInstant() *Driver {
	return &Driver{sleep: func(time.Duration) {}}
}

func (d *Driver) Name() string { return "sim" }

func (d *Driver) Close() error { return nil }

// Transmit mirrors the firmware checks: channel and repeats are caller
// errors, everything else maps to a firmware rejection code. The upper pulse
// bound is exclusive here, one microsecond stricter than the decoder's
// inclusive bound.
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
		if pulse <= 0 || pulse >= picode.MaxPulseLength {
			return 0, &driver.Error{Code: driver.CodeInvalidLength}
		}
		micros += pulse
		if micros*repeats > picode.MaxTxTime*1000 {
			return 0, &driver.Error{Code: driver.CodeInvalidTxTime}
		}
	}

	micros *= repeats
	d.sleep(time.Duration(micros) * time.Microsecond)

	return micros / 1000, nil
}
