// Package txctl validates transmit requests against the hardware safety
// limits and schedules them onto a driver.
package txctl

import (
	"errors"
	"fmt"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/picode"
)

var (
	ErrChannel     = errors.New("txctl: channel out of range")
	ErrRepeats     = errors.New("txctl: repeats out of range")
	ErrPulseCount  = errors.New("txctl: pulse count out of range")
	ErrOddTrain    = errors.New("txctl: pulse train must pair HIGH and LOW pulses")
	ErrPulseLength = errors.New("txctl: pulse length out of range")
	ErrTxBudget    = errors.New("txctl: transmission exceeds TX time budget")
)

// Validate applies the firmware safety checks before any hardware is
// touched, in the same order the firmware applies them. The TX budget is
// scaled by repeats: a train that fits once may still be refused when
// repeating it would hold the channel past the budget.
func Validate(channel int, train picode.Train, repeats int) error {
	if channel < driver.MinChannel || channel > driver.MaxChannel {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrChannel, channel, driver.MinChannel, driver.MaxChannel)
	}
	if repeats < 1 || repeats > picode.MaxTxRepeats {
		return fmt.Errorf("%w: %d", ErrRepeats, repeats)
	}
	if len(train) < 1 || len(train) > picode.MaxPulseCount {
		return fmt.Errorf("%w: %d", ErrPulseCount, len(train))
	}
	if len(train)%2 != 0 {
		return fmt.Errorf("%w: %d pulses", ErrOddTrain, len(train))
	}
	micros := 0
	for i, pulse := range train {
		if pulse <= 0 || pulse >= picode.MaxPulseLength {
			return fmt.Errorf("%w: pulse %d is %d us", ErrPulseLength, i, pulse)
		}
		micros += pulse
		if micros*repeats > picode.MaxTxTime*1000 {
			return fmt.Errorf("%w: %d us x%d over %d ms", ErrTxBudget, micros, repeats, picode.MaxTxTime)
		}
	}
	return nil
}
