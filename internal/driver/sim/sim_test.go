package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/picode"
)

func TestTransmit_ReportsScaledDuration(t *testing.T) {
	var slept time.Duration
	d := &Driver{sleep: func(dur time.Duration) { slept = dur }}

	// 2000us per pass, 5 passes: 10ms total.
	ms, err := d.Transmit(18, picode.Train{1400, 600}, 5)
	if err != nil {
		t.Fatalf("Transmit returned error: %v", err)
	}
	if ms != 10 {
		t.Errorf("elapsed = %dms, want 10ms", ms)
	}
	if slept != 10*time.Millisecond {
		t.Errorf("slept %v, want 10ms", slept)
	}
}

func TestTransmit_FirmwareCodes(t *testing.T) {
	over := make(picode.Train, picode.MaxPulseCount+2)
	for i := range over {
		over[i] = 10
	}

	tests := []struct {
		name  string
		train picode.Train
		want  driver.Code
	}{
		{"empty train", picode.Train{}, driver.CodeInvalidCount},
		{"oversized train", over, driver.CodeInvalidCount},
		{"odd train", picode.Train{10, 90, 10}, driver.CodeOddTrain},
		{"zero pulse", picode.Train{0, 90}, driver.CodeInvalidLength},
		{"pulse at exclusive bound", picode.Train{picode.MaxPulseLength, 90}, driver.CodeInvalidLength},
		{"budget exceeded", picode.Train{90000, 90000}, driver.CodeInvalidTxTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInstant().Transmit(18, tt.train, 20)
			var de *driver.Error
			if !errors.As(err, &de) {
				t.Fatalf("Transmit = %v, want *driver.Error", err)
			}
			if de.Code != tt.want {
				t.Errorf("code = %d, want %d", de.Code, tt.want)
			}
		})
	}
}

func TestTransmit_CallerErrors(t *testing.T) {
	d := NewInstant()

	if _, err := d.Transmit(1, picode.Train{10, 90}, 4); !errors.Is(err, driver.ErrChannel) {
		t.Errorf("channel 1: got %v, want ErrChannel", err)
	}
	if _, err := d.Transmit(28, picode.Train{10, 90}, 4); !errors.Is(err, driver.ErrChannel) {
		t.Errorf("channel 28: got %v, want ErrChannel", err)
	}
	if _, err := d.Transmit(18, picode.Train{10, 90}, 0); !errors.Is(err, driver.ErrRepeats) {
		t.Errorf("repeats 0: got %v, want ErrRepeats", err)
	}
	if _, err := d.Transmit(18, picode.Train{10, 90}, picode.MaxTxRepeats+1); !errors.Is(err, driver.ErrRepeats) {
		t.Errorf("repeats 21: got %v, want ErrRepeats", err)
	}
}

func TestTransmit_BudgetScalesWithRepeats(t *testing.T) {
	// One pass is 180ms; at the 20-repeat limit the projected time is 3.6s,
	// over the 2s budget. A single repeat stays well inside it.
	train := picode.Train{90000, 90000}

	if ms, err := NewInstant().Transmit(18, train, 1); err != nil || ms != 180 {
		t.Errorf("repeats=1: got (%d, %v), want (180, nil)", ms, err)
	}

	_, err := NewInstant().Transmit(18, train, 20)
	var de *driver.Error
	if !errors.As(err, &de) || de.Code != driver.CodeInvalidTxTime {
		t.Errorf("repeats=20: got %v, want CodeInvalidTxTime", err)
	}
}
