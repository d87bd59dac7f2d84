package txctl

import (
	"errors"
	"testing"

	"github.com/msageha/ookd/internal/picode"
)

func TestValidate_OK(t *testing.T) {
	if err := Validate(17, picode.Train{300, 900, 300, 900}, 4); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		channel int
		train   picode.Train
		repeats int
		want    error
	}{
		{"channel below", 1, picode.Train{10, 90}, 4, ErrChannel},
		{"channel above", 28, picode.Train{10, 90}, 4, ErrChannel},
		{"zero repeats", 17, picode.Train{10, 90}, 0, ErrRepeats},
		{"excess repeats", 17, picode.Train{10, 90}, picode.MaxTxRepeats + 1, ErrRepeats},
		{"empty train", 17, picode.Train{}, 4, ErrPulseCount},
		{"oversize train", 17, appendTrain(picode.MaxPulseCount+2, 10), 1, ErrPulseCount},
		{"odd train", 17, picode.Train{10, 90, 10}, 4, ErrOddTrain},
		{"zero pulse", 17, picode.Train{0, 90}, 4, ErrPulseLength},
		{"negative pulse", 17, picode.Train{10, -5}, 4, ErrPulseLength},
		{"pulse at limit", 17, picode.Train{picode.MaxPulseLength, 90}, 1, ErrPulseLength},
		{"budget blown", 17, picode.Train{90000, 90000}, 20, ErrTxBudget},
		{"budget one over", 17, picode.Train{50000, 50001}, 20, ErrTxBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.channel, tt.train, tt.repeats)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

// Checks run in a fixed order, so the earliest failure wins even when a
// request breaks several rules at once.
func TestValidate_Order(t *testing.T) {
	tests := []struct {
		name    string
		channel int
		train   picode.Train
		repeats int
		want    error
	}{
		{"channel before repeats", 0, picode.Train{10, 90}, 0, ErrChannel},
		{"repeats before count", 17, picode.Train{}, 0, ErrRepeats},
		{"count before parity", 17, appendTrain(picode.MaxPulseCount+1, 10), 4, ErrPulseCount},
		{"parity before length", 17, picode.Train{10, -5, 10}, 4, ErrOddTrain},
		{"length before budget", 17, picode.Train{picode.MaxPulseLength, 90000}, 20, ErrPulseLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.channel, tt.train, tt.repeats)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_BudgetScalesWithRepeats(t *testing.T) {
	train := picode.Train{90000, 90000}

	if err := Validate(17, train, 1); err != nil {
		t.Errorf("repeats=1: %v", err)
	}
	// 180 ms a pass is fine once but not twelve times.
	if err := Validate(17, train, 12); !errors.Is(err, ErrTxBudget) {
		t.Errorf("repeats=12: %v, want ErrTxBudget", err)
	}
}

func TestValidate_BudgetExactFit(t *testing.T) {
	// 100000 us x20 lands exactly on the 2000 ms budget.
	if err := Validate(17, picode.Train{50000, 50000}, picode.MaxTxRepeats); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_FullLengthTrain(t *testing.T) {
	if err := Validate(17, appendTrain(picode.MaxPulseCount, 100), 4); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func appendTrain(n, pulse int) picode.Train {
	train := make(picode.Train, n)
	for i := range train {
		train[i] = pulse
	}
	return train
}
