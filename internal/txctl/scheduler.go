package txctl

import (
	"time"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/picode"
)

// Request is one decoded transmission. At most one of Repeats and Seconds is
// set; Seconds selects timed mode, otherwise the train is sent once with the
// given repeat count (DefaultRepeats when zero).
type Request struct {
	Channel int
	Train   picode.Train
	Repeats int
	Seconds int
}

// Result reports what a transmission did.
type Result struct {
	// Millis is the measured TX time of a counted transmission, or the
	// configured duration of a timed one.
	Millis int
	// Calls counts driver transmissions; always 1 for counted requests.
	Calls int
	// Dropped marks a counted transmission whose measured time overran
	// the TX budget.
	Dropped bool
}

// Scheduler runs requests one at a time on a single transmitter. Callers
// serialize Execute themselves; the scheduler adds no queue.
type Scheduler struct {
	tx  driver.Transmitter
	now func() time.Time
}

func NewScheduler(tx driver.Transmitter) *Scheduler {
	return &Scheduler{tx: tx, now: time.Now}
}

// Execute validates and runs one request. Counted requests transmit once;
// timed requests transmit in rounds of DefaultRepeats until the wall-clock
// deadline passes, revalidating before every round and failing on the first
// error.
func (s *Scheduler) Execute(req Request) (Result, error) {
	if req.Seconds > 0 {
		return s.timed(req)
	}
	return s.counted(req)
}

func (s *Scheduler) counted(req Request) (Result, error) {
	repeats := req.Repeats
	if repeats == 0 {
		repeats = picode.DefaultRepeats
	}
	if err := Validate(req.Channel, req.Train, repeats); err != nil {
		return Result{}, err
	}
	ms, err := s.tx.Transmit(req.Channel, req.Train, repeats)
	if err != nil {
		return Result{}, err
	}
	return Result{Millis: ms, Calls: 1, Dropped: ms > picode.MaxTxTime}, nil
}

func (s *Scheduler) timed(req Request) (Result, error) {
	deadline := s.now().Add(time.Duration(req.Seconds) * time.Second)
	calls := 0
	for s.now().Before(deadline) {
		if err := Validate(req.Channel, req.Train, picode.DefaultRepeats); err != nil {
			return Result{}, err
		}
		if _, err := s.tx.Transmit(req.Channel, req.Train, picode.DefaultRepeats); err != nil {
			return Result{}, err
		}
		calls++
	}
	return Result{Millis: req.Seconds * 1000, Calls: calls}, nil
}
