package txctl

import (
	"errors"
	"testing"
	"time"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/picode"
)

type fakeTX struct {
	millis      int
	err         error
	calls       int
	lastChannel int
	lastRepeats int
	lastTrain   picode.Train
}

func (f *fakeTX) Transmit(channel int, train picode.Train, repeats int) (int, error) {
	f.calls++
	f.lastChannel = channel
	f.lastRepeats = repeats
	f.lastTrain = train
	if f.err != nil {
		return 0, f.err
	}
	return f.millis, nil
}

func (f *fakeTX) Name() string { return "fake" }
func (f *fakeTX) Close() error { return nil }

// stubClock replays a scripted sequence of instants, holding the last one
// once the script runs out.
type stubClock struct {
	times []time.Time
	i     int
}

func (c *stubClock) now() time.Time {
	t := c.times[c.i]
	if c.i < len(c.times)-1 {
		c.i++
	}
	return t
}

func TestExecute_Counted(t *testing.T) {
	tx := &fakeTX{millis: 12}
	s := NewScheduler(tx)

	res, err := s.Execute(Request{Channel: 17, Train: picode.Train{300, 900, 300, 900}, Repeats: 5})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Millis != 12 || res.Calls != 1 || res.Dropped {
		t.Errorf("result = %+v, want {Millis:12 Calls:1 Dropped:false}", res)
	}
	if tx.lastChannel != 17 || tx.lastRepeats != 5 {
		t.Errorf("driver saw channel=%d repeats=%d, want 17/5", tx.lastChannel, tx.lastRepeats)
	}
}

func TestExecute_CountedDefaultRepeats(t *testing.T) {
	tx := &fakeTX{millis: 3}
	s := NewScheduler(tx)

	if _, err := s.Execute(Request{Channel: 17, Train: picode.Train{10, 90}}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if tx.lastRepeats != picode.DefaultRepeats {
		t.Errorf("driver saw repeats=%d, want %d", tx.lastRepeats, picode.DefaultRepeats)
	}
}

// Dropped reflects the measured time, not the estimate: a driver can still
// overrun the budget the validator admitted.
func TestExecute_CountedDropped(t *testing.T) {
	tx := &fakeTX{millis: picode.MaxTxTime + 300}
	s := NewScheduler(tx)

	res, err := s.Execute(Request{Channel: 17, Train: picode.Train{300, 900}, Repeats: 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Dropped {
		t.Errorf("result = %+v, want Dropped", res)
	}
	if res.Millis != picode.MaxTxTime+300 {
		t.Errorf("Millis = %d, want %d", res.Millis, picode.MaxTxTime+300)
	}
}

func TestExecute_CountedInvalid(t *testing.T) {
	tx := &fakeTX{}
	s := NewScheduler(tx)

	_, err := s.Execute(Request{Channel: 1, Train: picode.Train{10, 90}, Repeats: 4})
	if !errors.Is(err, ErrChannel) {
		t.Fatalf("Execute = %v, want ErrChannel", err)
	}
	if tx.calls != 0 {
		t.Errorf("driver called %d times for invalid request", tx.calls)
	}
}

func TestExecute_Timed(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := &stubClock{times: []time.Time{
		base,
		base,
		base.Add(400 * time.Millisecond),
		base.Add(900 * time.Millisecond),
		base.Add(1100 * time.Millisecond),
	}}
	tx := &fakeTX{millis: 40}
	s := NewScheduler(tx)
	s.now = clock.now

	res, err := s.Execute(Request{Channel: 17, Train: picode.Train{300, 900}, Seconds: 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Calls != 3 || tx.calls != 3 {
		t.Errorf("calls = %d (driver %d), want 3", res.Calls, tx.calls)
	}
	// Timed mode reports the configured duration, not the loop's runtime.
	if res.Millis != 1000 {
		t.Errorf("Millis = %d, want 1000", res.Millis)
	}
	if tx.lastRepeats != picode.DefaultRepeats {
		t.Errorf("driver saw repeats=%d, want %d", tx.lastRepeats, picode.DefaultRepeats)
	}
}

func TestExecute_TimedFailsFast(t *testing.T) {
	tx := &fakeTX{err: &driver.Error{Code: driver.CodeInvalidTxTime}}
	s := NewScheduler(tx)

	_, err := s.Execute(Request{Channel: 17, Train: picode.Train{300, 900}, Seconds: 5})
	var derr *driver.Error
	if !errors.As(err, &derr) || derr.Code != driver.CodeInvalidTxTime {
		t.Fatalf("Execute = %v, want driver error -5", err)
	}
	if tx.calls != 1 {
		t.Errorf("driver called %d times, want 1", tx.calls)
	}
}

func TestExecute_TimedInvalidTrain(t *testing.T) {
	tx := &fakeTX{}
	s := NewScheduler(tx)

	_, err := s.Execute(Request{Channel: 17, Train: picode.Train{10, 90, 10}, Seconds: 2})
	if !errors.Is(err, ErrOddTrain) {
		t.Fatalf("Execute = %v, want ErrOddTrain", err)
	}
	if tx.calls != 0 {
		t.Errorf("driver called %d times for invalid request", tx.calls)
	}
}
