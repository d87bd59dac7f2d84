// Package driver defines the transmit hardware contract shared by all
// radio backends. A Transmitter call is synchronous: it returns only once
// the physical transmission has finished or the firmware rejected it.
package driver

import (
	"errors"
	"fmt"

	"github.com/msageha/ookd/internal/picode"
)

// Addressable BCM GPIO channel range on the Pi header.
const (
	MinChannel = 2
	MaxChannel = 27
)

// Code is a firmware status code. Zero means success; negative values are
// the rejection codes shared by every backend.
type Code int

const (
	OK                Code = 0
	CodeUnknown       Code = -1
	CodeInvalidCount  Code = -2
	CodeOddTrain      Code = -3
	CodeInvalidLength Code = -4
	CodeInvalidTxTime Code = -5
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case CodeInvalidCount:
		return "invalid pulse count"
	case CodeOddTrain:
		return "odd pulse train"
	case CodeInvalidLength:
		return "invalid pulse length"
	case CodeInvalidTxTime:
		return "invalid tx time"
	default:
		return "unknown error"
	}
}

// Error is a firmware rejection surfaced verbatim. It is terminal for the
// request: the scheduler never retries hardware failures.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("driver: tx failed: %s (%d)", e.Code, int(e.Code))
}

// Misuse errors raised before the firmware is touched.
var (
	ErrChannel = errors.New("driver: channel outside BCM range")
	ErrRepeats = errors.New("driver: repeats outside allowed range")
	ErrClosed  = errors.New("driver: closed")
)

// Transmitter sends one pulse train on a channel the given number of times.
// Transmit blocks for the whole transmission and returns the elapsed time in
// milliseconds. Implementations must hold the line LOW on return.
//
// Callers are expected to serialize Transmit calls per channel; no
// implementation queues internally.
type Transmitter interface {
	Transmit(channel int, train picode.Train, repeats int) (int, error)
	Name() string
	Close() error
}
