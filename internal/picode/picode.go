// Package picode implements the picode text protocol: a compact encoding of
// an OOK RF pulse train as a pulse-type sequence plus a pulse-length table,
// with an optional repeat count or transmission duration.
//
// A picode string looks like:
//
//	c:011010100101011010100110101001100110010101100110101010101010101012;p:1400,600,6800;r:5@
//
// The "c:" field indexes into the "p:" table; compiling the command expands
// it into the concrete sequence of pulse durations in microseconds.
package picode

// TX limits shared with the transmit firmware. The same values appear in the
// pilight-usb-nano firmware and must not diverge from it.
const (
	MaxPulseLength = 100000 // max single pulse length (microseconds)
	MaxPulseCount  = 1000   // max pulses per train
	MaxPulseTypes  = 10     // pulse type index range, "c:" digits 0..9
	MaxTParameter  = 30     // max "t:" duration (seconds)
	MaxTxTime      = 2000   // max transmission time (milliseconds)
	MaxTxRepeats   = 20     // max "r:" repeats
	DefaultRepeats = 4      // repeats when the trailer is absent
)

// MinLength is the shortest well-formed picode string: "c:01;p:10,90@".
const MinLength = 13
