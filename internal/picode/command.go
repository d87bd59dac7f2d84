package picode

import (
	"strconv"
	"strings"
	"time"
)

// Command is a decoded picode string. Types holds pulse-type indices into
// the Lengths table and always has even length after a successful decode.
// At most one of Repeats and Seconds is set; zero means absent.
type Command struct {
	Types   []int
	Lengths []int
	Repeats int
	Seconds int
}

// String renders the command back to canonical picode text. Decoding the
// result yields an equivalent command.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString("c:")
	for _, t := range c.Types {
		b.WriteByte(byte('0' + t))
	}
	b.WriteString(";p:")
	for i, p := range c.Lengths {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(p))
	}
	switch {
	case c.Repeats > 0:
		b.WriteString(";r:")
		b.WriteString(strconv.Itoa(c.Repeats))
	case c.Seconds > 0:
		b.WriteString(";t:")
		b.WriteString(strconv.Itoa(c.Seconds))
	}
	b.WriteByte('@')
	return b.String()
}

// Train is a compiled pulse train: pulse durations in microseconds, in
// transmission order. Element i drives the line HIGH when i is even and LOW
// when i is odd, so a well-formed train has even length.
type Train []int

// Micros returns the total duration of a single pass over the train,
// in microseconds.
func (t Train) Micros() int {
	total := 0
	for _, p := range t {
		total += p
	}
	return total
}

// Duration returns Micros as a time.Duration.
func (t Train) Duration() time.Duration {
	return time.Duration(t.Micros()) * time.Microsecond
}
