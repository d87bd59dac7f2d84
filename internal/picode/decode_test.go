package picode

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// The long-form code from the protocol docs: 66 pulse types, three pulse
// lengths, five repeats.
const longCode = "c:011010100101011010100110101001100110010101100110101010101010101012;p:1400,600,6800;r:5@"

func TestDecode_Minimal(t *testing.T) {
	cmd, err := Decode("c:01;p:10,90@")
	if err != nil {
		t.Fatalf("Decode returned error for minimal picode: %v", err)
	}
	if !reflect.DeepEqual(cmd.Types, []int{0, 1}) {
		t.Errorf("Types = %v, want [0 1]", cmd.Types)
	}
	if !reflect.DeepEqual(cmd.Lengths, []int{10, 90}) {
		t.Errorf("Lengths = %v, want [10 90]", cmd.Lengths)
	}
	if cmd.Repeats != 0 || cmd.Seconds != 0 {
		t.Errorf("trailer should be absent, got repeats=%d seconds=%d", cmd.Repeats, cmd.Seconds)
	}
}

func TestDecode_LongForm(t *testing.T) {
	cmd, err := Decode(longCode)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(cmd.Types) != 66 {
		t.Errorf("len(Types) = %d, want 66", len(cmd.Types))
	}
	if !reflect.DeepEqual(cmd.Lengths, []int{1400, 600, 6800}) {
		t.Errorf("Lengths = %v, want [1400 600 6800]", cmd.Lengths)
	}
	if cmd.Repeats != 5 {
		t.Errorf("Repeats = %d, want 5", cmd.Repeats)
	}
	if cmd.Types[len(cmd.Types)-1] != 2 {
		t.Errorf("last type = %d, want 2", cmd.Types[len(cmd.Types)-1])
	}
}

func TestDecode_OddTypesPadded(t *testing.T) {
	cmd, err := Decode("c:010;p:10,90@")
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !reflect.DeepEqual(cmd.Types, []int{0, 1, 0, 0}) {
		t.Errorf("Types = %v, want [0 1 0 0] (last digit duplicated)", cmd.Types)
	}
}

func TestDecode_CaseInsensitive(t *testing.T) {
	lower, err := Decode("c:01;p:10,90;t:5@")
	if err != nil {
		t.Fatalf("Decode(lower) returned error: %v", err)
	}
	upper, err := Decode("C:01;P:10,90;T:5@")
	if err != nil {
		t.Fatalf("Decode(upper) returned error: %v", err)
	}
	if !reflect.DeepEqual(lower, upper) {
		t.Errorf("case-insensitive decode mismatch: %+v vs %+v", lower, upper)
	}
}

func TestDecode_Trailers(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		repeats int
		seconds int
	}{
		{"repeats", "c:01;p:10,90;r:5@", 5, 0},
		{"repeats max", "c:01;p:10,90;r:20@", 20, 0},
		{"repeats leading zero", "c:01;p:10,90;r:020@", 20, 0},
		{"timed", "c:01;p:10,90;t:5@", 0, 5},
		{"timed max", "c:01;p:10,90;t:30@", 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Decode(tt.in)
			if err != nil {
				t.Fatalf("Decode(%q) returned error: %v", tt.in, err)
			}
			if cmd.Repeats != tt.repeats || cmd.Seconds != tt.seconds {
				t.Errorf("got repeats=%d seconds=%d, want repeats=%d seconds=%d",
					cmd.Repeats, cmd.Seconds, tt.repeats, tt.seconds)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"too short", "c:0;p:1,9@", ErrTooShort},
		{"one below minimum", "c:01;p:1,90@", ErrTooShort},
		{"no terminator", "c:01;p:10,90!", ErrNoTerminator},
		{"one field", "c:01p:10,9000@", ErrFieldCount},
		{"four fields", "c:01;p:10,90;r:1;t:1@", ErrFieldCount},
		{"trailer unknown name", "c:01;p:10,90;x:5@", ErrTrailer},
		{"trailer no colon", "c:01;p:10,90;r55@", ErrTrailer},
		{"trailer two colons", "c:01;p:10,90;r:1:2@", ErrTrailer},
		{"trailer too long", "c:01;p:10,90;r:1000@", ErrTrailer},
		{"trailer not a number", "c:01;p:10,90;r:x@", ErrTrailer},
		{"repeats zero", "c:01;p:10,90;r:0@", ErrTrailer},
		{"repeats over limit", "c:01;p:10,90;r:21@", ErrTrailer},
		{"timed zero", "c:01;p:10,90;t:0@", ErrTrailer},
		{"timed over limit", "c:01;p:10,90;t:31@", ErrTrailer},
		{"pulse wrong name", "c:01;q:10,90@", ErrPulseField},
		{"pulse no colon", "c:01;p10,90,400@", ErrPulseField},
		{"pulse empty value", "c:01;p:10,,90@", ErrPulseField},
		{"pulse zero", "c:01;p:0,90@", ErrPulseField},
		{"pulse negative", "c:01;p:-10,90@", ErrPulseField},
		{"pulse over limit", "c:01;p:100001,90@", ErrPulseField},
		{"pulse ten values", "c:01;p:1,2,3,4,5,6,7,8,9,10@", ErrPulseField},
		{"interior terminator", "c:01;p:10@,90@", ErrPulseField},
		{"type wrong name", "x:01;p:10,90@", ErrTypeField},
		{"type no colon", "c01oo;p:10,90@", ErrTypeField},
		{"type empty", "c:;p:10,90,30@", ErrTypeField},
		{"type non-digit", "c:0a;p:10,90@", ErrTypeField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			if err == nil {
				t.Fatalf("Decode(%q) succeeded, want %v", tt.in, tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%q) = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

// Field validation runs right to left, so a broken trailer masks a broken
// pulse field, which in turn masks a broken type field.
func TestDecode_ReversePositionalOrder(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"trailer reported before pulse field", "c:01;p:bad,90;x:5@", ErrTrailer},
		{"trailer reported before type field", "c:ZZ;p:10,90;r:0@", ErrTrailer},
		{"pulse field reported before type field", "c:ZZ;p:bad,90;r:5@", ErrPulseField},
		{"pulse field reported before type field, no trailer", "c:ZZ;p:bad,90@", ErrPulseField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%q) = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestDecode_BoundaryPulseLength(t *testing.T) {
	// The decoder accepts the inclusive maximum; rejecting it at transmit
	// time is the validator's call.
	cmd, err := Decode("c:01;p:100000,90@")
	if err != nil {
		t.Fatalf("Decode returned error for max pulse length: %v", err)
	}
	if cmd.Lengths[0] != MaxPulseLength {
		t.Errorf("Lengths[0] = %d, want %d", cmd.Lengths[0], MaxPulseLength)
	}
}

func TestDecode_NineLengthValues(t *testing.T) {
	cmd, err := Decode("c:08;p:1,2,3,4,5,6,7,8,9@")
	if err != nil {
		t.Fatalf("Decode returned error for nine pulse lengths: %v", err)
	}
	if len(cmd.Lengths) != 9 {
		t.Errorf("len(Lengths) = %d, want 9", len(cmd.Lengths))
	}
}

func TestDecode_Pure(t *testing.T) {
	in := strings.Clone(longCode)
	first, err1 := Decode(in)
	second, err2 := Decode(in)
	if err1 != nil || err2 != nil {
		t.Fatalf("Decode returned errors: %v, %v", err1, err2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical input produced different commands")
	}
}
