package picode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Decode failure kinds. Decode wraps them with positional detail; match
// with errors.Is.
var (
	ErrTooShort     = errors.New("picode: below minimum length")
	ErrNoTerminator = errors.New("picode: missing @ terminator")
	ErrFieldCount   = errors.New("picode: field count must be 2 or 3")
	ErrTrailer      = errors.New("picode: invalid trailer field")
	ErrPulseField   = errors.New("picode: invalid pulse length field")
	ErrTypeField    = errors.New("picode: invalid pulse type field")
)

// Decode parses a picode string into a Command. Matching is
// case-insensitive. On failure no partial command is returned.
//
// Fields are validated in reverse positional order: the optional trailer
// first, then the pulse length table, then the pulse type sequence. For
// malformed multi-field input the reported error is therefore the rightmost
// broken field.
func Decode(text string) (Command, error) {
	if len(text) < MinLength {
		return Command{}, fmt.Errorf("%w: got %d bytes, want at least %d", ErrTooShort, len(text), MinLength)
	}

	s := strings.ToLower(text)
	if s[len(s)-1] != '@' {
		return Command{}, ErrNoTerminator
	}
	s = s[:len(s)-1]

	fields := strings.Split(s, ";")
	if len(fields) < 2 || len(fields) > 3 {
		return Command{}, fmt.Errorf("%w: got %d", ErrFieldCount, len(fields))
	}

	var cmd Command

	if len(fields) == 3 {
		if err := parseTrailer(fields[2], &cmd); err != nil {
			return Command{}, err
		}
	}

	lengths, err := parseLengths(fields[1])
	if err != nil {
		return Command{}, err
	}
	cmd.Lengths = lengths

	types, err := parseTypes(fields[0])
	if err != nil {
		return Command{}, err
	}
	cmd.Types = types

	return cmd, nil
}

// parseTrailer handles the optional third field, "r:<repeats>" or
// "t:<seconds>". The raw field is 3 to 5 bytes ("r:1" up to "t:30" with
// leading zeros allowed).
func parseTrailer(field string, cmd *Command) error {
	if len(field) < 3 || len(field) > 5 {
		return fmt.Errorf("%w: %q", ErrTrailer, field)
	}
	parts := strings.Split(field, ":")
	if len(parts) != 2 {
		return fmt.Errorf("%w: %q", ErrTrailer, field)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n <= 0 {
		return fmt.Errorf("%w: %q", ErrTrailer, field)
	}
	switch parts[0] {
	case "r":
		if n > MaxTxRepeats {
			return fmt.Errorf("%w: repeats %d exceeds %d", ErrTrailer, n, MaxTxRepeats)
		}
		cmd.Repeats = n
	case "t":
		if n > MaxTParameter {
			return fmt.Errorf("%w: duration %ds exceeds %ds", ErrTrailer, n, MaxTParameter)
		}
		cmd.Seconds = n
	default:
		return fmt.Errorf("%w: %q", ErrTrailer, field)
	}
	return nil
}

// parseLengths handles the second field, "p:" followed by 1..9
// comma-separated pulse lengths, each in (0, MaxPulseLength].
func parseLengths(field string) ([]int, error) {
	parts := strings.Split(field, ":")
	if len(parts) != 2 || parts[0] != "p" {
		return nil, fmt.Errorf("%w: %q", ErrPulseField, field)
	}
	values := strings.Split(parts[1], ",")
	if len(values) >= MaxPulseTypes {
		return nil, fmt.Errorf("%w: %d values, max %d", ErrPulseField, len(values), MaxPulseTypes-1)
	}
	lengths := make([]int, 0, len(values))
	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > MaxPulseLength {
			return nil, fmt.Errorf("%w: value %q", ErrPulseField, v)
		}
		lengths = append(lengths, n)
	}
	return lengths, nil
}

// parseTypes handles the first field, "c:" followed by one or more decimal
// digits. An odd digit count is normalized by duplicating the last accepted
// digit value.
func parseTypes(field string) ([]int, error) {
	parts := strings.Split(field, ":")
	if len(parts) != 2 || parts[0] != "c" {
		return nil, fmt.Errorf("%w: %q", ErrTypeField, field)
	}
	digits := parts[1]
	if len(digits) == 0 {
		return nil, fmt.Errorf("%w: empty type sequence", ErrTypeField)
	}
	types := make([]int, 0, len(digits)+1)
	last := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[i]) - '0'
		if d < 0 || d >= MaxPulseTypes {
			return nil, fmt.Errorf("%w: byte %q at %d", ErrTypeField, digits[i], i)
		}
		last = d
		types = append(types, d)
	}
	if len(types)%2 != 0 {
		types = append(types, last)
	}
	return types, nil
}
