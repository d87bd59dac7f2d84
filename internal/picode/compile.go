package picode

import (
	"errors"
	"fmt"
)

// ErrIndexRange reports a pulse type index with no matching pulse length
// entry. Decode does not catch this: type digits are only range-checked
// against [0, MaxPulseTypes), not against the table actually supplied.
var ErrIndexRange = errors.New("picode: pulse type index out of range")

// Compile expands a command into its pulse train, looking up each type index
// in the length table in order. The train has the same length as cmd.Types.
func Compile(cmd Command) (Train, error) {
	train := make(Train, 0, len(cmd.Types))
	for i, idx := range cmd.Types {
		if idx >= len(cmd.Lengths) {
			return nil, fmt.Errorf("%w: type %d at %d, table has %d entries", ErrIndexRange, idx, i, len(cmd.Lengths))
		}
		train = append(train, cmd.Lengths[idx])
	}
	return train, nil
}
