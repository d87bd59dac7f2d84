//go:build !linux

package gpio

import (
	"errors"

	"github.com/msageha/ookd/internal/picode"
)

var errUnsupported = errors.New("gpio: transmitter only supported on linux")

type Driver struct{}

func Open() (*Driver, error) { return nil, errUnsupported }

func (d *Driver) Name() string { return "gpio" }

func (d *Driver) Close() error { return nil }

func (d *Driver) Transmit(channel int, train picode.Train, repeats int) (int, error) {
	return 0, errUnsupported
}
