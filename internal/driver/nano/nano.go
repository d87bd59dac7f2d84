// Package nano drives a pilight-usb-nano transceiver over a serial port.
//
// The nano speaks the picode text format natively: commands are written to
// the port exactly as they appear on the HTTP API, and received RF traffic
// comes back as '@'-terminated frames.
package nano

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/picode"
)

type Driver struct {
	mu    sync.Mutex
	port  io.ReadWriteCloser
	sleep func(time.Duration)
}

// Open connects to the nano on the given serial device.
func Open(device string, baud int) (*Driver, error) {
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	return New(port), nil
}

// New wraps an already-open port.
func New(port io.ReadWriteCloser) *Driver {
	return &Driver{port: port, sleep: time.Sleep}
}

func (d *Driver) Name() string { return "nano" }

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

// Transmit encodes the train as a picode command and writes it to the nano.
// The device carries its own transmitter, so channel is ignored, and it
// sends no completion acknowledgement, so Transmit waits out the predicted
// air time and reports that.
func (d *Driver) Transmit(channel int, train picode.Train, repeats int) (int, error) {
	if repeats < 1 || repeats > picode.MaxTxRepeats {
		return 0, fmt.Errorf("%w: %d", driver.ErrRepeats, repeats)
	}
	if len(train) < 1 || len(train) > picode.MaxPulseCount {
		return 0, &driver.Error{Code: driver.CodeInvalidCount}
	}
	if len(train)%2 != 0 {
		return 0, &driver.Error{Code: driver.CodeOddTrain}
	}
	for _, pulse := range train {
		if pulse <= 0 || pulse > picode.MaxPulseLength {
			return 0, &driver.Error{Code: driver.CodeInvalidLength}
		}
	}

	code, err := encode(train, repeats)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return 0, driver.ErrClosed
	}
	if _, err := io.WriteString(d.port, code); err != nil {
		return 0, fmt.Errorf("nano: write: %w", err)
	}

	wait := train.Duration() * time.Duration(repeats)
	d.sleep(wait)
	return int(wait / time.Millisecond), nil
}

// encode rebuilds the compact picode form of a train: a table of distinct
// pulse lengths plus one digit per pulse indexing into it. The digit field
// only reaches nine table entries, so trains richer than that cannot be
// sent to the nano.
func encode(train picode.Train, repeats int) (string, error) {
	index := make(map[int]int, picode.MaxPulseTypes)
	cmd := picode.Command{
		Types:   make([]int, 0, len(train)),
		Lengths: make([]int, 0, picode.MaxPulseTypes),
		Repeats: repeats,
	}
	for _, pulse := range train {
		i, ok := index[pulse]
		if !ok {
			if len(cmd.Lengths) == picode.MaxPulseTypes-1 {
				return "", fmt.Errorf("nano: train uses more than %d distinct pulse lengths", picode.MaxPulseTypes-1)
			}
			i = len(cmd.Lengths)
			index[pulse] = i
			cmd.Lengths = append(cmd.Lengths, pulse)
		}
		cmd.Types = append(cmd.Types, i)
	}
	return cmd.String(), nil
}

// Listen reads '@'-terminated frames from the nano and invokes fn for every
// picode candidate found in them. It returns when the port is closed or ctx
// is cancelled; cancellation only takes effect once a pending read finishes,
// so callers shutting down should Close the driver as well.
func (d *Driver) Listen(ctx context.Context, fn func(code string)) error {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port == nil {
		return driver.ErrClosed
	}

	scanner := bufio.NewScanner(port)
	scanner.Split(splitFrames)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, code := range picode.Scan(scanner.Text()) {
			fn(code)
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("nano: read: %w", err)
	}
	return nil
}

// splitFrames tokenizes the serial stream on '@', terminator included, so a
// frame split across reads stays buffered until the device finishes it.
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, '@'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
