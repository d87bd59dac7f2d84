//go:build linux

// Package affinity pins the daemon to isolated CPUs when the kernel
// provides them.
package affinity

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Isolate moves the process onto CPUs that init cannot schedule onto: the
// set carved out with the isolcpus= boot parameter. Bit-banged pulse trains
// jitter far less on a core the scheduler leaves alone. Returns the CPU
// list it pinned to, or "none" when the kernel gave nothing away.
func Isolate() (string, error) {
	online, err := onlineCPUs()
	if err != nil {
		return "", err
	}

	var initSet unix.CPUSet
	if err := unix.SchedGetaffinity(1, &initSet); err != nil {
		return "", fmt.Errorf("affinity of pid 1: %w", err)
	}

	var isolated unix.CPUSet
	cpus := make([]string, 0, 4)
	for cpu := 0; cpu < online; cpu++ {
		if !initSet.IsSet(cpu) {
			isolated.Set(cpu)
			cpus = append(cpus, strconv.Itoa(cpu))
		}
	}
	if len(cpus) == 0 {
		return "none", nil
	}

	if err := unix.SchedSetaffinity(0, &isolated); err != nil {
		return "", fmt.Errorf("set affinity: %w", err)
	}
	return strings.Join(cpus, ","), nil
}

func onlineCPUs() (int, error) {
	data, err := os.ReadFile("/sys/devices/system/cpu/online")
	if err != nil {
		return 0, fmt.Errorf("read online cpus: %w", err)
	}
	n, err := parseOnline(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse online cpus: %w", err)
	}
	return n, nil
}

// parseOnline reads the kernel's range-list format ("0-3", "0,2-3") and
// returns the highest CPU index plus one.
func parseOnline(s string) (int, error) {
	max := -1
	for _, part := range strings.Split(s, ",") {
		lo, hi, found := strings.Cut(part, "-")
		last := lo
		if found {
			last = hi
		}
		n, err := strconv.Atoi(last)
		if err != nil {
			return 0, fmt.Errorf("bad cpu range %q", part)
		}
		if n > max {
			max = n
		}
	}
	if max < 0 {
		return 0, fmt.Errorf("empty cpu list")
	}
	return max + 1, nil
}
