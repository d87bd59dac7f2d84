//go:build !linux

package affinity

// Isolate is a no-op off linux; CPU isolation needs the kernel's isolcpus
// support.
func Isolate() (string, error) {
	return "unsupported", nil
}
