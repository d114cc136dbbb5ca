package tpu

import "runtime"

// cpuRelax yields the current goroutine as a stand-in for a CPU-relax
// hint in the TIU polling loop.
func cpuRelax() {
	runtime.Gosched()
}
