// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

// SetAffinity pins the calling OS thread to one logical CPU. The caller must
// hold runtime.LockOSThread, otherwise the pin applies to whatever goroutine
// the runtime schedules on that thread next.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// Allowed returns the logical CPUs the calling thread may run on.
func Allowed() ([]int, error) {
	return allowedPlatform()
}

// Restore replaces the calling thread's CPU set with cpus.
func Restore(cpus []int) error {
	return restorePlatform(cpus)
}
