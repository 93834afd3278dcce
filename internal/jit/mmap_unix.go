//go:build !windows

package jit

import (
	"golang.org/x/sys/unix"
)

// allocExecutable maps size bytes of anonymous memory that is readable,
// writable, and executable (Unix/Linux/macOS), so freshly written machine
// code can be jumped into without a separate mprotect call. unix.Mmap
// already rounds the request up to a whole number of pages and hands back
// a ready-to-use []byte, so there is no manual page-alignment arithmetic
// or unsafe pointer-to-slice cast to do here.
func allocExecutable(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
}

// freeExecutable releases memory previously returned by allocExecutable.
func freeExecutable(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}
