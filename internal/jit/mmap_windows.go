//go:build windows

package jit

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	memCommit            = 0x1000
	memReserve           = 0x2000
	memRelease           = 0x8000
	pageExecuteReadWrite = 0x40
)

var (
	kernel32    = windows.NewLazySystemDLL("kernel32.dll")
	virtualAlloc = kernel32.NewProc("VirtualAlloc")
	virtualFree  = kernel32.NewProc("VirtualFree")
)

// allocExecutable reserves and commits size bytes of page-aligned,
// read/write/execute memory (Windows).
func allocExecutable(size int) ([]byte, error) {
	const pageSize = 4096
	aligned := (size + pageSize - 1) &^ (pageSize - 1)

	addr, _, err := virtualAlloc.Call(
		0,
		uintptr(aligned),
		memCommit|memReserve,
		pageExecuteReadWrite,
	)
	if addr == 0 {
		return nil, err
	}

	return (*[1 << 30]byte)(unsafe.Pointer(addr))[:aligned:aligned], nil
}

// freeExecutable releases memory previously returned by allocExecutable.
func freeExecutable(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&mem[0]))
	_, _, err := virtualFree.Call(addr, 0, memRelease)
	return err
}
