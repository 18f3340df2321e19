//go:build windows

package osmem

import "unsafe"

import "golang.org/x/sys/windows"

// Memory implement api.OSMemory{} over the VirtualAlloc family of
// calls. Safe for concurrent use, allocators call it with their
// external lock dropped.
type Memory struct{}

// New create an OS memory collaborator.
func New() *Memory {
	return &Memory{}
}

// ReserveRange implement api.OSMemory{} interface.
func (m *Memory) ReserveRange(size int64) (uintptr, error) {
	base, err := windows.VirtualAlloc(
		0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, err
	}
	return base, nil
}

// Commit implement api.OSMemory{} interface.
func (m *Memory) Commit(base uintptr, size int64) bool {
	_, err := windows.VirtualAlloc(
		base, uintptr(size), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err == nil
}

// Decommit implement api.OSMemory{} interface.
func (m *Memory) Decommit(base uintptr, size int64) {
	err := windows.VirtualFree(base, uintptr(size), windows.MEM_DECOMMIT)
	if err != nil {
		panic(err)
	}
}

// ReleaseRange implement api.OSMemory{} interface. VirtualFree wants
// size zero when releasing a reservation.
func (m *Memory) ReleaseRange(base uintptr, size int64) {
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		panic(err)
	}
}

// AllocBlock implement api.OSMemory{} interface.
func (m *Memory) AllocBlock(size int64) unsafe.Pointer {
	base, err := windows.VirtualAlloc(
		0, uintptr(size),
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil
	}
	return unsafe.Pointer(base)
}

// FreeBlock implement api.OSMemory{} interface.
func (m *Memory) FreeBlock(ptr unsafe.Pointer, size int64) {
	err := windows.VirtualFree(uintptr(ptr), 0, windows.MEM_RELEASE)
	if err != nil {
		panic(err)
	}
}

// HasPoolForSize implement api.OSMemory{} interface.
func (m *Memory) HasPoolForSize(size int64) bool {
	return false
}
