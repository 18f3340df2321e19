//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

// Package osmem implements the api.OSMemory collaborator over the
// platform's virtual-memory primitives, anonymous memory maps on
// POSIX systems and VirtualAlloc on windows.
package osmem

import "sync"
import "unsafe"

import "golang.org/x/sys/unix"

// Memory implement api.OSMemory{} over the mmap(2) family of calls.
// Safe for concurrent use, allocators call it with their external
// lock dropped.
type Memory struct {
	mu     sync.Mutex
	ranges map[uintptr][]byte // live mappings by base address
}

// New create an OS memory collaborator.
func New() *Memory {
	return &Memory{ranges: make(map[uintptr][]byte)}
}

// ReserveRange implement api.OSMemory{} interface. The range is
// mapped PROT_NONE, address space only, no physical backing.
func (m *Memory) ReserveRange(size int64) (uintptr, error) {
	buf, err := unix.Mmap(
		-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}
	base := uintptr(unsafe.Pointer(&buf[0]))
	m.mu.Lock()
	m.ranges[base] = buf
	m.mu.Unlock()
	return base, nil
}

// Commit implement api.OSMemory{} interface.
func (m *Memory) Commit(base uintptr, size int64) bool {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	return unix.Mprotect(buf, unix.PROT_READ|unix.PROT_WRITE) == nil
}

// Decommit implement api.OSMemory{} interface. Pages go back to the
// kernel, a later Commit observes zero filled memory.
func (m *Memory) Decommit(base uintptr, size int64) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
	if err := unix.Madvise(buf, unix.MADV_DONTNEED); err != nil {
		panic(err)
	}
	if err := unix.Mprotect(buf, unix.PROT_NONE); err != nil {
		panic(err)
	}
}

// ReleaseRange implement api.OSMemory{} interface.
func (m *Memory) ReleaseRange(base uintptr, size int64) {
	m.mu.Lock()
	buf, ok := m.ranges[base]
	delete(m.ranges, base)
	m.mu.Unlock()
	if !ok {
		panic("osmem: releasing unknown range")
	}
	if err := unix.Munmap(buf); err != nil {
		panic(err)
	}
}

// AllocBlock implement api.OSMemory{} interface.
func (m *Memory) AllocBlock(size int64) unsafe.Pointer {
	buf, err := unix.Mmap(
		-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil
	}
	ptr := unsafe.Pointer(&buf[0])
	m.mu.Lock()
	m.ranges[uintptr(ptr)] = buf
	m.mu.Unlock()
	return ptr
}

// FreeBlock implement api.OSMemory{} interface.
func (m *Memory) FreeBlock(ptr unsafe.Pointer, size int64) {
	m.mu.Lock()
	buf, ok := m.ranges[uintptr(ptr)]
	delete(m.ranges, uintptr(ptr))
	m.mu.Unlock()
	if !ok {
		panic("osmem: freeing unknown block")
	}
	if err := unix.Munmap(buf); err != nil {
		panic(err)
	}
}

// HasPoolForSize implement api.OSMemory{} interface. POSIX systems
// expose no native size pools.
func (m *Memory) HasPoolForSize(size int64) bool {
	return false
}
