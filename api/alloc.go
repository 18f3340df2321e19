package api

import "unsafe"

// OSMemory interface to the operating system's virtual-memory
// primitives. Allocators drop their external lock around these calls,
// so implementations shall be safe for concurrent invocation.
type OSMemory interface {
	// ReserveRange reserve `size` bytes of contiguous virtual address
	// space without physical backing.
	ReserveRange(size int64) (base uintptr, err error)

	// Commit back the range [base, base+size) with physical memory.
	// Range should fall within an earlier reservation.
	Commit(base uintptr, size int64) bool

	// Decommit release the physical backing for the range, keeping
	// the address-space reservation intact.
	Decommit(base uintptr, size int64)

	// ReleaseRange return the entire reservation to the OS.
	ReleaseRange(base uintptr, size int64)

	// AllocBlock allocate a committed block of `size` bytes, outside
	// any reservation. Returns nil when OS is out of memory.
	AllocBlock(size int64) unsafe.Pointer

	// FreeBlock return a block obtained from AllocBlock.
	FreeBlock(ptr unsafe.Pointer, size int64)

	// HasPoolForSize return whether the OS already pools allocations
	// of exactly `size` bytes, in which case caching them again is
	// wasted work.
	HasPoolForSize(size int64) bool
}

// VMallocer interface for virtual-memory allocators, consumed by the
// owning general purpose allocator. Methods are not thread safe, the
// caller shall hold one external lock across every call and supply it
// as `lck`, or pass nil to keep the lock held through system calls.
type VMallocer interface {
	// Alloc a chunk of `size` bytes. `hint` segregates allocations
	// with different lifetimes into independent pools. Returns nil
	// when out of memory.
	Alloc(size, hint int64, lck Locker) unsafe.Pointer

	// Free chunk allocated with the same `size` and `hint`.
	Free(ptr unsafe.Pointer, size int64, lck Locker)

	// FreeAll flush cached blocks back to the OS.
	FreeAll(lck Locker)

	// Info of memory accounting for this allocator.
	Info() (reserved, committed, cached int64)

	// Release the allocator and all its OS resources.
	Release(lck Locker)
}

// Locker is the external mutex owned by the caller. It is never
// acquired by allocator entry points, only dropped and re-acquired
// around blocking OS calls.
type Locker interface {
	Lock()
	Unlock()
}
