//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

// Package flock supplies a file backed mutex that synchronizes
// across processes. Allocator state living in shared memory can use
// it as the external lock expected by the vmalloc package.
package flock

import "sync"
import "syscall"

// Mutex is equivalent to sync.Mutex, but synchronizes across
// processes. Satisfies api.Locker.
type Mutex struct {
	mu sync.Mutex
	fd int
}

// New create a new instance of multi-process mutex backed by
// `filename`.
func New(filename string) (*Mutex, error) {
	fd, err := syscall.Open(filename, syscall.O_CREAT|syscall.O_RDONLY, 0750)
	if err != nil {
		return nil, err
	}
	return &Mutex{fd: fd}, nil
}

// Lock locks m. If the lock is already in use, the calling goroutine
// blocks until the mutex is available.
func (m *Mutex) Lock() {
	m.mu.Lock()
	if err := syscall.Flock(m.fd, syscall.LOCK_EX); err != nil {
		panic(err)
	}
}

// Unlock unlocks m. It is a run-time error if m is not locked on
// entry to Unlock.
func (m *Mutex) Unlock() {
	if err := syscall.Flock(m.fd, syscall.LOCK_UN); err != nil {
		panic(err)
	}
	m.mu.Unlock()
}
