//go:build windows

package flock

import "sync"
import "syscall"
import "unsafe"

var (
	modkernel32      = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = modkernel32.NewProc("LockFileEx")
	procUnlockFileEx = modkernel32.NewProc("UnlockFileEx")
)

func lockFileEx(
	h syscall.Handle, flags, reserved, locklow, lockhigh uint32,
	ol *syscall.Overlapped) (err error) {

	r1, _, e1 := syscall.Syscall6(
		procLockFileEx.Addr(), 6, uintptr(h), uintptr(flags),
		uintptr(reserved),
		uintptr(locklow), uintptr(lockhigh), uintptr(unsafe.Pointer(ol)))

	if r1 == 0 {
		if e1 != 0 {
			err = error(e1)
		} else {
			err = syscall.EINVAL
		}
	}
	return
}

func unlockFileEx(
	h syscall.Handle, reserved, locklow, lockhigh uint32,
	ol *syscall.Overlapped) (err error) {

	r1, _, e1 := syscall.Syscall6(procUnlockFileEx.Addr(), 5, uintptr(h),
		uintptr(reserved),
		uintptr(locklow), uintptr(lockhigh), uintptr(unsafe.Pointer(ol)), 0)

	if r1 == 0 {
		if e1 != 0 {
			err = error(e1)
		} else {
			err = syscall.EINVAL
		}
	}
	return
}

// Mutex is equivalent to sync.Mutex, but synchronizes across
// processes. Satisfies api.Locker.
type Mutex struct {
	mu sync.Mutex
	fd syscall.Handle
}

// New create a new instance of multi-process mutex backed by
// `filename`.
func New(filename string) (*Mutex, error) {
	fd, err := syscall.CreateFile(
		&(syscall.StringToUTF16(filename)[0]),
		syscall.GENERIC_READ|syscall.GENERIC_WRITE,
		syscall.FILE_SHARE_READ|syscall.FILE_SHARE_WRITE,
		nil, syscall.OPEN_ALWAYS, syscall.FILE_ATTRIBUTE_NORMAL, 0)

	if err != nil {
		return nil, err
	}
	return &Mutex{fd: fd}, nil
}

// Lock locks m. If the lock is already in use, the calling goroutine
// blocks until the mutex is available.
func (m *Mutex) Lock() {
	m.mu.Lock()
	var ol syscall.Overlapped
	err := lockFileEx(m.fd, 2 /*lockfileExclusiveLock*/, 0, 1, 0, &ol)
	if err != nil {
		panic(err)
	}
}

// Unlock unlocks m. It is a run-time error if m is not locked on
// entry to Unlock.
func (m *Mutex) Unlock() {
	var ol syscall.Overlapped
	if err := unlockFileEx(m.fd, 0, 1, 0, &ol); err != nil {
		panic(err)
	}
	m.mu.Unlock()
}
