//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package osmem

import "testing"
import "unsafe"

import "github.com/stretchr/testify/require"

import "github.com/bnclabs/govmalloc/api"

var _ api.OSMemory = New()

func TestAllocFreeBlock(t *testing.T) {
	m := New()
	ptr := m.AllocBlock(8192)
	require.NotNil(t, ptr)

	buf := unsafe.Slice((*byte)(ptr), 8192)
	buf[0], buf[8191] = 0xde, 0xad
	require.EqualValues(t, 0xde, buf[0])
	require.EqualValues(t, 0xad, buf[8191])

	m.FreeBlock(ptr, 8192)
	require.Empty(t, m.ranges)
}

func TestReserveCommitDecommit(t *testing.T) {
	m := New()
	base, err := m.ReserveRange(1 << 20)
	require.NoError(t, err)
	require.NotZero(t, base)

	require.True(t, m.Commit(base, 8192))
	buf := unsafe.Slice((*byte)(unsafe.Pointer(base)), 8192)
	buf[100] = 42
	require.EqualValues(t, 42, buf[100])

	m.Decommit(base, 8192)
	require.True(t, m.Commit(base, 8192))
	buf[100] = 43
	require.EqualValues(t, 43, buf[100])

	m.ReleaseRange(base, 1<<20)
	require.Empty(t, m.ranges)
}

func TestCommitSlice(t *testing.T) {
	// commit a page in the middle of the reservation.
	m := New()
	base, err := m.ReserveRange(1 << 20)
	require.NoError(t, err)
	defer m.ReleaseRange(base, 1<<20)

	require.True(t, m.Commit(base+(512*1024), 4096))
	buf := unsafe.Slice((*byte)(unsafe.Pointer(base+(512*1024))), 4096)
	buf[0] = 1
	require.EqualValues(t, 1, buf[0])
}

func TestHasPoolForSize(t *testing.T) {
	require.False(t, New().HasPoolForSize(4096))
}

func TestFreeUnknown(t *testing.T) {
	m := New()
	require.Panics(t, func() {
		var x byte
		m.FreeBlock(unsafe.Pointer(&x), 4096)
	})
	require.Panics(t, func() {
		m.ReleaseRange(uintptr(12345), 4096)
	})
}
