package flock

import "os"
import "path/filepath"
import "sync"
import "testing"

import "github.com/stretchr/testify/require"

import "github.com/bnclabs/govmalloc/api"

var _ api.Locker = (*Mutex)(nil)

func TestLockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	m, err := New(path)
	require.NoError(t, err)

	m.Lock()
	m.Unlock()
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSimultaneousLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	m, err := New(path)
	require.NoError(t, err)

	counter, wg := 0, sync.WaitGroup{}
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 400, counter)
}
