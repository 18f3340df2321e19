package vmalloc

import "sync"
import "sync/atomic"
import "unsafe"

// testosmem in-process rendition of api.OSMemory{}, backed by heap
// slices. Counts OS traffic so tests can assert commit/decommit and
// alloc/free behaviour.
type testosmem struct {
	mu         sync.Mutex
	reserved   []byte
	base       uintptr
	committed  map[uintptr]int64
	blocks     map[uintptr][]byte
	pooled     map[int64]bool
	failalloc  bool // make AllocBlock return nil
	failcommit bool // make Commit return false

	ncommit   int64
	ndecommit int64
	nalloc    int64
	nfree     int64
}

func newtestos() *testosmem {
	return &testosmem{
		committed: make(map[uintptr]int64),
		blocks:    make(map[uintptr][]byte),
		pooled:    make(map[int64]bool),
	}
}

func (osm *testosmem) ReserveRange(size int64) (uintptr, error) {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	osm.reserved = make([]byte, size)
	osm.base = uintptr(unsafe.Pointer(&osm.reserved[0]))
	return osm.base, nil
}

func (osm *testosmem) Commit(base uintptr, size int64) bool {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	if osm.failcommit {
		return false
	}
	if _, ok := osm.committed[base]; ok {
		panic("testosmem: commit over committed range")
	}
	osm.committed[base] = size
	osm.ncommit++
	return true
}

func (osm *testosmem) Decommit(base uintptr, size int64) {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	if _, ok := osm.committed[base]; !ok {
		panic("testosmem: decommit of uncommitted range")
	}
	delete(osm.committed, base)
	osm.ndecommit++
}

func (osm *testosmem) ReleaseRange(base uintptr, size int64) {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	osm.reserved, osm.base = nil, 0
}

func (osm *testosmem) AllocBlock(size int64) unsafe.Pointer {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	if osm.failalloc {
		return nil
	}
	block := make([]byte, size)
	ptr := unsafe.Pointer(&block[0])
	osm.blocks[uintptr(ptr)] = block
	osm.nalloc++
	return ptr
}

func (osm *testosmem) FreeBlock(ptr unsafe.Pointer, size int64) {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	if _, ok := osm.blocks[uintptr(ptr)]; !ok {
		panic("testosmem: freeing unknown block")
	}
	delete(osm.blocks, uintptr(ptr))
	osm.nfree++
}

func (osm *testosmem) HasPoolForSize(size int64) bool {
	osm.mu.Lock()
	defer osm.mu.Unlock()
	return osm.pooled[size]
}

// tracklock external lock double, verifies that every unlock window
// is closed again.
type tracklock struct {
	mu       sync.Mutex
	nlocks   int64
	nunlocks int64
}

func (lck *tracklock) Lock() {
	lck.mu.Lock()
	atomic.AddInt64(&lck.nlocks, 1)
}

func (lck *tracklock) Unlock() {
	atomic.AddInt64(&lck.nunlocks, 1)
	lck.mu.Unlock()
}

func (lck *tracklock) balanced() bool {
	return atomic.LoadInt64(&lck.nlocks) == atomic.LoadInt64(&lck.nunlocks)
}
