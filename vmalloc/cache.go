// Functions and methods are not thread safe.

package vmalloc

import "unsafe"

import s "github.com/bnclabs/gosettings"
import "github.com/bnclabs/govmalloc/api"

// freeblock one OS allocated block currently not in use, tracked by
// its exact byte size.
type freeblock struct {
	ptr  unsafe.Pointer
	size int64
}

// Pagecache bounded cache of recently freed OS blocks, retained
// instead of returned to the OS. Blocks are cached and served by
// exact size only, a cached block is never handed out for a smaller
// request, so the caller's size accounting never drifts from the
// usable size. Eviction is oldest first over a small fixed capacity
// array.
type Pagecache struct {
	// 64-bit aligned stats
	cachedsize int64

	os     api.OSMemory
	blocks []freeblock // oldest first
	n      int64
	// configuration
	maxsize    int64
	maxentries int64
}

// newpagecache create a page-cache bounded by settings-parameters
// `maxbytes` and `maxentries`.
func newpagecache(osm api.OSMemory, setts s.Settings) *Pagecache {
	pcache := &Pagecache{
		os:         osm,
		maxsize:    setts.Int64("maxbytes"),
		maxentries: setts.Int64("maxentries"),
	}
	if pcache.maxsize <= 0 {
		panicerr("pagecache: maxbytes should be positive")
	} else if pcache.maxentries <= 0 {
		panicerr("pagecache: maxentries should be positive")
	}
	pcache.blocks = make([]freeblock, pcache.maxentries)
	return pcache
}

//---- operations

// Alloc a block of exactly `size` bytes, `size` shall be a multiple
// of Pagesize. Served from the cache on an exact size match, from the
// OS otherwise. Returns nil only when the OS is out of memory even
// after flushing the cache.
func (pcache *Pagecache) Alloc(size int64, lck api.Locker) unsafe.Pointer {
	if (size % Pagesize) != 0 {
		panicerr("pagecache: size %v not multiple of %v", size, Pagesize)
	}
	if pcache.os.HasPoolForSize(size) || size > (pcache.maxsize/4) {
		return pcache.osalloc(size, lck)
	}
	for i := int64(0); i < pcache.n; i++ {
		if pcache.blocks[i].size == size {
			ptr := pcache.blocks[i].ptr
			copy(pcache.blocks[i:pcache.n-1], pcache.blocks[i+1:pcache.n])
			pcache.n--
			pcache.blocks[pcache.n] = freeblock{}
			pcache.cachedsize -= size
			return ptr
		}
	}
	if ptr := pcache.osalloc(size, lck); ptr != nil {
		return ptr
	}
	// OS under pressure, give back everything cached and try once more.
	warnf("pagecache: OS under pressure, flushing %v cached blocks\n", pcache.n)
	pcache.evictall(lck)
	return pcache.osalloc(size, lck)
}

// Free block of exactly `size` bytes back to the cache, evicting
// oldest blocks when either cache limit stands in the way. Pool
// backed sizes and blocks larger than a quarter of the byte limit go
// straight to the OS.
func (pcache *Pagecache) Free(ptr unsafe.Pointer, size int64, lck api.Locker) {
	if ptr == nil {
		panicerr("pagecache.Free(): nil pointer")
	}
	if pcache.os.HasPoolForSize(size) || size > (pcache.maxsize/4) {
		unlocked(lck, func() { pcache.os.FreeBlock(ptr, size) })
		return
	}
	for pcache.n == pcache.maxentries || (pcache.cachedsize+size) > pcache.maxsize {
		pcache.evictoldest(lck)
	}
	pcache.blocks[pcache.n] = freeblock{ptr: ptr, size: size}
	pcache.n++
	pcache.cachedsize += size
}

// FreeAll give every cached block back to the OS and reset counters.
func (pcache *Pagecache) FreeAll(lck api.Locker) {
	pcache.evictall(lck)
}

//---- statistics

// Info of cache accounting, cached bytes and entries with their
// configured limits.
func (pcache *Pagecache) Info() (cached, maxbytes, entries, maxentries int64) {
	return pcache.cachedsize, pcache.maxsize, pcache.n, pcache.maxentries
}

//---- local functions

func (pcache *Pagecache) osalloc(size int64, lck api.Locker) unsafe.Pointer {
	var ptr unsafe.Pointer
	unlocked(lck, func() { ptr = pcache.os.AllocBlock(size) })
	return ptr
}

// detach the oldest block under the lock, free it to the OS with the
// lock dropped.
func (pcache *Pagecache) evictoldest(lck api.Locker) {
	block := pcache.blocks[0]
	if block.ptr == nil {
		panicerr("pagecache: nil block while evicting") // memory corruption
	}
	copy(pcache.blocks[:pcache.n-1], pcache.blocks[1:pcache.n])
	pcache.n--
	pcache.blocks[pcache.n] = freeblock{}
	pcache.cachedsize -= block.size
	unlocked(lck, func() { pcache.os.FreeBlock(block.ptr, block.size) })
}

func (pcache *Pagecache) evictall(lck api.Locker) {
	for pcache.n > 0 {
		pcache.evictoldest(lck)
	}
}

func (pcache *Pagecache) validate() {
	if pcache.n > pcache.maxentries {
		panicerr("pagecache: %v entries exceed %v", pcache.n, pcache.maxentries)
	}
	cachedsize := int64(0)
	for i := int64(0); i < pcache.n; i++ {
		if pcache.blocks[i].ptr == nil {
			panicerr("pagecache: nil block at %v", i)
		}
		cachedsize += pcache.blocks[i].size
	}
	if cachedsize != pcache.cachedsize {
		fmsg := "pagecache: cachedsize %v, blocks add up to %v"
		panicerr(fmsg, pcache.cachedsize, cachedsize)
	} else if cachedsize > pcache.maxsize {
		panicerr("pagecache: cachedsize %v exceed %v", cachedsize, pcache.maxsize)
	}
}
