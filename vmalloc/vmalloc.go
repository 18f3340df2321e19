// Functions and methods are not thread safe, the caller holds one
// external lock across every entry point and passes it as `lck` so
// that it can be dropped around OS calls, or nil to hold throughout.

package vmalloc

import "fmt"
import "unsafe"

import gohumanize "github.com/dustin/go-humanize"
import s "github.com/bnclabs/gosettings"
import "github.com/bnclabs/govmalloc/api"

// pool one set of state lists per allocation hint. A large page
// belongs to exactly one pool and exactly one of the three lists at
// any time.
type pool struct {
	free      pagelist // fully free, decommitted pages
	usedspace pagelist // partially used pages, ascending base order
	usedfull  pagelist // pages with no free sub-page left
}

// Vmalloc large-page suballocator. Reserves one contiguous address
// range at construction, partitions it into large pages of fixed
// sized sub-pages for the dominant allocation size, and delegates
// every other request to an owned Pagecache. Refer Defaultsettings()
// for settings-parameters and their defaults.
type Vmalloc struct {
	// 64-bit aligned stats
	committed    int64
	suballocated int64

	os    api.OSMemory
	cache *Pagecache
	base  uintptr
	pages []largepage
	pools []pool

	// configuration
	capacity   int64 // reserved address range
	pagesize   int64 // size of one large page
	subsize    int64 // size of one sub-page
	subperpage int64
	npools     int64
	enabled    bool
	dedicated  bool
	logprefix  string
}

// New create a virtual-memory allocator over `osm`, reserving the
// configured address range up front. Large pages start out on the
// free list of pool 0, or split between pool 0 and pool 1 when
// `dedicated` is set. Nothing is committed yet.
func New(name string, osm api.OSMemory, setts s.Settings) *Vmalloc {
	vm := &Vmalloc{
		os:        osm,
		capacity:  setts.Int64("capacity"),
		pagesize:  setts.Int64("pagesize"),
		subsize:   setts.Int64("subsize"),
		npools:    setts.Int64("npools"),
		enabled:   setts.Bool("enabled"),
		dedicated: setts.Bool("dedicated"),
		logprefix: fmt.Sprintf("vmalloc [%v]", name),
	}
	vm.validatesettings()
	vm.subperpage = vm.pagesize / vm.subsize
	vm.cache = newpagecache(osm, setts.Section("cache.").Trim("cache."))

	base, err := osm.ReserveRange(vm.capacity)
	if err != nil {
		panicerr("%v ReserveRange(%v): %v", vm.logprefix, vm.capacity, err)
	}
	vm.base = base

	npages := vm.capacity / vm.pagesize
	vm.pages = make([]largepage, npages)
	vm.pools = make([]pool, vm.npools)
	for i := range vm.pools {
		vm.pools[i] = pool{
			free:      pagelist{head: nilpage},
			usedspace: pagelist{head: nilpage},
			usedfull:  pagelist{head: nilpage},
		}
	}
	// seed free lists in ascending base order.
	for h := int32(npages - 1); h >= 0; h-- {
		poolidx := int64(0)
		if vm.dedicated && int64(h) >= (npages/2) {
			poolidx = 1
		}
		page := &vm.pages[h]
		page.base = base + uintptr(int64(h)*vm.pagesize)
		page.nfree = vm.subperpage
		page.freemap = newfreemap(vm.subperpage)
		page.pool = poolidx
		vm.pools[poolidx].free.push(vm.pages, h)
	}
	fmsg := "%v reserved %v as %v large pages of %v sub-pages each\n"
	infof(fmsg, vm.logprefix, gohumanize.Bytes(uint64(vm.capacity)),
		npages, vm.subperpage)
	return vm
}

func (vm *Vmalloc) validatesettings() {
	npages := int64(0)
	if vm.capacity <= 0 {
		panicerr("%v capacity should be positive", vm.logprefix)
	} else if vm.capacity > Maxreserve {
		panicerr("%v capacity exceeds %v", vm.logprefix, Maxreserve)
	} else if vm.pagesize <= 0 || (vm.capacity%vm.pagesize) != 0 {
		fmsg := "%v capacity %v not multiple of pagesize %v"
		panicerr(fmsg, vm.logprefix, vm.capacity, vm.pagesize)
	} else if vm.subsize <= 0 || (vm.pagesize%vm.subsize) != 0 {
		fmsg := "%v pagesize %v not multiple of subsize %v"
		panicerr(fmsg, vm.logprefix, vm.pagesize, vm.subsize)
	} else if (vm.subsize % Pagesize) != 0 {
		fmsg := "%v subsize %v not multiple of %v"
		panicerr(fmsg, vm.logprefix, vm.subsize, Pagesize)
	} else if vm.npools < 1 || vm.npools > Maxpools {
		panicerr("%v npools %v outside 1..%v", vm.logprefix, vm.npools, Maxpools)
	} else if vm.dedicated && vm.npools < 2 {
		panicerr("%v dedicated mode needs 2 pools", vm.logprefix)
	} else if x := vm.pagesize / vm.subsize; x > Maxsubpages {
		panicerr("%v %v sub-pages exceed %v", vm.logprefix, x, Maxsubpages)
	} else if npages = vm.capacity / vm.pagesize; npages > (1 << 30) {
		panicerr("%v %v large pages exceed %v", vm.logprefix, npages, 1<<30)
	}
}

//---- operations

// Alloc implement api.VMallocer{} interface. Requests of exactly the
// configured sub-page size are served from the hint pool's large
// pages, everything else from the page-cache. Returns nil when out
// of memory on the cache path; exhausting the primary pool's address
// space is fatal.
func (vm *Vmalloc) Alloc(size, hint int64, lck api.Locker) unsafe.Pointer {
	if vm.pages == nil {
		panicerr("%v allocator released", vm.logprefix)
	}
	if vm.enabled == false || size != vm.subsize {
		return vm.cache.Alloc(size, lck)
	} else if hint < 0 || hint >= vm.npools {
		panicerr("%v hint %v outside %v pools", vm.logprefix, hint, vm.npools)
	}
	pl := &vm.pools[hint]
	if pl.usedspace.empty() {
		if pl.free.empty() {
			if hint == 0 {
				// the reservation was sized to never run dry on the
				// primary pool, this cannot be recovered.
				panicerr("%v primary pool address space exhausted", vm.logprefix)
			}
			return vm.cache.Alloc(size, lck) // secondary pools degrade
		}
		h := pl.free.head
		pl.free.remove(vm.pages, h)
		page := &vm.pages[h]
		ok := false
		unlocked(lck, func() { ok = vm.os.Commit(page.base, vm.pagesize) })
		if ok == false {
			fmsg := "%v commit of %v bytes at %x failed"
			panicerr(fmsg, vm.logprefix, vm.pagesize, page.base)
		}
		vm.committed += vm.pagesize
		// another caller may have slipped a page in during the commit
		// window, keep the list in address order.
		pl.usedspace.insert(vm.pages, h)
	}
	h := pl.usedspace.head
	page := &vm.pages[h]
	nth := page.allocsub()
	if nth < 0 {
		panicerr("%v page %v on usedspace without free sub-pages", vm.logprefix, h)
	}
	if page.nfree == 0 {
		pl.usedspace.remove(vm.pages, h)
		pl.usedfull.push(vm.pages, h)
	}
	vm.suballocated += vm.subsize
	return unsafe.Pointer(page.base + uintptr(nth*vm.subsize))
}

// Free implement api.VMallocer{} interface. Pointers outside the
// reserved range are forwarded to the page-cache, `size` shall be
// the same size passed to Alloc.
func (vm *Vmalloc) Free(ptr unsafe.Pointer, size int64, lck api.Locker) {
	if vm.pages == nil {
		panicerr("%v allocator released", vm.logprefix)
	} else if ptr == nil {
		panicerr("%v Free(): nil pointer", vm.logprefix)
	}
	addr := uintptr(ptr)
	if addr < vm.base || addr >= vm.base+uintptr(vm.capacity) {
		vm.cache.Free(ptr, size, lck)
		return
	}
	if size != vm.subsize {
		fmsg := "%v Free() inside reserved range with size %v, expected %v"
		panicerr(fmsg, vm.logprefix, size, vm.subsize)
	}
	off := int64(addr - vm.base)
	if (off % vm.subsize) != 0 {
		panicerr("%v Free(): unaligned pointer %x", vm.logprefix, addr)
	}
	h := int32(off / vm.pagesize)
	page, pl := &vm.pages[h], &vm.pools[vm.pages[h].pool]
	wasfull := page.nfree == 0
	page.freesub((off % vm.pagesize) / vm.subsize)
	vm.suballocated -= vm.subsize

	if page.nfree == vm.subperpage { // page drained empty, give it back
		if wasfull {
			pl.usedfull.remove(vm.pages, h)
		} else {
			pl.usedspace.remove(vm.pages, h)
		}
		unlocked(lck, func() { vm.os.Decommit(page.base, vm.pagesize) })
		vm.committed -= vm.pagesize
		pl.free.push(vm.pages, h)

	} else if wasfull { // first free slot, back to usedspace in address order
		pl.usedfull.remove(vm.pages, h)
		pl.usedspace.insert(vm.pages, h)
	}
}

// FreeAll implement api.VMallocer{} interface. Flushes the page-cache
// back to the OS, committed large pages are left alone.
func (vm *Vmalloc) FreeAll(lck api.Locker) {
	if vm.pages == nil {
		panicerr("%v allocator released", vm.logprefix)
	}
	vm.cache.FreeAll(lck)
	infof("%v flushed page-cache\n", vm.logprefix)
}

// Release implement api.VMallocer{} interface. Returns the cached
// blocks and the entire reservation to the OS, the allocator cannot
// be used after this.
func (vm *Vmalloc) Release(lck api.Locker) {
	if vm.pages == nil {
		panicerr("%v allocator released", vm.logprefix)
	}
	vm.cache.FreeAll(lck)
	base, capacity := vm.base, vm.capacity
	unlocked(lck, func() { vm.os.ReleaseRange(base, capacity) })
	vm.pages, vm.pools, vm.base = nil, nil, 0
	vm.committed, vm.suballocated = 0, 0
	infof("%v released\n", vm.logprefix)
}

//---- statistics

// Info implement api.VMallocer{} interface.
func (vm *Vmalloc) Info() (reserved, committed, cached int64) {
	cached, _, _, _ = vm.cache.Info()
	return vm.capacity, vm.committed, cached
}

// Allocated bytes handed out from large pages.
func (vm *Vmalloc) Allocated() int64 {
	return vm.suballocated
}

// Utilization of committed memory, in percentage.
func (vm *Vmalloc) Utilization() float64 {
	if vm.committed == 0 {
		return 0
	}
	return (float64(vm.suballocated) / float64(vm.committed)) * 100
}

// Logstatistics log a humanized summary of memory accounting.
func (vm *Vmalloc) Logstatistics() {
	reserved, committed, cached := vm.Info()
	fmsg := "%v reserved:%v committed:%v allocated:%v cached:%v util:%.2f%%\n"
	infof(fmsg, vm.logprefix,
		gohumanize.Bytes(uint64(reserved)),
		gohumanize.Bytes(uint64(committed)),
		gohumanize.Bytes(uint64(vm.suballocated)),
		gohumanize.Bytes(uint64(cached)),
		vm.Utilization())
}
