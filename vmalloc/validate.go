package vmalloc

import "github.com/bnclabs/govmalloc/lib"

// Validate memory accounting and list invariants against the page
// arena and the cached blocks, panic on the first inconsistency.
// Costly, meant for tests and periodic health checks.
//
//	a page is on exactly one list of exactly one pool.
//	pages on free have every sub-page free, usedfull none, and
//	usedspace something in between, kept in ascending base order.
//	nfree matches the ones in the occupancy bitmap.
//	committed bytes equal pagesize times the used pages.
func (vm *Vmalloc) Validate() {
	if vm.pages == nil {
		panicerr("%v allocator released", vm.logprefix)
	}
	seen := make([]int8, len(vm.pages))
	committed, suballocated := int64(0), int64(0)

	checkpage := func(h int32, poolidx int64) *largepage {
		seen[h]++
		if seen[h] > 1 {
			panicerr("%v page %v on more than one list", vm.logprefix, h)
		}
		page := &vm.pages[h]
		if page.pool != poolidx {
			fmsg := "%v page %v on pool %v, tagged %v"
			panicerr(fmsg, vm.logprefix, h, poolidx, page.pool)
		}
		nfree := int64(0)
		for _, byt := range page.freemap {
			nfree += int64(lib.Bit8(byt).Ones())
		}
		if nfree != page.nfree {
			fmsg := "%v page %v counts %v free, bitmap says %v"
			panicerr(fmsg, vm.logprefix, h, page.nfree, nfree)
		}
		return page
	}

	for i := range vm.pools {
		pl, poolidx := &vm.pools[i], int64(i)
		for h := pl.free.head; h != nilpage; h = vm.pages[h].next {
			page := checkpage(h, poolidx)
			if page.nfree != vm.subperpage {
				fmsg := "%v free page %v with %v sub-pages allocated"
				panicerr(fmsg, vm.logprefix, h, vm.subperpage-page.nfree)
			}
		}
		prevbase := uintptr(0)
		for h := pl.usedspace.head; h != nilpage; h = vm.pages[h].next {
			page := checkpage(h, poolidx)
			if page.nfree == 0 || page.nfree == vm.subperpage {
				fmsg := "%v usedspace page %v with %v free sub-pages"
				panicerr(fmsg, vm.logprefix, h, page.nfree)
			} else if page.base <= prevbase {
				fmsg := "%v usedspace not in address order at page %v"
				panicerr(fmsg, vm.logprefix, h)
			}
			prevbase = page.base
			committed += vm.pagesize
			suballocated += (vm.subperpage - page.nfree) * vm.subsize
		}
		for h := pl.usedfull.head; h != nilpage; h = vm.pages[h].next {
			page := checkpage(h, poolidx)
			if page.nfree != 0 {
				fmsg := "%v usedfull page %v with %v free sub-pages"
				panicerr(fmsg, vm.logprefix, h, page.nfree)
			}
			committed += vm.pagesize
			suballocated += vm.subperpage * vm.subsize
		}
	}
	for h := range seen {
		if seen[h] != 1 {
			panicerr("%v page %v on no list", vm.logprefix, h)
		}
	}
	if committed != vm.committed {
		fmsg := "%v committed %v, lists add up to %v"
		panicerr(fmsg, vm.logprefix, vm.committed, committed)
	} else if suballocated != vm.suballocated {
		fmsg := "%v allocated %v, lists add up to %v"
		panicerr(fmsg, vm.logprefix, vm.suballocated, suballocated)
	}
	vm.cache.validate()
}
