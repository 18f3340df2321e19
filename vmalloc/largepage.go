// Functions and methods are not thread safe.

package vmalloc

import "github.com/bnclabs/govmalloc/lib"

// nilpage terminates pagelist links, no valid page carries it as
// its own handle.
const nilpage = int32(-1)

// largepage one fixed-size slice of the reserved address range,
// carved into sub-pages of a single size. Pages are constructed once
// over the reservation, never individually allocated or freed, and
// for ever after only move between the free, usedspace and usedfull
// lists of their pool.
type largepage struct {
	base    uintptr
	nfree   int64
	freemap []uint8 // nth bit set - nth sub-page is free
	pool    int64
	prev    int32 // handle into the page arena
	next    int32
}

// newfreemap bitmap with the first n bits set.
func newfreemap(n int64) []uint8 {
	freemap := make([]uint8, ceil(n, 8))
	for i := int64(0); i < (n >> 3); i++ {
		freemap[i] = 0xff
	}
	if x := n & 0x7; x > 0 {
		byt := uint8(0)
		for i := uint8(0); int64(i) < x; i++ {
			byt = lib.Bit8(byt).Setbit(i)
		}
		freemap[len(freemap)-1] = byt
	}
	return freemap
}

// allocsub claim the lowest free sub-page, -1 when the page is full.
func (page *largepage) allocsub() int64 {
	for i, byt := range page.freemap {
		if byt == 0 {
			continue
		}
		nth := lib.Bit8(byt).Findfirstset()
		page.freemap[i] = lib.Bit8(byt).Clearbit(uint8(nth))
		page.nfree--
		return (int64(i) << 3) + int64(nth)
	}
	return -1
}

// freesub release the nth sub-page back to the page.
func (page *largepage) freesub(nth int64) {
	q, r := nth>>3, uint8(nth&0x7)
	byt := lib.Bit8(page.freemap[q])
	if (uint8(byt)>>r)&1 == 1 {
		panicerr("largepage: sub-page %v already free", nth) // double free
	}
	page.freemap[q] = byt.Setbit(r)
	page.nfree++
}

// pagelist doubly linked list of large pages, threaded through the
// page arena with int32 handles instead of raw pointers.
type pagelist struct {
	head int32
}

func (list *pagelist) empty() bool {
	return list.head == nilpage
}

// push h to the head of the list.
func (list *pagelist) push(pages []largepage, h int32) {
	page := &pages[h]
	page.prev, page.next = nilpage, list.head
	if list.head != nilpage {
		pages[list.head].prev = h
	}
	list.head = h
}

// remove h from the list and scrub its links.
func (list *pagelist) remove(pages []largepage, h int32) {
	page := &pages[h]
	if page.prev != nilpage {
		pages[page.prev].next = page.next
	} else {
		list.head = page.next
	}
	if page.next != nilpage {
		pages[page.next].prev = page.prev
	}
	page.prev, page.next = nilpage, nilpage
}

// insert h keeping the list in ascending base-address order, so that
// subsequent allocations land near already committed memory and
// lower pages drain empty over time.
func (list *pagelist) insert(pages []largepage, h int32) {
	base, prev, next := pages[h].base, nilpage, list.head
	for next != nilpage && pages[next].base < base {
		prev, next = next, pages[next].next
	}
	pages[h].prev, pages[h].next = prev, next
	if prev == nilpage {
		list.head = h
	} else {
		pages[prev].next = h
	}
	if next != nilpage {
		pages[next].prev = h
	}
}

func (list *pagelist) length(pages []largepage) (n int64) {
	for h := list.head; h != nilpage; h = pages[h].next {
		n++
	}
	return
}
