package main

import "flag"
import "fmt"
import "math/rand"
import "unsafe"

import humanize "github.com/dustin/go-humanize"

import "github.com/bnclabs/govmalloc/api"
import "github.com/bnclabs/govmalloc/flock"
import "github.com/bnclabs/govmalloc/osmem"
import "github.com/bnclabs/govmalloc/vmalloc"

var options struct {
	capacity int
	pagesize int
	subsize  int
	npools   int
	ops      int
	seed     int
	lockfile string
}

func argParse() {
	flag.IntVar(&options.capacity, "capacity", 64*1024*1024,
		"size of the reserved address range")
	flag.IntVar(&options.pagesize, "pagesize", 2*1024*1024,
		"size of one large page")
	flag.IntVar(&options.subsize, "subsize", 64*1024,
		"sub-page size served from large pages")
	flag.IntVar(&options.npools, "npools", 2,
		"number of allocation-hint pools")
	flag.IntVar(&options.ops, "ops", 1000000,
		"number of alloc/free operations")
	flag.IntVar(&options.seed, "seed", 42,
		"rng seed for the workload")
	flag.StringVar(&options.lockfile, "lockfile", "",
		"synchronize via file backed external lock")
	flag.Parse()
}

type chunk struct {
	ptr  unsafe.Pointer
	size int64
}

func main() {
	argParse()
	vmalloc.LogComponents("all")

	setts := vmalloc.Defaultsettings()
	setts["capacity"] = int64(options.capacity)
	setts["pagesize"] = int64(options.pagesize)
	setts["subsize"] = int64(options.subsize)
	setts["npools"] = int64(options.npools)
	vm := vmalloc.New("tool", osmem.New(), setts)

	var lck api.Locker
	if options.lockfile != "" {
		flck, err := flock.New(options.lockfile)
		if err != nil {
			panic(err)
		}
		lck = flck
	}

	subsize := int64(options.subsize)
	// stay well inside the reservation, exhausting pool 0 is fatal.
	maxlive := int((int64(options.capacity) / subsize) / 2)
	rnd := rand.New(rand.NewSource(int64(options.seed)))
	live := make([]chunk, 0, maxlive)

	for i := 0; i < options.ops; i++ {
		if lck != nil {
			lck.Lock()
		}
		if len(live) >= maxlive || (len(live) > 0 && rnd.Intn(2) == 0) {
			n := rnd.Intn(len(live))
			vm.Free(live[n].ptr, live[n].size, lck)
			live[n] = live[len(live)-1]
			live = live[:len(live)-1]
		} else {
			size, hint := subsize, int64(0)
			if rnd.Intn(4) == 0 { // assorted page-cache traffic
				size = int64(rnd.Intn(8)+1) * vmalloc.Pagesize
			} else {
				hint = int64(rnd.Intn(options.npools))
			}
			if ptr := vm.Alloc(size, hint, lck); ptr != nil {
				live = append(live, chunk{ptr, size})
			}
		}
		if lck != nil {
			lck.Unlock()
		}
		if (i % 100000) == 0 {
			tellinfo(vm, i, len(live))
		}
	}
	for _, chnk := range live {
		if lck != nil {
			lck.Lock()
		}
		vm.Free(chnk.ptr, chnk.size, lck)
		if lck != nil {
			lck.Unlock()
		}
	}
	vm.Validate()
	tellinfo(vm, options.ops, 0)
	vm.FreeAll(lck)
	vm.Release(lck)
}

func tellinfo(vm *vmalloc.Vmalloc, ops, live int) {
	reserved, committed, cached := vm.Info()
	fmt.Printf("ops %8v live %6v reserved %7v committed %7v cached %7v util %6.2f%%\n",
		ops, live,
		humanize.Bytes(uint64(reserved)), humanize.Bytes(uint64(committed)),
		humanize.Bytes(uint64(cached)), vm.Utilization())
}
