package vmalloc

import s "github.com/bnclabs/gosettings"

// Pagesize granularity of OS page allocation. Sizes entering the
// page-cache shall be multiples of Pagesize.
const Pagesize = int64(4096)

// Maxreserve maximum size of the reserved virtual address range. Can
// be used as default for settings-parameter `capacity`.
const Maxreserve = int64(1024 * 1024 * 1024 * 1024) // 1TB

// Maxpools maximum number of allocation-hint pools in an allocator.
const Maxpools = int64(16)

// Maxsubpages maximum number of sub-pages within a large page.
const Maxsubpages = int64(65536)

// Defaultsettings for vmalloc package.
//
// "enabled" (bool, default: true)
//		When false the suballocator stands down and every request is
//		served by the page-cache.
//
// "capacity" (int64, default: 4GB)
//		Size of the reserved address range, multiple of "pagesize".
//
// "pagesize" (int64, default: 2MB)
//		Size of one large page, multiple of "subsize".
//
// "subsize" (int64, default: 64KB)
//		The dominant allocation size served from large pages,
//		multiple of Pagesize.
//
// "npools" (int64, default: 2)
//		Number of allocation-hint pools.
//
// "dedicated" (bool, default: false)
//		Take all requests of "subsize": the reserved pages are split
//		between pool 0 and pool 1 instead of pooling behind pool 0.
//
// "cache.maxbytes" (int64, default: 64MB)
//		Upper bound on bytes retained by the page-cache. Blocks
//		larger than a quarter of this limit bypass the cache.
//
// "cache.maxentries" (int64, default: 64)
//		Upper bound on blocks retained by the page-cache.
func Defaultsettings() s.Settings {
	return s.Settings{
		"enabled":          true,
		"capacity":         int64(4 * 1024 * 1024 * 1024),
		"pagesize":         int64(2 * 1024 * 1024),
		"subsize":          int64(64 * 1024),
		"npools":           int64(2),
		"dedicated":        false,
		"cache.maxbytes":   int64(64 * 1024 * 1024),
		"cache.maxentries": int64(64),
	}
}
