// Package vmalloc supplies a two-tier virtual-memory allocator for
// general purpose allocators, with a limited scope:
//
//   - Types and Functions exported by this package are not thread
//     safe. One external lock, owned by the caller, protects every
//     entry point; the allocator only drops it around OS calls.
//   - Pagecache retains recently freed OS blocks, bounded by entry
//     count and byte total, and serves them back by exact size only.
//   - Vmalloc reserves one large address range up front and carves it
//     into large pages of fixed sized sub-pages, for one dominant
//     allocation size. Requests of any other size fall through to the
//     Pagecache.
//   - Large pages are committed on demand and decommitted as soon as
//     they fall empty. The reservation itself never grows or shrinks,
//     exhausting it on the primary pool is a configuration error.
//   - There is no size-class rounding, callers supply already aligned
//     sizes and free with the same size they allocated.
package vmalloc
