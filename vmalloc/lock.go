package vmalloc

import "github.com/bnclabs/govmalloc/api"

// unlocked drop the caller's external lock for the duration of fn,
// typically a blocking OS call, and re-acquire it before returning,
// also on panic paths. Allocator state shall never be touched inside
// fn. A nil lck keeps the lock held through the call.
func unlocked(lck api.Locker, fn func()) {
	if lck == nil {
		fn()
		return
	}
	lck.Unlock()
	defer lck.Lock()
	fn()
}
