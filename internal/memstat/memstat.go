// Package memstat is the allocator-accounting shim, in the shape of Redis's
// zmalloc layer. Go's runtime allocator replaces alloc/calloc/realloc/free
// outright; this package only keeps the process-wide used-memory counter
// zmalloc tracked alongside every allocation, updated with plain atomics so
// any goroutine may read or update it without a lock.
package memstat

import (
	"log"
	"os"
	"sync/atomic"
)

var usedMemory atomic.Int64

// UsedMemory reports the current accounted byte count, matching
// zmalloc_used_memory().
func UsedMemory() int64 {
	return usedMemory.Load()
}

// Add increments the used-memory counter by delta bytes (delta may be
// negative), matching the accounting zmalloc/zfree perform around every
// allocation. The client engine calls it around its Tier-2 reply-chunk
// allocations; the worker pool's task allocations are not accounted, and
// neither is any other individual Go allocation.
func Add(delta int64) int64 {
	return usedMemory.Add(delta)
}

// OOMHandler is invoked when a caller reports an allocation failure via
// Fail. The default, matching zmalloc's zmalloc_default_oom, logs and
// terminates the process; tests substitute a non-fatal handler via
// SetOOMHandler.
type OOMHandler func(requested int64)

var oomHandler atomic.Value // OOMHandler

func init() {
	oomHandler.Store(OOMHandler(defaultOOMHandler))
}

// SetOOMHandler overrides the process-wide OOM handler.
func SetOOMHandler(h OOMHandler) {
	if h == nil {
		h = defaultOOMHandler
	}
	oomHandler.Store(h)
}

// Fail reports an allocation failure of the given size, invoking the
// installed OOMHandler. Go's allocator itself panics/crashes the runtime on
// true exhaustion; this exists for collaborators that pre-flight a size
// against a soft maxmemory limit and want to report failure through the
// same channel zmalloc's OOM hook used.
func Fail(requested int64) {
	oomHandler.Load().(OOMHandler)(requested)
}

func defaultOOMHandler(requested int64) {
	log.Printf("memstat: out of memory trying to allocate %d bytes, used=%d", requested, UsedMemory())
	os.Exit(1)
}
