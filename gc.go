// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package grace

import (
	"runtime"
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// GC is a deferred-destruction pipeline layered on an embedded EBR
// instance. Objects are retired via Limbo from any number of concurrent
// producers into a lock-free inbox; a single caller-serialized drainer
// promotes them into per-epoch buckets and invokes a reclaim callback
// once an epoch becomes safe, via Cycle or the blocking Full.
type GC struct {
	ebr *EBR

	_     pad
	limbo atomix.Pointer[Node]
	_     pad

	// bucket[i] is written and read only under the caller's own cycle
	// serialization discipline — never touched by Limbo's producers, so
	// it needs no atomic type.
	bucket [EBREpochs]*Node

	entryOffset uintptr
	reclaim     ReclaimFunc
	arg         unsafe.Pointer
}

// Option configures a GC instance at construction time.
type Option func(*GC)

// WithReclaim installs the callback invoked when a bucket becomes safe
// to drain. If never supplied, NewGC installs a default that derives the
// object address from the linkage address and entryOffset and drops the
// program's last strong reference to it, letting the Go runtime's
// garbage collector reclaim the memory — see the default reclaim note on
// NewGC.
func WithReclaim(fn ReclaimFunc) Option {
	return func(g *GC) { g.reclaim = fn }
}

// WithCallbackArg sets the opaque value passed verbatim to the reclaim
// callback as its second argument.
func WithCallbackArg(arg unsafe.Pointer) Option {
	return func(g *GC) { g.arg = arg }
}

// NewGC creates a G/C instance. entryOffset is the byte offset of the
// embedded Node within the objects this instance will manage (0 is
// permitted, for types that embed Node as their first field); compute it
// with unsafe.Offsetof.
//
// Default reclaim. Go has no explicit "free": the runtime's garbage
// collector already reclaims an object once its last reference is
// dropped. When WithReclaim is not supplied, the installed default walks
// the chain, recovers each object's address via
// unsafe.Add(linkageAddr, -entryOffset) — the same pointer-arithmetic
// idiom [code.hybscloud.com/lfq]'s SPSCPtr/MPMCPtr use in their own hot
// paths — purely to keep the object/linkage address relationship
// exercised and testable, and drops the reference so the object becomes
// collectible. It never calls a method on the object, since the default
// must work for any entryOffset without requiring the caller's type to
// implement anything.
func NewGC(entryOffset uintptr, opts ...Option) *GC {
	g := &GC{
		ebr:         NewEBR(),
		entryOffset: entryOffset,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.reclaim == nil {
		g.reclaim = g.defaultReclaim
	}
	return g
}

// defaultReclaim recovers each object's address from its linkage node
// and drops the reference, letting the garbage collector reclaim it —
// see the note on NewGC.
func (g *GC) defaultReclaim(chain *Node, _ unsafe.Pointer) {
	for n := chain; n != nil; {
		next := n.next
		obj := objOf(n, g.entryOffset)
		_ = obj
		n = next
	}
}

// Register forwards to the embedded EBR instance.
func (g *GC) Register() *EBRReader { return g.ebr.Register() }

// Enter forwards to the embedded EBR instance.
func (g *GC) Enter(r *EBRReader) { g.ebr.Enter(r) }

// Exit forwards to the embedded EBR instance.
func (g *GC) Exit(r *EBRReader) { g.ebr.Exit(r) }

// InCritical forwards to the embedded EBR instance.
func (g *GC) InCritical(r *EBRReader) bool { return g.ebr.InCritical(r) }

// Limbo computes the linkage address of obj (obj + entryOffset) and
// CAS-prepends it onto the lock-free limbo list. Multiple producers may
// call Limbo concurrently; it performs no blocking.
func (g *GC) Limbo(obj unsafe.Pointer) {
	node := nodeOf(obj, g.entryOffset)
	sw := spin.Wait{}
	for {
		old := g.limbo.LoadAcquire()
		node.next = old
		if g.limbo.CompareAndSwapAcqRel(old, node) {
			return
		}
		sw.Once()
	}
}

// Cycle performs one promote/stage/reclaim pass. It must be externally
// serialized against other Cycle/Full calls on the same instance — in
// grace_debug builds this is enforced via the embedded EBR's own Sync
// re-entrancy guard.
//
// The protocol:
//
//  1. Call EBR.Sync. If it did not announce a new epoch, return
//     immediately — nothing to promote, nothing new to reclaim.
//  2. Let s be the staging epoch queried under the Sync call's
//     serialization umbrella. Exchange the limbo head with nil and
//     assign the detached chain to bucket[s], which must have been
//     empty on entry.
//  3. Let g be the gc epoch Sync reported. If bucket[g] is empty,
//     retry the whole procedure, up to EBREpochs iterations total;
//     otherwise invoke the reclaim callback with bucket[g]'s chain and
//     clear bucket[g].
func (g *GC) Cycle() {
	for attempt := 0; attempt < EBREpochs; attempt++ {
		gcEpoch, advanced := g.ebr.Sync()
		if !advanced {
			return
		}

		s := g.ebr.StagingEpoch()
		assertf(g.bucket[s] == nil, "GC.Cycle: bucket[%d] was not empty at staging time", s)
		g.bucket[s] = g.detachLimbo()

		if g.bucket[gcEpoch] == nil {
			continue
		}
		chain := g.bucket[gcEpoch]
		g.bucket[gcEpoch] = nil
		g.reclaim(chain, g.arg)
		return
	}
}

// Full blocks until limbo is empty and every bucket is empty, calling
// Cycle in a loop. Each iteration that leaves work pending backs off with
// an exponential CPU-pause spin up to a small cap, then sleeps for
// msecRetry once the spin budget is spent — the same two-phase shape
// [code.hybscloud.com/iox]'s Backoff gives the package's queue retry
// loops, specialized here to take an explicit sleep duration. msecRetry
// == 0 is treated as a yield hint rather than a tight spin.
func (g *GC) Full(msecRetry time.Duration) {
	for {
		g.Cycle()
		if g.drained() {
			return
		}

		sw := spin.Wait{}
		for i := 0; i < 32 && !g.drained(); i++ {
			sw.Once()
		}
		if g.drained() {
			return
		}
		if msecRetry <= 0 {
			runtime.Gosched()
			continue
		}
		time.Sleep(msecRetry)
	}
}

// detachLimbo atomically exchanges the limbo head with nil and returns
// the chain that was there, retrying against concurrent producers the
// same way lfq's FAA queues retry a failed CAS.
func (g *GC) detachLimbo() *Node {
	sw := spin.Wait{}
	for {
		old := g.limbo.LoadAcquire()
		if g.limbo.CompareAndSwapAcqRel(old, nil) {
			return old
		}
		sw.Once()
	}
}

func (g *GC) drained() bool {
	if g.limbo.LoadAcquire() != nil {
		return false
	}
	for i := range g.bucket {
		if g.bucket[i] != nil {
			return false
		}
	}
	return true
}

// Close releases the instance. The caller must ensure limbo is empty and
// every bucket is empty; Close asserts this in debug builds, then tears
// down the embedded EBR.
func (g *GC) Close() {
	assertf(g.limbo.LoadAcquire() == nil, "GC.Close called with entries still in limbo")
	for i := range g.bucket {
		assertf(g.bucket[i] == nil, "GC.Close called with bucket[%d] non-empty", i)
	}
	g.ebr.Close()
}
