// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package grace provides safe deferred reclamation of objects shared
// across lock-free, multi-threaded data structures.
//
// The package exposes two synchronization primitives and a facade built
// on top of one of them:
//
//   - QSBR: Quiescent-State-Based Reclamation. Readers periodically
//     declare a quiescent state; writers wait for every reader to have
//     passed at least one such declaration since a given point.
//   - EBR: Epoch-Based Reclamation. Readers bracket accesses with
//     Enter/Exit; a synchronizer advances a three-valued global epoch
//     once every active reader has observed it.
//   - GC: a deferred-destruction pipeline layered on EBR, with a
//     lock-free multi-producer limbo inbox and one reclamation bucket
//     per epoch.
//
// # Quick Start
//
// EBR, used directly:
//
//	ebr := grace.NewEBR()
//	r := ebr.Register()
//
//	// Reader goroutine
//	ebr.Enter(r)
//	v := atomic.LoadPointer(&shared)
//	// ... use v ...
//	ebr.Exit(r)
//
//	// Writer goroutine, after unpublishing old value
//	for {
//	    gcEpoch, advanced := ebr.Sync()
//	    if advanced && gcEpoch == retiredEpoch {
//	        break // safe to reclaim
//	    }
//	}
//
// The G/C facade, which does the epoch bookkeeping above automatically:
//
//	gc := grace.NewGC(unsafe.Offsetof(Item{}.link))
//	r := gc.Register()
//
//	// Reader
//	gc.Enter(r)
//	item := (*Item)(atomic.LoadPointer(&head))
//	gc.Exit(r)
//
//	// Writer, after swinging head away from item
//	gc.Limbo(unsafe.Pointer(item))
//	gc.Cycle() // or gc.Full(time.Millisecond) to block until drained
//
// # Reader Records
//
// grace does not use thread-local storage to locate a worker's reader
// record. Register returns a *QSBRReader or
// *EBRReader that the caller threads through every subsequent call for
// that worker. This keeps the reader fast path free of any lookup and
// matches the explicit-handle idiom the rest of this dependency's
// ecosystem (code.hybscloud.com/lfq, code.hybscloud.com/atomix) already
// uses for per-goroutine state.
//
// # Three Epochs, No More
//
// EBR's grace-period argument depends on there being exactly three
// epochs: when Sync successfully advances the global epoch from e-1 to
// e, no active reader can still be observing e-2, because any reader
// that entered before the previous successful Sync has since exited (or
// that Sync would have failed), and any reader entering now observes
// e-1 or e. See the doc comment on (*EBR).Sync for the full argument.
//
// # Serialization Requirements
//
// EBR.Sync, EBR.StagingEpoch, EBR.GCEpoch, GC.Cycle, and GC.Full must be
// serialized against each other and against themselves for a given
// instance — typically by running all of them on one dedicated
// goroutine. GC.Limbo and the Enter/Exit pair are safe from arbitrary
// concurrent callers. Violating the serialization requirement is a
// contract violation. Under the grace_debug build tag (see
// assert_debug.go), calls that overlap inside EBR.Sync — directly or
// through GC.Cycle/GC.Full — panic; other violations, and every violation
// in release builds, are left undefined.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives
// with explicit memory ordering and [code.hybscloud.com/spin] for
// CPU-pause-based busy waiting, the same two building blocks
// [code.hybscloud.com/lfq] is built from.
package grace
