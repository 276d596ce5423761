// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package grace

import (
	"code.hybscloud.com/atomix"
)

// ebrActiveFlag is the high bit of localEpochAndActive. Packing ACTIVE
// into the same word as the observed epoch makes the "active and
// observing e" check in Sync a single load-and-compare.
const ebrActiveFlag uint32 = 1 << 31

// ebrEpochMask extracts the low bits carrying the observed epoch.
const ebrEpochMask uint32 = ebrActiveFlag - 1

// EBR is a three-epoch reclamation instance.
//
// A reader brackets an access with Enter/Exit. A synchronizer (a single,
// externally-serialized caller) advances globalEpoch by calling Sync
// once every currently active reader has observed the current epoch.
// EBR exposes the epoch-to-stage and epoch-to-reclaim accessors the G/C
// facade in gc.go is built on.
type EBR struct {
	_          pad
	globalEpoch atomix.Uint32
	_          pad
	syncing    atomix.Bool // debug-only Sync re-entrancy guard
	_          pad
	head       atomix.Pointer[EBRReader]
}

// EBRReader is a per-worker reader record returned by EBR.Register. It
// must not be shared between workers.
//
// The hot field, localEpochAndActive, packs the observed epoch (values
// 0, 1, or 2) into the low bits and the ACTIVE flag into bit 31 so the
// whole state transitions with a single atomic store.
type EBRReader struct {
	_                   pad
	localEpochAndActive atomix.Uint32
	_                   pad
	next                *EBRReader
}

// NewEBR creates an empty EBR instance with globalEpoch initialised to 0.
func NewEBR() *EBR {
	return &EBR{}
}

// Register attaches a new reader record for the calling worker and
// publishes it into the instance's reader list via a lock-free CAS
// prepend, exactly as QSBR.Register does.
func (e *EBR) Register() *EBRReader {
	r := &EBRReader{}
	for {
		old := e.head.LoadAcquire()
		r.next = old
		if e.head.CompareAndSwapAcqRel(old, r) {
			return r
		}
	}
}

// seqCstFence issues a sequentially-consistent fence by performing a
// compare-and-swap of r's current word against itself. code.hybscloud.com/atomix
// has no standalone fence primitive — only load/store/RMW operations
// suffixed with an ordering — so a CAS that cannot fail (localEpochAndActive
// is only ever written by r's own owning worker, which is the only caller
// of this method) is the read-modify-write spec.md §4.2 calls for. On the
// architectures EBR targets an AcqRel RMW compiles to a locked instruction,
// which — unlike a bare release store — also blocks the StoreLoad
// reordering between the publication this fences and any load the caller
// issues next.
func (r *EBRReader) seqCstFence() {
	word := r.localEpochAndActive.LoadAcquire()
	r.localEpochAndActive.CompareAndSwapAcqRel(word, word)
}

// Enter marks r active and records the epoch currently observed.
//
// Enter is wait-free: an atomic store followed by a sequentially-consistent
// fence (see seqCstFence). The store alone publishes the observed epoch
// with release ordering, but a release store permits the reader's own
// subsequent loads to execute before that publication becomes globally
// visible (StoreLoad reordering). The fence closes that gap, so no load
// the reader issues inside the critical section that follows can be
// reordered before the publication of the observed epoch.
//
// Enter does not support nesting: calling it twice for the same reader
// without an intervening Exit overwrites the first critical section's
// bookkeeping and is a contract violation, asserted in debug builds.
func (e *EBR) Enter(r *EBRReader) {
	assertf(r.localEpochAndActive.LoadAcquire()&ebrActiveFlag == 0, "EBR.Enter called while already active (missing Exit or nested Enter)")
	epoch := e.globalEpoch.LoadAcquire()
	r.localEpochAndActive.StoreRelease(epoch | ebrActiveFlag)
	r.seqCstFence()
}

// Exit clears r's ACTIVE flag.
//
// Exit is wait-free: a sequentially-consistent fence (see seqCstFence)
// followed by an atomic store. The fence runs first, so every store the
// reader issued inside the critical section is globally visible before
// the reader is considered inactive — a plain release store on the clear
// alone would not order the critical section's stores against it.
func (e *EBR) Exit(r *EBRReader) {
	assertf(r.localEpochAndActive.LoadAcquire()&ebrActiveFlag != 0, "EBR.Exit called without a matching Enter")
	r.seqCstFence()
	r.localEpochAndActive.StoreRelease(r.localEpochAndActive.LoadAcquire() & ebrEpochMask)
}

// InCritical reports whether r currently has an open Enter/Exit bracket.
// It is a diagnostic only; it is not meant to gate correctness decisions.
func (e *EBR) InCritical(r *EBRReader) bool {
	return r.localEpochAndActive.LoadAcquire()&ebrActiveFlag != 0
}

// StagingEpoch returns the current globalEpoch — the epoch new limbo
// entries are staged into.
func (e *EBR) StagingEpoch() uint32 {
	return e.globalEpoch.LoadAcquire()
}

// GCEpoch returns (globalEpoch+1) mod 3, the epoch known to be quiesced
// and therefore safe to drain right now. Equivalently, globalEpoch-2
// under modulo-3 clock arithmetic.
func (e *EBR) GCEpoch() uint32 {
	return (e.globalEpoch.LoadAcquire() + 1) % EBREpochs
}

func gcEpochOf(epoch uint32) uint32 {
	return (epoch + 1) % EBREpochs
}

// seqCstFence is EBR's own instance-level twin of EBRReader.seqCstFence,
// used by Sync between snapshotting globalEpoch and scanning the reader
// list. Sync is externally serialized, so the CAS is guaranteed to
// observe the value it just loaded and cannot fail.
func (e *EBR) seqCstFence() {
	word := e.globalEpoch.LoadAcquire()
	e.globalEpoch.CompareAndSwapAcqRel(word, word)
}

// Sync attempts to advance the global epoch by one (mod 3).
//
// Sync snapshots globalEpoch as e, issues a sequentially-consistent fence,
// then scans the reader list: for every reader whose ACTIVE flag is set,
// the recorded epoch must equal e. The fence ensures the snapshot is
// globally visible, and that no reader record load below is reordered
// ahead of it, before any reader's Enter/Exit is consulted. If
// any active reader still reports e-1, Sync returns (gcEpochOf(e),
// false) — nothing advanced, and gcEpochOf(e) names the bucket that was
// already safe to drain before this call. Otherwise Sync advances
// globalEpoch to (e+1) mod 3 and returns (gcEpochOf(e+1), true).
//
// Grace-period argument: with exactly three epochs, a successful Sync
// that moves globalEpoch from e-1 to e implies no
// active reader can be observing e-2. This holds because (a) any reader
// that entered before the previous successful Sync has since exited —
// otherwise that Sync could not have succeeded — and (b) any reader
// entering now observes e-1 or e, never e-2. Therefore the bucket for
// e-2 (equivalently, the bucket Sync now reports as gcEpochOf(e)) is
// safe to drain immediately after this call returns true.
//
// Sync is not internally synchronized against concurrent callers on the
// same instance — callers must serialize all Sync calls for a given
// instance themselves (typically: exactly one G/C worker). In
// grace_debug builds, Sync asserts that no other goroutine is
// concurrently inside Sync for the same instance.
func (e *EBR) Sync() (gcEpoch uint32, advanced bool) {
	assertf(e.syncing.CompareAndSwapAcqRel(false, true), "EBR.Sync called concurrently by more than one caller")
	defer e.syncing.StoreRelease(false)

	cur := e.globalEpoch.LoadAcquire()
	e.seqCstFence()
	for r := e.head.LoadAcquire(); r != nil; r = r.next {
		word := r.localEpochAndActive.LoadAcquire()
		if word&ebrActiveFlag != 0 && word&ebrEpochMask != cur {
			return gcEpochOf(cur), false
		}
	}

	next := (cur + 1) % EBREpochs
	e.globalEpoch.StoreRelease(next)
	return gcEpochOf(next), true
}

// Close releases the instance. The caller must ensure no reader is
// currently active, or must accept undefined behavior for any in-flight
// critical section; Close asserts this in debug builds.
func (e *EBR) Close() {
	for r := e.head.LoadAcquire(); r != nil; r = r.next {
		assertf(r.localEpochAndActive.LoadAcquire()&ebrActiveFlag == 0, "EBR.Close called with an active reader")
	}
}
