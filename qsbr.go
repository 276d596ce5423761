// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package grace

import (
	"code.hybscloud.com/atomix"
)

// QSBR is a quiescent-state-based reclamation instance.
//
// QSBR tracks a monotone global generation counter. A writer calls
// Barrier to obtain a target generation, then polls Sync until every
// registered reader has advertised (via Checkpoint) a localGeneration at
// or past that target. Checkpoint is meant to be called from points in a
// reader's loop where it provably holds no reference to a reclaimable
// object — a quiescent state.
//
// QSBR has the cheapest reader fast path of the two primitives in this
// package: Checkpoint is a single load-then-release-store, no fence
// beyond what the atomic store itself provides. The cost is pushed onto
// the reader, which must periodically and explicitly declare quiescence,
// rather than bracketing every access with Enter/Exit as EBR requires.
type QSBR struct {
	_                pad
	globalGeneration atomix.Uint64
	_                pad
	head             atomix.Pointer[QSBRReader]
}

// QSBRReader is a per-worker reader record returned by QSBR.Register. It
// must not be shared between workers, and must not be used by its owner
// after the owner has retired from the instance.
//
// The record is cache-line padded on both sides: it is written only by
// its owning worker and read by whichever worker is performing Sync, so
// placing it next to an unrelated reader's record would otherwise cause
// false-sharing traffic between the two cores.
type QSBRReader struct {
	_               pad
	localGeneration atomix.Uint64
	_               pad
	next            *QSBRReader
}

// NewQSBR creates an empty QSBR instance with globalGeneration
// initialised to 1.
func NewQSBR() *QSBR {
	q := &QSBR{}
	q.globalGeneration.StoreRelaxed(1)
	return q
}

// Register attaches a new reader record for the calling worker and
// publishes it into the instance's reader list via a lock-free CAS
// prepend. The returned record must be reused for every later
// Checkpoint/Sync call made on behalf of this worker.
//
// Register is idempotent in effect but not identity: calling it again
// for a worker that already holds a record produces a second,
// independent record rather than rezeroing the first. Callers should
// register once per worker and keep the returned pointer for every
// later call on that worker's behalf.
func (q *QSBR) Register() *QSBRReader {
	r := &QSBRReader{}
	r.localGeneration.StoreRelaxed(q.globalGeneration.LoadAcquire())
	for {
		old := q.head.LoadAcquire()
		r.next = old
		if q.head.CompareAndSwapAcqRel(old, r) {
			return r
		}
	}
}

// Checkpoint publishes the instance's current globalGeneration into r's
// localGeneration. The store is a release, so every store the caller
// issued before calling Checkpoint is visible to any writer that
// subsequently observes the new localGeneration via Sync.
func (q *QSBR) Checkpoint(r *QSBRReader) {
	r.localGeneration.StoreRelease(q.globalGeneration.LoadAcquire())
}

// Barrier atomically increments globalGeneration and returns the
// post-increment value as the target a writer passes to Sync.
//
// Source variants of this algorithm disagree on whether barrier returns
// the pre- or post-increment value. This one returns post-increment,
// since that is the reading under which Sync's "every reader's
// localGeneration >= target" predicate is satisfiable by a reader that
// checkpoints strictly after the Barrier call returns.
func (q *QSBR) Barrier() uint64 {
	return q.globalGeneration.AddAcqRel(1)
}

// Sync reports whether every registered reader has advertised a
// localGeneration at or past target. If r is non-nil, Sync first
// checkpoints r on behalf of the calling worker (a writer that also acts
// as a reader gets counted without an extra call); writer-only callers
// may pass nil.
//
// Sync never mutates globalGeneration and performs no blocking — it is
// a single read-only scan of the reader list, safe to call concurrently
// with other Sync calls (unlike EBR.Sync, which must be serialized).
func (q *QSBR) Sync(r *QSBRReader, target uint64) bool {
	if r != nil {
		q.Checkpoint(r)
	}
	for cur := q.head.LoadAcquire(); cur != nil; cur = cur.next {
		if cur.localGeneration.LoadAcquire() < target {
			return false
		}
	}
	return true
}

// Close releases the instance. The caller must ensure no registered
// readers remain, or must accept that their QSBRReader records are
// leaked; Close does not unlink or invalidate them. In grace_debug builds
// Close panics if any reader is still registered, so leaking records is
// possible only in release builds.
func (q *QSBR) Close() {
	assertf(q.head.LoadAcquire() == nil, "QSBR.Close called with registered readers still attached")
}
