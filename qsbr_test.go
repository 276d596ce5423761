// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package grace_test

import (
	"testing"

	"code.hybscloud.com/grace"
)

func TestQSBRBarrierConvergenceNoReaders(t *testing.T) {
	q := grace.NewQSBR()

	target := q.Barrier()
	if !q.Sync(nil, target) {
		t.Fatalf("Sync(nil, %d): want true with no registered readers", target)
	}
	q.Close()
}

func TestQSBRBarrierBlocksUntilCheckpoint(t *testing.T) {
	q := grace.NewQSBR()
	r := q.Register()

	target := q.Barrier()
	if q.Sync(nil, target) {
		t.Fatalf("Sync(nil, %d): want false before reader checkpoints", target)
	}

	q.Checkpoint(r)
	if !q.Sync(nil, target) {
		t.Fatalf("Sync(nil, %d): want true after reader checkpoints", target)
	}
}

func TestQSBRBarrierIsPostIncrement(t *testing.T) {
	q := grace.NewQSBR()

	first := q.Barrier()
	second := q.Barrier()
	if first != 2 || second != first+1 {
		t.Fatalf("Barrier: got %d then %d, want 2 then 3 (post-increment from the initial generation 1)", first, second)
	}
}

func TestQSBRSyncDoesNotMutateGlobalGeneration(t *testing.T) {
	q := grace.NewQSBR()
	r := q.Register()

	target := q.Barrier()
	q.Checkpoint(r)
	q.Sync(nil, target)

	// Calling Sync again for the same target must still hold — Sync is
	// read-only and idempotent when reader state hasn't regressed.
	if !q.Sync(nil, target) {
		t.Fatalf("Sync(nil, %d): want true on repeated call with unchanged reader state", target)
	}

	// Neither Sync call bumped the generation, so the next Barrier is
	// exactly one past target.
	if next := q.Barrier(); next != target+1 {
		t.Fatalf("Barrier after Sync: got %d, want %d", next, target+1)
	}
}

func TestQSBRMultipleReadersMustAllAdvance(t *testing.T) {
	q := grace.NewQSBR()
	r1 := q.Register()
	r2 := q.Register()

	target := q.Barrier()
	q.Checkpoint(r1)
	if q.Sync(nil, target) {
		t.Fatalf("Sync: want false with r2 lagging")
	}

	q.Checkpoint(r2)
	if !q.Sync(nil, target) {
		t.Fatalf("Sync: want true once every reader has advanced")
	}
}

func TestQSBRSyncCheckpointsCallerWhenGivenAReader(t *testing.T) {
	q := grace.NewQSBR()
	r := q.Register()

	target := q.Barrier()
	if !q.Sync(r, target) {
		t.Fatalf("Sync(r, %d): want true — passing r should checkpoint it first", target)
	}
}

func TestQSBRCloseAssertsNoRegisteredReadersInDebugBuilds(t *testing.T) {
	if !grace.DebugAssertions {
		t.Skip("contract-violation assertions are compiled out without grace_debug")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("Close: want panic with a registered reader still attached")
		}
	}()

	q := grace.NewQSBR()
	q.Register()
	q.Close()
}
