// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package grace_test

import (
	"testing"

	"code.hybscloud.com/grace"
)

func TestEBRSyncAdvancesOnlyWithNoLaggingReader(t *testing.T) {
	e := grace.NewEBR()
	r := e.Register()

	e.Enter(r)

	// r just entered observing the current epoch, so this Sync is free
	// to advance on its own.
	if _, advanced := e.Sync(); !advanced {
		t.Fatalf("Sync: want true for the first call after Enter")
	}

	// r never re-entered, so its recorded epoch is now stale: it must
	// block every further Sync until it exits.
	gcEpoch, advanced := e.Sync()
	if advanced {
		t.Fatalf("Sync: want false with an active reader now lagging behind the current epoch")
	}
	if want := (e.StagingEpoch() + 1) % grace.EBREpochs; gcEpoch != want {
		t.Fatalf("Sync gcEpoch on failure: got %d, want %d", gcEpoch, want)
	}
	e.Exit(r)

	gcEpoch, advanced = e.Sync()
	if !advanced {
		t.Fatalf("Sync: want true once the reader has exited")
	}
	if got, want := gcEpoch, (e.StagingEpoch()+1)%grace.EBREpochs; got != want {
		t.Fatalf("Sync gcEpoch on success: got %d, want %d", got, want)
	}
}

func TestEBREpochAdvancesByOneModThree(t *testing.T) {
	e := grace.NewEBR()

	for i := 0; i < 2*grace.EBREpochs; i++ {
		before := e.StagingEpoch()
		_, advanced := e.Sync()
		if !advanced {
			t.Fatalf("Sync: want true with no readers")
		}
		after := e.StagingEpoch()
		if after != (before+1)%grace.EBREpochs {
			t.Fatalf("StagingEpoch: %d -> %d, want advance by 1 mod %d", before, after, grace.EBREpochs)
		}
	}
}

func TestEBRGCEpochIsStagingEpochPlusOne(t *testing.T) {
	e := grace.NewEBR()
	if got, want := e.GCEpoch(), (e.StagingEpoch()+1)%grace.EBREpochs; got != want {
		t.Fatalf("GCEpoch: got %d, want %d", got, want)
	}
}

func TestEBRInCritical(t *testing.T) {
	e := grace.NewEBR()
	r := e.Register()

	if e.InCritical(r) {
		t.Fatalf("InCritical: want false before Enter")
	}
	e.Enter(r)
	if !e.InCritical(r) {
		t.Fatalf("InCritical: want true after Enter")
	}
	e.Exit(r)
	if e.InCritical(r) {
		t.Fatalf("InCritical: want false after Exit")
	}
}

// TestEBRGracePeriod verifies the three-epoch grace-period argument
// directly. A reader entering observes the current epoch and so does not
// itself block the very next Sync — but once that Sync advances the
// epoch, the reader's recorded epoch is now stale, and it blocks every
// Sync after that until it re-enters (refreshing its recorded epoch) or
// exits. r2 enters and exits every iteration, always refreshing to
// whatever is current, and so never blocks progress on its own.
func TestEBRGracePeriod(t *testing.T) {
	e := grace.NewEBR()
	r1 := e.Register()
	r2 := e.Register()

	e.Enter(r1)

	// r1 just entered observing the current epoch, so this first Sync is
	// free to advance — r1 holds no reference to anything older.
	_, advanced := e.Sync()
	if !advanced {
		t.Fatalf("Sync: want true for the first call, r1 observes the current epoch")
	}
	stuckEpoch := e.StagingEpoch()

	// r1 never re-enters, so its recorded epoch is now stale relative to
	// stuckEpoch. Every further Sync must fail while it remains active.
	for i := 0; i < 3; i++ {
		e.Enter(r2)
		e.Exit(r2)
		_, advanced := e.Sync()
		if advanced {
			t.Fatalf("Sync: want false while r1 is active and stale (iteration %d)", i)
		}
		if got := e.StagingEpoch(); got != stuckEpoch {
			t.Fatalf("StagingEpoch moved from %d to %d while r1 blocked progress", stuckEpoch, got)
		}
	}

	e.Exit(r1)
	gcEpoch, advanced := e.Sync()
	if !advanced {
		t.Fatalf("Sync: want true once r1 exits")
	}
	if want := (stuckEpoch + 2) % grace.EBREpochs; gcEpoch != want {
		t.Fatalf("gcEpoch: got %d, want %d", gcEpoch, want)
	}
}

func TestEBRCloseAssertsNoActiveReaderInDebugBuilds(t *testing.T) {
	if !grace.DebugAssertions {
		t.Skip("contract-violation assertions are compiled out without grace_debug")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("Close: want panic with an active reader")
		}
	}()

	e := grace.NewEBR()
	r := e.Register()
	e.Enter(r)
	e.Close()
}

func TestEBRExitWithoutEnterPanicsInDebugBuilds(t *testing.T) {
	if !grace.DebugAssertions {
		t.Skip("contract-violation assertions are compiled out without grace_debug")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("Exit: want panic without a matching Enter")
		}
	}()

	e := grace.NewEBR()
	r := e.Register()
	e.Exit(r)
}
