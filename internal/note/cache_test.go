package note

import (
	"testing"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func TestCacheAddAndSpendableRoundTrip(t *testing.T) {
	c := NewCache()
	c.AddNote("zaddr", &SaplingNote{Value: 1000, Cmu: zcash.Hash32{0x01}})
	c.AddNote("zaddr", &SaplingNote{Value: 2000, Cmu: zcash.Hash32{0x02}})

	spendable := c.Spendable("zaddr")
	if len(spendable) != 2 {
		t.Fatalf("expected 2 spendable notes, got %d", len(spendable))
	}

	bal := c.Balance("zaddr")
	if bal.Total != 3000 || bal.Confirmed != 3000 {
		t.Fatalf("unexpected balance: %+v", bal)
	}
}

func TestCacheSetNullifierThenMarkSpent(t *testing.T) {
	c := NewCache()
	cmu := zcash.Hash32{0x01}
	c.AddNote("zaddr", &SaplingNote{Value: 1000, Cmu: cmu})

	nullifier := zcash.Hash32{0xAB}
	c.SetNullifier("zaddr", cmu, nullifier)

	if !c.MarkSpent("zaddr", nullifier) {
		t.Fatal("expected MarkSpent to find the note by its attached nullifier")
	}

	spendable := c.Spendable("zaddr")
	if len(spendable) != 0 {
		t.Fatalf("expected 0 spendable notes after spend, got %d", len(spendable))
	}

	bal := c.Balance("zaddr")
	if bal.Total != 1000 || bal.Confirmed != 0 {
		t.Fatalf("expected total to survive but confirmed to drop to 0, got %+v", bal)
	}
}

func TestCacheMarkSpentUnknownNullifierReturnsFalse(t *testing.T) {
	c := NewCache()
	c.AddNote("zaddr", &SaplingNote{Value: 1000, Cmu: zcash.Hash32{0x01}})

	if c.MarkSpent("zaddr", zcash.Hash32{0xFF}) {
		t.Fatal("expected MarkSpent to return false for an unrecognized nullifier")
	}
}

func TestSelectPicksLargestFirstUntilTargetReached(t *testing.T) {
	notes := []*SaplingNote{
		{Value: 100},
		{Value: 5000},
		{Value: 2000},
	}
	chosen, total, err := Select(notes, 6000)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(chosen) != 2 {
		t.Fatalf("expected 2 notes selected (5000+2000), got %d", len(chosen))
	}
	if total != 7000 {
		t.Fatalf("expected total 7000, got %d", total)
	}
	if chosen[0].Value != 5000 {
		t.Fatalf("expected largest note selected first, got %d", chosen[0].Value)
	}
}

func TestSelectInsufficientNotesFails(t *testing.T) {
	notes := []*SaplingNote{{Value: 100}, {Value: 200}}
	if _, _, err := Select(notes, 1000); err != zcash.ErrInsufficientShieldedFunds {
		t.Fatalf("expected ErrInsufficientShieldedFunds, got %v", err)
	}
}

func TestCacheSyncedHeightDefaultsToZero(t *testing.T) {
	c := NewCache()
	if h := c.SyncedHeight("zaddr"); h != 0 {
		t.Fatalf("expected default synced height 0, got %d", h)
	}
	c.SetSyncedHeight("zaddr", 42)
	if h := c.SyncedHeight("zaddr"); h != 42 {
		t.Fatalf("expected synced height 42, got %d", h)
	}
}
