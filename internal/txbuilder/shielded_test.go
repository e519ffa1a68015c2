package txbuilder

import (
	"math/big"
	"testing"

	"github.com/amiabix/zcash-bridge/internal/jubjub"
	"github.com/amiabix/zcash-bridge/internal/note"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// TestBuildSpendsClonesAskNskPerSpend guards against the aliasing bug where
// two SpendPlans funded from the same caller-owned ask/nsk pointer (the
// common case: Provider derives one ask/nsk per account and reuses it across
// every note it selects) ended up with SpendSigningData entries pointing at
// that same *big.Int. Zeroing one spend's signing data after it was signed
// then zeroed every other spend's ask/nsk too.
func TestBuildSpendsClonesAskNskPerSpend(t *testing.T) {
	ask, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random ask: %v", err)
	}
	nsk, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random nsk: %v", err)
	}
	wantAsk := new(big.Int).Set(ask)
	wantNsk := new(big.Int).Set(nsk)

	spends := []SpendPlan{
		{Note: &note.SaplingNote{Value: 20000}, Ask: ask, Nsk: nsk, Position: 0},
		{Note: &note.SaplingNote{Value: 30000}, Ask: ask, Nsk: nsk, Position: 1},
	}

	var nk jubjub.Point
	data, _, err := buildSpends(spends, nk)
	if err != nil {
		t.Fatalf("buildSpends: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("expected 2 spend signing entries, got %d", len(data))
	}
	if data[0].Ask == data[1].Ask || data[0].Nsk == data[1].Nsk {
		t.Fatal("expected each SpendSigningData to own a distinct ask/nsk pointer")
	}

	data[0].Zero()

	if data[1].Ask.Cmp(wantAsk) != 0 {
		t.Fatalf("zeroing spend 0 corrupted spend 1's ask: got %s, want %s", data[1].Ask, wantAsk)
	}
	if data[1].Nsk.Cmp(wantNsk) != 0 {
		t.Fatalf("zeroing spend 0 corrupted spend 1's nsk: got %s, want %s", data[1].Nsk, wantNsk)
	}
	if ask.Cmp(wantAsk) != 0 || nsk.Cmp(wantNsk) != 0 {
		t.Fatal("zeroing a spend's signing data must not mutate the caller's original ask/nsk")
	}
}

// TestBuildShieldedMultiSpendRkSurvivesFirstSpendZero exercises the same bug
// through BuildShielded directly: with two notes funding one send (the
// default largest-first selector routinely picks more than one), each
// spend's rk must keep matching its own ask after an earlier spend's signing
// data has been zeroed, matching what internal/signer.SignShielded does
// between processing each spend in a bundle.
func TestBuildShieldedMultiSpendRkSurvivesFirstSpendZero(t *testing.T) {
	ask, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random ask: %v", err)
	}
	nsk, err := jubjub.RandomScalar()
	if err != nil {
		t.Fatalf("random nsk: %v", err)
	}

	spends := []SpendPlan{
		{Note: &note.SaplingNote{Value: 20000}, Ask: ask, Nsk: nsk, Position: 0},
		{Note: &note.SaplingNote{Value: 30000}, Ask: ask, Nsk: nsk, Position: 1},
	}
	outputs := []OutputPlan{{Value: 10000}}

	var nk jubjub.Point
	bundle, err := BuildShielded(spends, outputs, nk, zcash.Zatoshi(1000))
	if err != nil {
		t.Fatalf("BuildShielded: %v", err)
	}

	secondAlpha := new(big.Int).Set(bundle.Spends[1].Alpha)
	wantSecondRandomizedAsk := jubjub.AddMod(ask, secondAlpha)
	wantSecondRk := jubjub.Compress(jubjub.ScalarMult(jubjub.SpendAuthGenerator(), wantSecondRandomizedAsk))

	bundle.Spends[0].Zero()

	gotSecondRandomizedAsk := jubjub.AddMod(bundle.Spends[1].Ask, bundle.Spends[1].Alpha)
	gotSecondRk := jubjub.Compress(jubjub.ScalarMult(jubjub.SpendAuthGenerator(), gotSecondRandomizedAsk))
	if gotSecondRk != wantSecondRk {
		t.Fatal("zeroing the first spend corrupted the second spend's ask, changing its rk")
	}
}
