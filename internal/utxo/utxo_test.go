package utxo

import (
	"testing"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func sampleUTXO(vout uint32, value zcash.Zatoshi, height uint32) *UTXO {
	return &UTXO{
		Outpoint:      Outpoint{Vout: vout},
		Value:         value,
		BlockHeight:   height,
		Confirmations: 1,
	}
}

func TestLockAllOrNothing(t *testing.T) {
	c := NewCache(0)
	u1 := sampleUTXO(0, 100000, 10)
	u2 := sampleUTXO(1, 50000, 10)
	c.Add("addr1", u1)
	c.Add("addr1", u2)

	if err := c.Lock("addr1", []Outpoint{u1.Outpoint}, "build-a"); err != nil {
		t.Fatalf("first lock should succeed: %v", err)
	}
	if err := c.Lock("addr1", []Outpoint{u1.Outpoint, u2.Outpoint}, "build-b"); err == nil {
		t.Error("locking an already-locked utxo should fail")
	}

	c.Unlock("build-a")
	if err := c.Lock("addr1", []Outpoint{u1.Outpoint}, "build-b"); err != nil {
		t.Errorf("lock should succeed after unlock: %v", err)
	}
}

func TestSpendableRespectsMinConf(t *testing.T) {
	c := NewCache(0)
	c.Add("addr1", sampleUTXO(0, 100000, 100))

	spendable := c.Spendable("addr1", 105, 10)
	if len(spendable) != 0 {
		t.Errorf("utxo with 6 confirmations should not satisfy minConf=10")
	}

	spendable = c.Spendable("addr1", 110, 10)
	if len(spendable) != 1 {
		t.Errorf("utxo with 11 confirmations should satisfy minConf=10")
	}
}

func TestSelectLargestFirst(t *testing.T) {
	spendable := []*UTXO{
		sampleUTXO(0, 50000, 1),
		sampleUTXO(1, 200000, 1),
		sampleUTXO(2, 30000, 1),
	}

	chosen, total, err := Select(spendable, 150000, LargestFirst)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(chosen) != 1 || total != 200000 {
		t.Errorf("expected single 200000 utxo, got %d utxos totaling %d", len(chosen), total)
	}
}

func TestSelectInsufficientFunds(t *testing.T) {
	spendable := []*UTXO{sampleUTXO(0, 100000, 1)}
	_, _, err := Select(spendable, 200000, LargestFirst)
	if err != zcash.ErrInsufficientFunds {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}
