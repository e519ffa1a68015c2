package economics

import "testing"

func TestObserveIncreasesFeeWhenBlocksOverTarget(t *testing.T) {
	e := NewCongestionFeeEstimator(10, 1000, 1000, 5)
	before := e.PerByte()
	e.Observe(2000)
	if e.PerByte() <= before {
		t.Fatalf("expected fee to rise after an over-target block: before=%d after=%d", before, e.PerByte())
	}
}

func TestObserveDecreasesFeeWhenBlocksUnderTarget(t *testing.T) {
	e := NewCongestionFeeEstimator(100, 1000, 1000, 5)
	before := e.PerByte()
	e.Observe(200)
	if e.PerByte() >= before {
		t.Fatalf("expected fee to fall after an under-target block: before=%d after=%d", before, e.PerByte())
	}
}

func TestPerByteNeverGoesBelowMinFee(t *testing.T) {
	e := NewCongestionFeeEstimator(2, 1000, 1000, 5)
	for i := 0; i < 50; i++ {
		e.Observe(0)
	}
	if e.PerByte() < MinFeePerByte {
		t.Fatalf("fee rate dropped below MinFeePerByte: %d", e.PerByte())
	}
}

func TestPerByteNeverExceedsMax(t *testing.T) {
	e := NewCongestionFeeEstimator(2, 1000, 50, 5)
	for i := 0; i < 50; i++ {
		e.Observe(100000)
	}
	if e.PerByte() > 50 {
		t.Fatalf("fee rate exceeded configured max: %d", e.PerByte())
	}
}

func TestEstimateUsesTheLargerOfSizeAndFixedFee(t *testing.T) {
	e := NewCongestionFeeEstimator(1, 1000, 1000, 5)
	est := e.Estimate(1, 2)
	if est < 1000 {
		t.Fatalf("expected at least the base fixed fee of 1000, got %d", est)
	}
}
