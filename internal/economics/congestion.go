// Package economics implements the optional congestion-aware fee
// estimator, an EIP-1559-style recent-usage-window, move-toward-target,
// clamp-to-min/max update loop applied to bytes-per-block and
// zatoshi-per-byte. It is never the default; a caller opts in via
// internal/txbuilder.Params.Fee or the binaries' -congestion-fees flag,
// and internal/txbuilder.DefaultFeeModel stays the fixed fallback.
package economics

import (
	"sync"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

const (
	// MinFeePerByte floors the estimator's output regardless of how quiet
	// the network has been.
	MinFeePerByte = zcash.Zatoshi(1)

	// feeUpdateDenominator controls how quickly the fee moves toward the
	// target each observation.
	feeUpdateDenominator = 8
)

// CongestionFeeEstimator tracks recent block-size usage against a target
// and moves a per-byte fee rate toward whatever level would keep usage
// near that target.
type CongestionFeeEstimator struct {
	mu sync.RWMutex

	perByte     zcash.Zatoshi
	targetBytes uint64
	maxPerByte  zcash.Zatoshi

	recentSizes []uint64
	windowSize  int

	model txbuilderFeeModel
}

// txbuilderFeeModel mirrors internal/txbuilder.FeeModel's fixed fields.
// CongestionFeeEstimator satisfies internal/txbuilder.FeeEstimator
// structurally, so this package has no need to import txbuilder at all.
type txbuilderFeeModel struct {
	Base                    zcash.Zatoshi
	PerInput, PerOutput     zcash.Zatoshi
	BytesPerIn, BytesPerOut int
}

// NewCongestionFeeEstimator builds an estimator seeded with initialPerByte,
// targeting targetBytes per block and never exceeding maxPerByte.
func NewCongestionFeeEstimator(initialPerByte zcash.Zatoshi, targetBytes uint64, maxPerByte zcash.Zatoshi, windowSize int) *CongestionFeeEstimator {
	if windowSize <= 0 {
		windowSize = 10
	}
	return &CongestionFeeEstimator{
		perByte:     initialPerByte,
		targetBytes: targetBytes,
		maxPerByte:  maxPerByte,
		windowSize:  windowSize,
		model: txbuilderFeeModel{
			Base:        1000,
			BytesPerIn:  148,
			BytesPerOut: 34,
		},
	}
}

// PerByte returns the current fee-per-byte rate.
func (c *CongestionFeeEstimator) PerByte() zcash.Zatoshi {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.perByte
}

// Observe folds one block's size into the recent-usage window and moves
// perByte toward whatever rate would have kept that block at
// targetBytes.
func (c *CongestionFeeEstimator) Observe(blockSizeBytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recentSizes = append(c.recentSizes, blockSizeBytes)
	if len(c.recentSizes) > c.windowSize {
		c.recentSizes = c.recentSizes[1:]
	}

	if blockSizeBytes > c.targetBytes {
		delta := blockSizeBytes - c.targetBytes
		step := c.perByte * zcash.Zatoshi(delta) / zcash.Zatoshi(c.targetBytes) / feeUpdateDenominator
		if step < 1 {
			step = 1
		}
		c.perByte += step
	} else if blockSizeBytes < c.targetBytes {
		delta := c.targetBytes - blockSizeBytes
		step := c.perByte * zcash.Zatoshi(delta) / zcash.Zatoshi(c.targetBytes) / feeUpdateDenominator
		if step > c.perByte-MinFeePerByte {
			step = c.perByte - MinFeePerByte
		}
		c.perByte -= step
	}

	if c.perByte < MinFeePerByte {
		c.perByte = MinFeePerByte
	}
	if c.perByte > c.maxPerByte {
		c.perByte = c.maxPerByte
	}
}

// Estimate implements internal/txbuilder.FeeEstimator: the larger of the
// fixed fee (base plus per-input/per-output charges) and the observed
// per-byte rate applied to the estimated transaction size.
func (c *CongestionFeeEstimator) Estimate(nIn, nOut int) zcash.Zatoshi {
	c.mu.RLock()
	perByte := c.perByte
	c.mu.RUnlock()

	sizeEst := 10 + nIn*c.model.BytesPerIn + nOut*c.model.BytesPerOut
	byFee := c.model.Base + zcash.Zatoshi(nIn)*c.model.PerInput + zcash.Zatoshi(nOut)*c.model.PerOutput
	bySize := zcash.Zatoshi(sizeEst) * perByte
	if bySize > byFee {
		return bySize
	}
	return byFee
}
