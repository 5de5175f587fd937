package treasury

import (
	"fmt"
	"math"

	"github.com/GoPolymarket/housevault/internal/config"
)

const bpsDenominator = 10_000

// maxTargetReserve keeps target * OverflowBps inside uint64.
const maxTargetReserve = math.MaxUint64 / 2

// Config holds the rebalancing ratios, all in basis points.
type Config struct {
	MinTargetReserve    uint64
	OverflowBps         uint64
	DrainBps            uint64
	OverflowTransferBps uint64
	VolumeWeight        uint64
	VolumeBoostBps      uint64
	TargetMultiplierBps uint64
}

func DefaultConfig() Config {
	return Config{
		MinTargetReserve:    1_000,
		OverflowBps:         11_000,
		DrainBps:            2_500,
		OverflowTransferBps: 1_000,
		VolumeWeight:        6,
		VolumeBoostBps:      15_000,
		TargetMultiplierBps: 15_000,
	}
}

// ConfigFrom maps the file/env configuration onto the core, keeping defaults
// for anything left at zero.
func ConfigFrom(c config.TreasuryConfig) Config {
	out := DefaultConfig()
	if c.MinTargetReserve > 0 {
		out.MinTargetReserve = c.MinTargetReserve
	}
	if c.OverflowBps > 0 {
		out.OverflowBps = c.OverflowBps
	}
	if c.DrainBps > 0 {
		out.DrainBps = c.DrainBps
	}
	if c.OverflowTransferBps > 0 {
		out.OverflowTransferBps = c.OverflowTransferBps
	}
	if c.VolumeWeight > 0 {
		out.VolumeWeight = c.VolumeWeight
	}
	if c.VolumeBoostBps > 0 {
		out.VolumeBoostBps = c.VolumeBoostBps
	}
	if c.TargetMultiplierBps > 0 {
		out.TargetMultiplierBps = c.TargetMultiplierBps
	}
	return out
}

func (c Config) validate() (Config, error) {
	if c.OverflowBps <= bpsDenominator || c.OverflowBps > 2*bpsDenominator {
		return c, fmt.Errorf("overflow_bps must be in (10000, 20000], got %d", c.OverflowBps)
	}
	if c.DrainBps >= bpsDenominator {
		return c, fmt.Errorf("drain_bps must be below 10000, got %d", c.DrainBps)
	}
	if c.OverflowTransferBps == 0 || c.OverflowTransferBps > bpsDenominator {
		return c, fmt.Errorf("overflow_transfer_bps must be in (0, 10000], got %d", c.OverflowTransferBps)
	}
	if c.VolumeWeight == 0 {
		return c, fmt.Errorf("volume_weight must be positive")
	}
	if c.TargetMultiplierBps == 0 {
		return c, fmt.Errorf("target_multiplier_bps must be positive")
	}

	// Smallest target for which integer overflow threshold is still strictly above it.
	gap := c.OverflowBps - bpsDenominator
	floor := (bpsDenominator + gap - 1) / gap
	if c.MinTargetReserve < floor {
		c.MinTargetReserve = floor
	}
	if c.MinTargetReserve > maxTargetReserve {
		c.MinTargetReserve = maxTargetReserve
	}
	return c, nil
}
