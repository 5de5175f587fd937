package treasury

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	RebalanceNone        Direction = "none"
	RebalanceToCentral   Direction = "to_central"
	RebalanceFromCentral Direction = "from_central"
)

// RebalanceResult is the transfer applied after a settlement, if any.
type RebalanceResult struct {
	Direction Direction `json:"direction"`
	Amount    uint64    `json:"amount"`
}

// thresholds are the per-game reserve levels. Drain < Target < Overflow.
type thresholds struct {
	RollingVolume uint64
	Target        uint64
	Overflow      uint64
	Drain         uint64
}

// rebalancer holds the pure arithmetic of the rebalancing engine. It never
// returns errors: every amount is clamped instead.
type rebalancer struct {
	cfg     Config
	weight  decimal.Decimal
	divisor decimal.Decimal
	boost   decimal.Decimal
}

func newRebalancer(cfg Config) *rebalancer {
	weight := decimal.NewFromBigInt(new(big.Int).SetUint64(cfg.VolumeWeight), 0)
	return &rebalancer{
		cfg:     cfg,
		weight:  weight,
		divisor: weight.Add(decimal.NewFromInt(1)),
		boost:   decimal.NewFromBigInt(new(big.Int).SetUint64(cfg.VolumeBoostBps), -4),
	}
}

func (r *rebalancer) levelsFor(volume uint64) thresholds {
	target := mulBps(volume, r.cfg.TargetMultiplierBps)
	if target < r.cfg.MinTargetReserve {
		target = r.cfg.MinTargetReserve
	}
	if target > maxTargetReserve {
		target = maxTargetReserve
	}
	return thresholds{
		RollingVolume: volume,
		Target:        target,
		Overflow:      mulBps(target, r.cfg.OverflowBps),
		Drain:         mulBps(target, r.cfg.DrainBps),
	}
}

// observe folds one bet into the moving average:
// volume = (volume*weight + amount*boost) / (weight+1).
func (r *rebalancer) observe(current thresholds, amount uint64) thresholds {
	volume := toDecimal(current.RollingVolume).Mul(r.weight).
		Add(toDecimal(amount).Mul(r.boost)).
		Div(r.divisor)
	return r.levelsFor(fromDecimal(volume))
}

// plan decides the transfer for a game partition given its balance, the
// central balance and its levels.
func (r *rebalancer) plan(balance, central uint64, levels thresholds) RebalanceResult {
	switch {
	case balance > levels.Overflow:
		amount := mulBps(balance-levels.Target, r.cfg.OverflowTransferBps)
		if room := math.MaxUint64 - central; amount > room {
			amount = room
		}
		if amount == 0 {
			break
		}
		return RebalanceResult{Direction: RebalanceToCentral, Amount: amount}
	case balance < levels.Drain:
		amount := min(levels.Target-balance, central)
		if amount == 0 {
			break
		}
		return RebalanceResult{Direction: RebalanceFromCentral, Amount: amount}
	}
	return RebalanceResult{Direction: RebalanceNone}
}

func toDecimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func fromDecimal(d decimal.Decimal) uint64 {
	if d.Sign() <= 0 {
		return 0
	}
	n := d.Floor().BigInt()
	if !n.IsUint64() {
		return math.MaxUint64
	}
	return n.Uint64()
}
