package treasury

import (
	"math"
	"math/bits"
	"sync"

	"github.com/GoPolymarket/housevault/internal/model"
)

// reserve is a balance behind its own lock. Lock order is always game
// partitions (sorted by key) before central.
type reserve struct {
	mu      sync.Mutex
	id      string
	balance uint64
}

func (r *reserve) snapshot() model.PartitionSnapshot {
	return model.PartitionSnapshot{ID: r.id, Balance: r.balance}
}

// gamePartition is everything owned by one game. All fields are guarded by
// the embedded reserve lock.
type gamePartition struct {
	reserve
	record model.GameRecord
	cap    *Capability
	levels thresholds
	ledger *ledger
}

func (g *gamePartition) snapshot() model.PartitionSnapshot {
	return model.PartitionSnapshot{
		ID:                g.id,
		Balance:           g.balance,
		TargetReserve:     g.levels.Target,
		OverflowThreshold: g.levels.Overflow,
		DrainThreshold:    g.levels.Drain,
		RollingVolume:     g.levels.RollingVolume,
		OpenBets:          g.ledger.open,
	}
}

// reusable reports whether the key may be registered again.
func (g *gamePartition) reusable() bool {
	return !g.record.Active && g.balance == 0 && g.ledger.open == 0
}

func addChecked(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// addSaturating never wraps; used where failing is not an option.
func addSaturating(a, b uint64) uint64 {
	sum, ok := addChecked(a, b)
	if !ok {
		return math.MaxUint64
	}
	return sum
}

func mulBps(v, bps uint64) uint64 {
	hi, lo := bits.Mul64(v, bps)
	if hi >= bpsDenominator {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, bpsDenominator)
	return q
}

// covers reports whether balance plus the incoming wager reaches payout.
func covers(balance, wager, payout uint64) bool {
	total, ok := addChecked(balance, wager)
	return !ok || total >= payout
}
