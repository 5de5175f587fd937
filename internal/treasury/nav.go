package treasury

import (
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/shopspring/decimal"
)

// NAVSnapshot is a consistent view of every partition at one instant.
type NAVSnapshot struct {
	Total   uint64                    `json:"total"`
	Central uint64                    `json:"central"`
	Games   []model.PartitionSnapshot `json:"games"`
	TakenAt time.Time                 `json:"taken_at"`
}

// Snapshot locks every game partition in key order and then central, so no
// half-applied rebalance is ever visible. Unregistered games still hold funds
// and are included.
func (t *Treasury) Snapshot() NAVSnapshot {
	t.mu.RLock()
	parts := t.sortedGames()
	for _, gp := range parts {
		gp.mu.Lock()
	}
	t.central.mu.Lock()
	t.mu.RUnlock()

	snap := NAVSnapshot{
		Central: t.central.balance,
		Games:   make([]model.PartitionSnapshot, 0, len(parts)),
		TakenAt: t.now(),
	}
	total := t.central.balance
	for _, gp := range parts {
		snap.Games = append(snap.Games, gp.snapshot())
		total = addSaturating(total, gp.balance)
	}
	snap.Total = total

	t.central.mu.Unlock()
	for i := len(parts) - 1; i >= 0; i-- {
		parts[i].mu.Unlock()
	}
	return snap
}

// TotalBalance is the sum of central and every game partition.
func (t *Treasury) TotalBalance() uint64 {
	return t.Snapshot().Total
}

func (t *Treasury) CentralBalance() uint64 {
	t.central.mu.Lock()
	defer t.central.mu.Unlock()
	return t.central.balance
}

// PerGameBalance reports one game partition's balance.
func (t *Treasury) PerGameBalance(gameKey string) (uint64, error) {
	gp, err := t.lookup(gameKey)
	if err != nil {
		return 0, err
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.balance, nil
}

// GameTreasuryBalance reports a game partition with its current thresholds.
func (t *Treasury) GameTreasuryBalance(gameKey string) (model.PartitionSnapshot, error) {
	gp, err := t.lookup(gameKey)
	if err != nil {
		return model.PartitionSnapshot{}, err
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.snapshot(), nil
}

// NAVPerShare divides the total balance by an investor token supply.
func (t *Treasury) NAVPerShare(supply uint64) decimal.Decimal {
	return t.Snapshot().PerShare(supply)
}

func (s NAVSnapshot) PerShare(supply uint64) decimal.Decimal {
	if supply == 0 {
		return decimal.Zero
	}
	return toDecimal(s.Total).DivRound(toDecimal(supply), 18)
}
