package service

import (
	"context"
	"fmt"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
)

// MirrorReconciler is the read side of a TreasuryMirror.
type MirrorReconciler interface {
	Balances(ctx context.Context) (map[string]uint64, error)
	OpenBets(ctx context.Context, gameKey string) ([]*model.Bet, error)
	Reset(ctx context.Context, state model.TreasuryState) error
}

// ReconcileMirror compares the mirror with the restored treasury state and
// rewrites it when they disagree. The mirror can fall behind when Redis
// outlives the database or a mirror write failed. It returns the number of
// mismatches found.
func ReconcileMirror(ctx context.Context, m MirrorReconciler, state model.TreasuryState) (int, error) {
	balances, err := m.Balances(ctx)
	if err != nil {
		return 0, fmt.Errorf("read mirrored balances: %w", err)
	}

	drift := 0
	seen := make(map[string]bool, len(state.Partitions))
	for _, p := range state.Partitions {
		seen[p.ID] = true
		if got, ok := balances[p.ID]; !ok || got != p.Balance {
			drift++
			logger.Warn("mirrored balance differs from treasury", "partition", p.ID, "mirror", got, "treasury", p.Balance)
		}
	}
	for id := range balances {
		if !seen[id] {
			drift++
			logger.Warn("mirror holds unknown partition", "partition", id)
		}
	}

	open := make(map[string]map[uint64]bool, len(state.Games))
	for _, b := range state.OpenBets {
		if open[b.GameKey] == nil {
			open[b.GameKey] = make(map[uint64]bool)
		}
		open[b.GameKey][b.ID] = true
	}
	for _, g := range state.Games {
		bets, err := m.OpenBets(ctx, g.Key)
		if err != nil {
			return drift, fmt.Errorf("read mirrored bets of %s: %w", g.Key, err)
		}
		want := open[g.Key]
		stale := len(bets) != len(want)
		for _, b := range bets {
			if !want[b.ID] {
				stale = true
			}
		}
		if stale {
			drift++
			logger.ForGame(g.Key).Warn("mirrored open bets differ from treasury", "mirror", len(bets), "treasury", len(want))
		}
	}

	if drift == 0 {
		return 0, nil
	}
	if err := m.Reset(ctx, state); err != nil {
		return drift, fmt.Errorf("reset mirror: %w", err)
	}
	logger.Info("treasury mirror rewritten", "mismatches", drift)
	return drift, nil
}
