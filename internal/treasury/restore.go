package treasury

import (
	"fmt"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
)

// Restore loads persisted state into a fresh treasury. Claimed games get a
// new capability each; the returned map is keyed by game key so the caller
// can hand them back to the transport layer.
func (t *Treasury) Restore(state model.TreasuryState) (map[string]*Capability, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.games) > 0 || t.lastBetID.Load() > 0 {
		return nil, fmt.Errorf("restore requires an empty treasury")
	}

	balances := make(map[string]model.PartitionSnapshot, len(state.Partitions))
	for _, p := range state.Partitions {
		balances[p.ID] = p
	}

	games := make(map[string]*gamePartition, len(state.Games))
	caps := make(map[string]*Capability)
	for _, rec := range state.Games {
		if rec == nil || rec.Key == "" {
			continue
		}
		if _, dup := games[rec.Key]; dup {
			return nil, fmt.Errorf("duplicate game %s in restored state", rec.Key)
		}
		p := balances[rec.Key]
		gp := &gamePartition{
			reserve: reserve{id: rec.Key, balance: p.Balance},
			record:  *rec.Clone(),
			levels:  t.engine.levelsFor(p.RollingVolume),
			ledger:  newLedger(),
		}
		if rec.CapabilityClaimed {
			gp.cap = &Capability{gameKey: rec.Key, identity: rec.Identity}
			caps[rec.Key] = gp.cap
		}
		games[rec.Key] = gp
	}

	lastID := state.LastBetID
	for _, set := range [][]*model.Bet{state.SettledBets, state.OpenBets} {
		for _, b := range set {
			if b == nil {
				continue
			}
			gp, ok := games[b.GameKey]
			if !ok {
				return nil, fmt.Errorf("bet %d references unknown game %s", b.ID, b.GameKey)
			}
			if _, dup := gp.ledger.get(b.ID); dup {
				return nil, fmt.Errorf("duplicate bet %d in restored state", b.ID)
			}
			gp.ledger.record(b.Clone())
			lastID = max(lastID, b.ID)
		}
	}

	t.central.mu.Lock()
	t.central.balance = balances[model.CentralPartitionID].Balance
	t.central.mu.Unlock()

	t.games = games
	t.lastBetID.Store(lastID)

	logger.Info("treasury restored",
		"games", len(games),
		"open_bets", len(state.OpenBets),
		"settled_bets", len(state.SettledBets),
		"last_bet_id", lastID,
	)
	return caps, nil
}

// State exports everything Restore needs.
func (t *Treasury) State() model.TreasuryState {
	t.mu.RLock()
	parts := t.sortedGames()
	for _, gp := range parts {
		gp.mu.Lock()
	}
	t.central.mu.Lock()
	t.mu.RUnlock()

	state := model.TreasuryState{
		Partitions: []model.PartitionSnapshot{t.central.snapshot()},
		LastBetID:  t.lastBetID.Load(),
	}
	for _, gp := range parts {
		state.Games = append(state.Games, gp.record.Clone())
		state.Partitions = append(state.Partitions, gp.snapshot())
		state.OpenBets = append(state.OpenBets, gp.ledger.openBets()...)
		state.SettledBets = append(state.SettledBets, gp.ledger.settledBets()...)
	}

	t.central.mu.Unlock()
	for i := len(parts) - 1; i >= 0; i-- {
		parts[i].mu.Unlock()
	}
	return state
}
