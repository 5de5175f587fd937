package treasury

import (
	"maps"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// RegisterParams describes a game module at registration time.
type RegisterParams struct {
	Identity     common.Address
	Name         string
	Version      string
	MinBet       uint64
	MaxBet       uint64
	HouseEdgeBps uint32
	MaxPayout    uint64
	Metadata     map[string]string
}

// RegisterGame adds a game to the registry and opens its empty partition.
// The key is derived from the caller, name and version, so the same admin
// cannot register the same release twice.
func (t *Treasury) RegisterGame(caller common.Address, p RegisterParams) (_ *model.GameRecord, err error) {
	defer countReject(&err)
	if err := t.requireAdmin(caller); err != nil {
		return nil, err
	}
	if p.Name == "" || p.Version == "" {
		return nil, apperrors.NewInvalidRequest("game name and version are required")
	}
	if p.Identity == (common.Address{}) {
		return nil, apperrors.NewInvalidRequest("game identity is required")
	}
	if err := checkLimits(p.MinBet, p.MaxBet); err != nil {
		return nil, err
	}

	key := DeriveGameKey(caller, p.Name, p.Version)
	now := t.now()
	gp := &gamePartition{
		reserve: reserve{id: key},
		record: model.GameRecord{
			Key:          key,
			Identity:     p.Identity,
			Registrant:   caller,
			Name:         p.Name,
			Version:      p.Version,
			MinBet:       p.MinBet,
			MaxBet:       p.MaxBet,
			HouseEdgeBps: p.HouseEdgeBps,
			MaxPayout:    p.MaxPayout,
			Metadata:     maps.Clone(p.Metadata),
			Active:       true,
			RegisteredAt: now,
			UpdatedAt:    now,
		},
		levels: t.engine.levelsFor(0),
		ledger: newLedger(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.games[key]; ok {
		old.mu.Lock()
		free := old.reusable()
		old.mu.Unlock()
		if !free {
			return nil, apperrors.Newf(apperrors.ErrAlreadyRegistered,
				"game %s@%s is already registered as %s", p.Name, p.Version, key)
		}
	}
	t.games[key] = gp

	logger.ForGame(key).Info("game registered",
		"name", p.Name,
		"version", p.Version,
		"identity", p.Identity.Hex(),
	)
	rec := gp.record.Clone()
	t.publish(model.TreasuryEvent{
		Type:       model.EventGameRegistered,
		GameKey:    key,
		Game:       rec,
		Partitions: []model.PartitionSnapshot{gp.snapshot()},
	})
	return rec, nil
}

// ClaimCapability hands the game module its one capability. Only the
// identity named at registration may claim, and only once.
func (t *Treasury) ClaimCapability(caller common.Address, gameKey string) (_ *Capability, err error) {
	defer countReject(&err)
	gp, err := t.lookup(gameKey)
	if err != nil {
		return nil, err
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	if !gp.record.Active {
		return nil, apperrors.Newf(apperrors.ErrGameNotRegistered, "game %s is not registered", gameKey)
	}
	if caller != gp.record.Identity {
		return nil, apperrors.New(apperrors.ErrNotAuthorizedModule, "caller is not the registered game module", nil)
	}
	if gp.record.CapabilityClaimed || gp.cap != nil {
		return nil, apperrors.Newf(apperrors.ErrCapabilityAlreadyClaimed, "capability for %s was already claimed", gameKey)
	}

	cap := &Capability{gameKey: gameKey, identity: caller}
	gp.cap = cap
	gp.record.CapabilityClaimed = true
	gp.record.UpdatedAt = t.now()

	logger.ForGame(gameKey).Info("capability issued", "identity", caller.Hex())
	t.publish(model.TreasuryEvent{
		Type:    model.EventCapabilityIssued,
		GameKey: gameKey,
		Game:    gp.record.Clone(),
	})
	return cap, nil
}

// UnregisterGame removes a game from the active set. Its balance stays in
// the partition until SweepToCentral; open bets can still be settled.
func (t *Treasury) UnregisterGame(caller common.Address, gameKey string) (err error) {
	defer countReject(&err)
	if err := t.requireAdmin(caller); err != nil {
		return err
	}
	gp, err := t.lookup(gameKey)
	if err != nil {
		return err
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	if !gp.record.Active {
		return apperrors.Newf(apperrors.ErrGameNotRegistered, "game %s is not registered", gameKey)
	}
	gp.record.Active = false
	gp.record.UpdatedAt = t.now()

	logger.ForGame(gameKey).Info("game unregistered",
		"balance", gp.balance,
		"open_bets", gp.ledger.open,
	)
	t.publish(model.TreasuryEvent{
		Type:       model.EventGameUnregistered,
		GameKey:    gameKey,
		Game:       gp.record.Clone(),
		Partitions: []model.PartitionSnapshot{gp.snapshot()},
	})
	return nil
}

// RequestLimitUpdate lets a game tighten its own bet limits. Raising the
// minimum and lowering the maximum are the only accepted moves.
func (t *Treasury) RequestLimitUpdate(cap *Capability, newMin, newMax uint64) (err error) {
	defer countReject(&err)
	gp, err := t.partitionFor(cap)
	if err != nil {
		return err
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	if err := gp.checkCapability(cap, true); err != nil {
		return err
	}
	if err := checkLimits(newMin, newMax); err != nil {
		return err
	}
	if newMin < gp.record.MinBet || newMax > gp.record.MaxBet {
		return apperrors.Newf(apperrors.ErrInvalidLimits,
			"limits [%d, %d] widen current [%d, %d]", newMin, newMax, gp.record.MinBet, gp.record.MaxBet)
	}
	t.applyLimitsLocked(gp, newMin, newMax, nil)
	return nil
}

// UpdateLimits is the admin override. maxPayout is left unchanged when nil.
func (t *Treasury) UpdateLimits(caller common.Address, gameKey string, newMin, newMax uint64, maxPayout *uint64) (err error) {
	defer countReject(&err)
	if err := t.requireAdmin(caller); err != nil {
		return err
	}
	if err := checkLimits(newMin, newMax); err != nil {
		return err
	}
	gp, err := t.lookup(gameKey)
	if err != nil {
		return err
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	if !gp.record.Active {
		return apperrors.Newf(apperrors.ErrGameNotRegistered, "game %s is not registered", gameKey)
	}
	t.applyLimitsLocked(gp, newMin, newMax, maxPayout)
	return nil
}

func (t *Treasury) applyLimitsLocked(gp *gamePartition, newMin, newMax uint64, maxPayout *uint64) {
	gp.record.MinBet = newMin
	gp.record.MaxBet = newMax
	if maxPayout != nil {
		gp.record.MaxPayout = *maxPayout
	}
	gp.record.UpdatedAt = t.now()

	logger.ForGame(gp.id).Info("bet limits updated",
		"min_bet", newMin,
		"max_bet", newMax,
		"max_payout", gp.record.MaxPayout,
	)
	t.publish(model.TreasuryEvent{
		Type:    model.EventGameUpdated,
		GameKey: gp.id,
		Game:    gp.record.Clone(),
	})
}

func checkLimits(minBet, maxBet uint64) error {
	if minBet < 1 {
		return apperrors.New(apperrors.ErrInvalidLimits, "min_bet must be at least 1", nil)
	}
	if minBet > maxBet {
		return apperrors.Newf(apperrors.ErrInvalidLimits, "min_bet %d exceeds max_bet %d", minBet, maxBet)
	}
	return nil
}

// Game returns a copy of one registry entry, active or not.
func (t *Treasury) Game(gameKey string) (*model.GameRecord, error) {
	gp, err := t.lookup(gameKey)
	if err != nil {
		return nil, err
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.record.Clone(), nil
}

// Games lists every registry entry ordered by key.
func (t *Treasury) Games() []*model.GameRecord {
	t.mu.RLock()
	parts := t.sortedGames()
	t.mu.RUnlock()

	out := make([]*model.GameRecord, 0, len(parts))
	for _, gp := range parts {
		gp.mu.Lock()
		out = append(out, gp.record.Clone())
		gp.mu.Unlock()
	}
	return out
}

func (t *Treasury) IsGameRegistered(gameKey string) bool {
	gp, err := t.lookup(gameKey)
	if err != nil {
		return false
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.record.Active
}
