// Package treasury is the coordination core of the house vault: a central
// reserve plus one isolated partition per registered game, the capability
// registry that gates access to them, the bet ledger and the rebalancing
// engine that moves liquidity between a game and central.
//
// Every game partition has its own lock, so bets on different games never
// contend. Central is the only shared partition and is always locked last.
package treasury

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/housevault/internal/pkg/logger"
	"github.com/GoPolymarket/housevault/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
)

type Treasury struct {
	admin  common.Address
	cfg    Config
	engine *rebalancer

	// mu guards the games map only. It is never acquired while a partition
	// lock is held.
	mu      sync.RWMutex
	games   map[string]*gamePartition
	central *reserve

	lastBetID atomic.Uint64

	events  EventSink
	payouts PayoutSink
	now     func() time.Time
}

type Option func(*Treasury)

func WithEventSink(s EventSink) Option {
	return func(t *Treasury) {
		if s != nil {
			t.events = s
		}
	}
}

func WithPayoutSink(s PayoutSink) Option {
	return func(t *Treasury) {
		if s != nil {
			t.payouts = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Treasury) {
		if now != nil {
			t.now = now
		}
	}
}

// Placement tells the game which partition took the wager; the same
// partition must be named when settling.
type Placement struct {
	BetID  uint64 `json:"bet_id"`
	Source string `json:"source"`
}

type Settlement struct {
	BetID       uint64          `json:"bet_id"`
	Payout      uint64          `json:"payout"`
	HouseResult int64           `json:"house_result"`
	Rebalance   RebalanceResult `json:"rebalance"`
}

func New(admin common.Address, cfg Config, opts ...Option) (*Treasury, error) {
	if admin == (common.Address{}) {
		return nil, errors.New("treasury admin address is required")
	}
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	t := &Treasury{
		admin:   admin,
		cfg:     cfg,
		engine:  newRebalancer(cfg),
		games:   make(map[string]*gamePartition),
		central: &reserve{id: model.CentralPartitionID},
		events:  discardEvents{},
		payouts: discardPayouts{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Treasury) Admin() common.Address {
	return t.admin
}

// DepositToCentral adds investor funds to the central partition.
func (t *Treasury) DepositToCentral(amount uint64) (err error) {
	defer countReject(&err)
	if amount == 0 {
		return apperrors.New(apperrors.ErrInvalidAmount, "deposit amount must be positive", nil)
	}

	t.central.mu.Lock()
	defer t.central.mu.Unlock()

	next, ok := addChecked(t.central.balance, amount)
	if !ok {
		return apperrors.New(apperrors.ErrInvalidAmount, "deposit overflows central balance", nil)
	}
	t.central.balance = next
	t.publish(model.TreasuryEvent{
		Type:       model.EventDeposit,
		Amount:     amount,
		Partitions: []model.PartitionSnapshot{t.central.snapshot()},
	})
	return nil
}

// RedeemFromCentral withdraws investor funds from the central partition and
// returns the amount released.
func (t *Treasury) RedeemFromCentral(amount uint64) (_ uint64, err error) {
	defer countReject(&err)
	if amount == 0 {
		return 0, apperrors.New(apperrors.ErrInvalidAmount, "redeem amount must be positive", nil)
	}

	t.central.mu.Lock()
	defer t.central.mu.Unlock()

	if amount > t.central.balance {
		return 0, apperrors.Newf(apperrors.ErrInsufficientBalance,
			"redeem %d exceeds central balance %d", amount, t.central.balance)
	}
	t.central.balance -= amount
	t.publish(model.TreasuryEvent{
		Type:       model.EventRedeem,
		Amount:     amount,
		Partitions: []model.PartitionSnapshot{t.central.snapshot()},
	})
	return amount, nil
}

// PlaceBet accepts a wager for the capability's game. The game partition
// takes it when it can cover expectedMaxPayout, otherwise central does; if
// neither can, the bet is refused and nothing changes.
func (t *Treasury) PlaceBet(cap *Capability, player common.Address, wager, expectedMaxPayout uint64) (_ Placement, err error) {
	defer countReject(&err)
	gp, err := t.partitionFor(cap)
	if err != nil {
		return Placement{}, err
	}
	if player == (common.Address{}) {
		return Placement{}, apperrors.NewInvalidRequest("player address is required")
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	if err := gp.checkCapability(cap, true); err != nil {
		return Placement{}, err
	}
	rec := &gp.record
	if wager < rec.MinBet || wager > rec.MaxBet {
		return Placement{}, apperrors.Newf(apperrors.ErrInvalidAmount,
			"wager %d outside limits [%d, %d]", wager, rec.MinBet, rec.MaxBet)
	}
	if expectedMaxPayout > rec.MaxPayout {
		return Placement{}, apperrors.Newf(apperrors.ErrInvalidAmount,
			"expected payout %d exceeds game max payout %d", expectedMaxPayout, rec.MaxPayout)
	}

	source := &gp.reserve
	if !covers(gp.balance, wager, expectedMaxPayout) {
		t.central.mu.Lock()
		defer t.central.mu.Unlock()
		if !covers(t.central.balance, wager, expectedMaxPayout) {
			return Placement{}, apperrors.Newf(apperrors.ErrInsufficientTreasuryForPayout,
				"neither game partition (%d) nor central (%d) covers payout %d",
				gp.balance, t.central.balance, expectedMaxPayout)
		}
		source = t.central
	}
	next, ok := addChecked(source.balance, wager)
	if !ok {
		return Placement{}, apperrors.New(apperrors.ErrInvalidAmount, "wager overflows partition balance", nil)
	}

	// Validation is complete; commit.
	source.balance = next
	bet := &model.Bet{
		ID:                t.lastBetID.Add(1),
		GameKey:           gp.id,
		Player:            player,
		Amount:            wager,
		ExpectedMaxPayout: expectedMaxPayout,
		Source:            source.id,
		PlacedAt:          t.now(),
	}
	gp.ledger.record(bet)
	gp.levels = t.engine.observe(gp.levels, wager)

	metrics.BetsTotal.WithLabelValues("placed", gp.record.Name).Inc()
	touched := []model.PartitionSnapshot{gp.snapshot()}
	if source == t.central {
		touched = append(touched, t.central.snapshot())
	}
	t.publish(model.TreasuryEvent{
		Type:       model.EventBetPlaced,
		GameKey:    gp.id,
		Amount:     wager,
		Bet:        bet.Clone(),
		Partitions: touched,
	})
	return Placement{BetID: bet.ID, Source: source.id}, nil
}

// SettleBet closes a bet, pays the player from the partition that took the
// wager and then rebalances the game partition against central.
// Settlement is still accepted after the game was unregistered so bets that
// were already open can be closed.
func (t *Treasury) SettleBet(cap *Capability, betID uint64, player common.Address, payout uint64, source string) (_ Settlement, err error) {
	defer countReject(&err)
	gp, err := t.partitionFor(cap)
	if err != nil {
		return Settlement{}, err
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	if err := gp.checkCapability(cap, false); err != nil {
		return Settlement{}, err
	}
	bet, ok := gp.ledger.get(betID)
	if !ok {
		return Settlement{}, apperrors.Newf(apperrors.ErrInvalidSettlement, "unknown bet %d", betID)
	}
	if bet.Settled {
		return Settlement{}, apperrors.Newf(apperrors.ErrBetAlreadySettled, "bet %d already settled", betID)
	}
	if bet.Player != player {
		return Settlement{}, apperrors.Newf(apperrors.ErrInvalidSettlement, "bet %d belongs to another player", betID)
	}
	if bet.Source != source {
		return Settlement{}, apperrors.Newf(apperrors.ErrInvalidSettlement,
			"bet %d was placed against %q, not %q", betID, bet.Source, source)
	}
	if payout > bet.ExpectedMaxPayout {
		return Settlement{}, apperrors.Newf(apperrors.ErrPayoutExceedsExpected,
			"payout %d exceeds expected max %d", payout, bet.ExpectedMaxPayout)
	}

	// Central is needed for the rebalance in any case; game lock is already held.
	t.central.mu.Lock()
	defer t.central.mu.Unlock()

	from := &gp.reserve
	if source == model.CentralPartitionID {
		from = t.central
	}
	if payout > from.balance {
		return Settlement{}, apperrors.Newf(apperrors.ErrInsufficientTreasury,
			"payout %d exceeds %s balance %d", payout, from.id, from.balance)
	}
	if payout > 0 {
		if err := t.payouts.Credit(player, betID, payout); err != nil {
			return Settlement{}, apperrors.New(apperrors.ErrInternal, "payout delivery failed", err)
		}
	}

	from.balance -= payout
	gp.ledger.settle(bet, payout, t.now())
	metrics.BetsTotal.WithLabelValues("settled", gp.record.Name).Inc()

	t.publish(model.TreasuryEvent{
		Type:       model.EventBetSettled,
		GameKey:    gp.id,
		Amount:     payout,
		Bet:        bet.Clone(),
		Partitions: []model.PartitionSnapshot{gp.snapshot(), t.central.snapshot()},
	})

	return Settlement{
		BetID:       betID,
		Payout:      payout,
		HouseResult: bet.HouseResult(),
		Rebalance:   t.rebalanceLocked(gp),
	}, nil
}

// rebalanceLocked applies the overflow or drain transfer for gp. Caller holds
// gp and central locks.
func (t *Treasury) rebalanceLocked(gp *gamePartition) RebalanceResult {
	res := t.engine.plan(gp.balance, t.central.balance, gp.levels)
	switch res.Direction {
	case RebalanceToCentral:
		gp.balance -= res.Amount
		t.central.balance += res.Amount
	case RebalanceFromCentral:
		t.central.balance -= res.Amount
		gp.balance += res.Amount
	default:
		return res
	}

	metrics.RebalanceTotal.WithLabelValues(string(res.Direction)).Inc()
	metrics.RebalanceAmount.WithLabelValues(string(res.Direction)).Add(float64(res.Amount))
	logger.ForGame(gp.id).Debug("partition rebalanced",
		"direction", res.Direction,
		"amount", res.Amount,
		"balance", gp.balance,
		"target", gp.levels.Target,
	)
	t.publish(model.TreasuryEvent{
		Type:       model.EventRebalanced,
		GameKey:    gp.id,
		Amount:     res.Amount,
		Partitions: []model.PartitionSnapshot{gp.snapshot(), t.central.snapshot()},
	})
	return res
}

// SweepToCentral moves the whole balance of an unregistered game to central.
// It is the explicit recovery step for funds left behind by unregistration.
func (t *Treasury) SweepToCentral(caller common.Address, gameKey string) (_ uint64, err error) {
	defer countReject(&err)
	if err := t.requireAdmin(caller); err != nil {
		return 0, err
	}
	gp, err := t.lookup(gameKey)
	if err != nil {
		return 0, err
	}

	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.record.Active {
		return 0, apperrors.NewInvalidRequest("unregister the game before sweeping its partition")
	}
	if gp.ledger.open > 0 {
		return 0, apperrors.Newf(apperrors.ErrGameHasOpenBets, "game has %d open bets", gp.ledger.open)
	}

	t.central.mu.Lock()
	defer t.central.mu.Unlock()

	amount := gp.balance
	if next, ok := addChecked(t.central.balance, amount); ok {
		t.central.balance = next
		gp.balance = 0
	} else {
		return 0, apperrors.New(apperrors.ErrInternal, "sweep overflows central balance", nil)
	}
	t.publish(model.TreasuryEvent{
		Type:       model.EventSwept,
		GameKey:    gp.id,
		Amount:     amount,
		Partitions: []model.PartitionSnapshot{gp.snapshot(), t.central.snapshot()},
	})
	return amount, nil
}

// OpenBets lists the unsettled bets of the capability's game.
func (t *Treasury) OpenBets(cap *Capability) ([]*model.Bet, error) {
	gp, err := t.partitionFor(cap)
	if err != nil {
		return nil, err
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if err := gp.checkCapability(cap, false); err != nil {
		return nil, err
	}
	return gp.ledger.openBets(), nil
}

// Bet returns a copy of one bet of the capability's game.
func (t *Treasury) Bet(cap *Capability, betID uint64) (*model.Bet, error) {
	gp, err := t.partitionFor(cap)
	if err != nil {
		return nil, err
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if err := gp.checkCapability(cap, false); err != nil {
		return nil, err
	}
	bet, ok := gp.ledger.get(betID)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "unknown bet %d", betID)
	}
	return bet.Clone(), nil
}

func (t *Treasury) requireAdmin(caller common.Address) error {
	if caller != t.admin {
		return apperrors.New(apperrors.ErrNotAdmin, "caller is not the platform admin", nil)
	}
	return nil
}

func (t *Treasury) lookup(gameKey string) (*gamePartition, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	gp, ok := t.games[gameKey]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrGameNotRegistered, "game %s is not registered", gameKey)
	}
	return gp, nil
}

func (t *Treasury) partitionFor(cap *Capability) (*gamePartition, error) {
	if cap == nil {
		return nil, apperrors.New(apperrors.ErrNotAuthorizedModule, "capability is required", nil)
	}
	return t.lookup(cap.gameKey)
}

// checkCapability runs under gp's lock.
func (g *gamePartition) checkCapability(cap *Capability, requireActive bool) error {
	if g.cap == nil || g.cap != cap {
		return apperrors.New(apperrors.ErrNotAuthorizedModule, "capability was not issued for this game", nil)
	}
	if requireActive && !g.record.Active {
		return apperrors.Newf(apperrors.ErrGameNotRegistered, "game %s is not registered", g.id)
	}
	return nil
}

// sortedGames returns the partitions in lock order. Caller holds t.mu.
func (t *Treasury) sortedGames() []*gamePartition {
	keys := make([]string, 0, len(t.games))
	for k := range t.games {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*gamePartition, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.games[k])
	}
	return out
}

func (t *Treasury) publish(ev model.TreasuryEvent) {
	if ev.At.IsZero() {
		ev.At = t.now()
	}
	for _, p := range ev.Partitions {
		metrics.PartitionBalance.WithLabelValues(p.ID).Set(float64(p.Balance))
	}
	t.events.Publish(ev)
}

func countReject(err *error) {
	if err == nil || *err == nil {
		return
	}
	metrics.Rejects.WithLabelValues(string(apperrors.Wrap(*err).Type)).Inc()
}
