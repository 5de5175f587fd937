package treasury

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/GoPolymarket/housevault/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	adminAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	gameAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	otherAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b3")
	playerAddr = common.HexToAddress("0x00000000000000000000000000000000000000c4")
)

type recordingPayouts struct {
	mu      sync.Mutex
	credits map[common.Address]uint64
	fail    error
}

func (r *recordingPayouts) Credit(player common.Address, _ uint64, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if r.credits == nil {
		r.credits = make(map[common.Address]uint64)
	}
	r.credits[player] += amount
	return nil
}

func (r *recordingPayouts) total(player common.Address) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credits[player]
}

func newTestTreasury(t *testing.T, opts ...Option) *Treasury {
	t.Helper()
	tr, err := New(adminAddr, DefaultConfig(), opts...)
	require.NoError(t, err)
	return tr
}

func diceParams(identity common.Address, name string) RegisterParams {
	return RegisterParams{
		Identity:     identity,
		Name:         name,
		Version:      "1.0.0",
		MinBet:       1_000_000,
		MaxBet:       50_000_000,
		HouseEdgeBps: 1667,
		MaxPayout:    500_000_000,
	}
}

func registerAndClaim(t *testing.T, tr *Treasury, identity common.Address, name string) (*model.GameRecord, *Capability) {
	t.Helper()
	rec, err := tr.RegisterGame(adminAddr, diceParams(identity, name))
	require.NoError(t, err)
	cap, err := tr.ClaimCapability(identity, rec.Key)
	require.NoError(t, err)
	return rec, cap
}

func requireType(t *testing.T, err error, want apperrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, want), "want %s, got %v", want, err)
}

func TestNewRejectsBadSetup(t *testing.T) {
	_, err := New(common.Address{}, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.OverflowBps = 10_000
	_, err = New(adminAddr, cfg)
	assert.Error(t, err)
}

func TestRegisterAndClaimCapability(t *testing.T) {
	tr := newTestTreasury(t)

	rec, err := tr.RegisterGame(adminAddr, diceParams(gameAddr, "dice"))
	require.NoError(t, err)
	assert.Equal(t, DeriveGameKey(adminAddr, "dice", "1.0.0"), rec.Key)
	assert.False(t, rec.CapabilityClaimed)
	assert.True(t, tr.IsGameRegistered(rec.Key))

	bal, err := tr.PerGameBalance(rec.Key)
	require.NoError(t, err)
	assert.Zero(t, bal)

	cap, err := tr.ClaimCapability(gameAddr, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, rec.Key, cap.GameKey())

	got, err := tr.Game(rec.Key)
	require.NoError(t, err)
	assert.True(t, got.CapabilityClaimed)

	_, err = tr.ClaimCapability(gameAddr, rec.Key)
	requireType(t, err, apperrors.ErrCapabilityAlreadyClaimed)
}

func TestRegisterGameValidation(t *testing.T) {
	tr := newTestTreasury(t)

	_, err := tr.RegisterGame(otherAddr, diceParams(gameAddr, "dice"))
	requireType(t, err, apperrors.ErrNotAdmin)

	p := diceParams(gameAddr, "dice")
	p.MinBet = 0
	_, err = tr.RegisterGame(adminAddr, p)
	requireType(t, err, apperrors.ErrInvalidLimits)

	p = diceParams(gameAddr, "dice")
	p.MinBet, p.MaxBet = 10, 9
	_, err = tr.RegisterGame(adminAddr, p)
	requireType(t, err, apperrors.ErrInvalidLimits)

	p = diceParams(gameAddr, "fixed")
	p.MinBet, p.MaxBet, p.HouseEdgeBps = 5, 5, 0
	_, err = tr.RegisterGame(adminAddr, p)
	require.NoError(t, err, "fixed-stake fair game is valid")

	_, err = tr.RegisterGame(adminAddr, diceParams(gameAddr, "dice"))
	require.NoError(t, err)
	_, err = tr.RegisterGame(adminAddr, diceParams(otherAddr, "dice"))
	requireType(t, err, apperrors.ErrAlreadyRegistered)
}

func TestClaimCapabilityErrors(t *testing.T) {
	tr := newTestTreasury(t)

	_, err := tr.ClaimCapability(gameAddr, "0xmissing")
	requireType(t, err, apperrors.ErrGameNotRegistered)

	rec, err := tr.RegisterGame(adminAddr, diceParams(gameAddr, "dice"))
	require.NoError(t, err)

	_, err = tr.ClaimCapability(otherAddr, rec.Key)
	requireType(t, err, apperrors.ErrNotAuthorizedModule)

	got, err := tr.Game(rec.Key)
	require.NoError(t, err)
	assert.False(t, got.CapabilityClaimed)
}

func TestCapabilityUniquenessUnderContention(t *testing.T) {
	tr := newTestTreasury(t)
	rec, err := tr.RegisterGame(adminAddr, diceParams(gameAddr, "dice"))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.ClaimCapability(gameAddr, rec.Key); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, granted)
}

func TestForgedCapabilityRejected(t *testing.T) {
	tr := newTestTreasury(t)
	rec, _ := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	forged := &Capability{gameKey: rec.Key, identity: gameAddr}
	_, err := tr.PlaceBet(forged, playerAddr, 1_000_000, 1_000_000)
	requireType(t, err, apperrors.ErrNotAuthorizedModule)

	_, err = tr.PlaceBet(nil, playerAddr, 1_000_000, 1_000_000)
	requireType(t, err, apperrors.ErrNotAuthorizedModule)

	err = tr.RequestLimitUpdate(forged, 2_000_000, 3_000_000)
	requireType(t, err, apperrors.ErrNotAuthorizedModule)
}

func TestCapabilityIsBoundToItsGame(t *testing.T) {
	tr := newTestTreasury(t)
	_, capA := registerAndClaim(t, tr, gameAddr, "dice")
	recB, capB := registerAndClaim(t, tr, otherAddr, "slots")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	placed, err := tr.PlaceBet(capB, playerAddr, 1_000_000, 2_000_000)
	require.NoError(t, err)

	_, err = tr.SettleBet(capA, placed.BetID, playerAddr, 0, placed.Source)
	requireType(t, err, apperrors.ErrInvalidSettlement)

	open, err := tr.OpenBets(capB)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, recB.Key, open[0].GameKey)
}

// Scenarios 2 and 3: a bet the game partition cannot cover is taken by
// central and paid back from central.
func TestPlaceAndSettleThroughCentral(t *testing.T) {
	payouts := &recordingPayouts{}
	tr := newTestTreasury(t, WithPayoutSink(payouts))
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")

	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	placed, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 50_000_000)
	require.NoError(t, err)
	assert.Equal(t, model.CentralPartitionID, placed.Source)
	assert.Equal(t, uint64(1_010_000_000), tr.CentralBalance())

	bet, err := tr.Bet(cap, placed.BetID)
	require.NoError(t, err)
	assert.False(t, bet.Settled)
	assert.Equal(t, uint64(10_000_000), bet.Amount)
	assert.Equal(t, uint64(50_000_000), bet.ExpectedMaxPayout)

	game, err := tr.GameTreasuryBalance(rec.Key)
	require.NoError(t, err)
	assert.Zero(t, game.Balance)
	assert.Equal(t, uint64(2_142_857), game.RollingVolume)
	assert.Equal(t, uint64(3_214_285), game.TargetReserve)

	settled, err := tr.SettleBet(cap, placed.BetID, playerAddr, 50_000_000, placed.Source)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000_000), settled.Payout)
	assert.Equal(t, int64(-40_000_000), settled.HouseResult)
	assert.Equal(t, uint64(50_000_000), payouts.total(playerAddr))

	// The empty game partition is below drain and refills to target.
	assert.Equal(t, RebalanceFromCentral, settled.Rebalance.Direction)
	assert.Equal(t, game.TargetReserve, settled.Rebalance.Amount)

	bet, err = tr.Bet(cap, placed.BetID)
	require.NoError(t, err)
	assert.True(t, bet.Settled)
	assert.Equal(t, uint64(960_000_000), tr.TotalBalance())

	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 50_000_000, placed.Source)
	requireType(t, err, apperrors.ErrBetAlreadySettled)
	_, err = tr.SettleBet(cap, placed.BetID, otherAddr, 0, model.CentralPartitionID)
	requireType(t, err, apperrors.ErrBetAlreadySettled)
}

func TestPlaceBetPrefersGamePartition(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	seed, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, rec.Key, seed.Source, "wager alone covers the payout")

	bal, err := tr.PerGameBalance(rec.Key)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), bal)
	assert.Equal(t, uint64(1_000_000_000), tr.CentralBalance())
}

func TestPlaceBetInsufficientTreasury(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(10_000_000))

	_, err := tr.PlaceBet(cap, playerAddr, 1_000_000, 50_000_000)
	requireType(t, err, apperrors.ErrInsufficientTreasuryForPayout)

	assert.Equal(t, uint64(10_000_000), tr.CentralBalance())
	bal, _ := tr.PerGameBalance(rec.Key)
	assert.Zero(t, bal)
	open, err := tr.OpenBets(cap)
	require.NoError(t, err)
	assert.Empty(t, open)
}

// Scenario 6.
func TestPlaceBetOutsideLimitsChangesNothing(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))
	before := tr.Snapshot()

	cases := []struct {
		name     string
		wager    uint64
		expected uint64
	}{
		{"below min", 999_999, 1_000_000},
		{"above max", 50_000_001, 50_000_001},
		{"zero", 0, 0},
		{"payout above game max", 1_000_000, 500_000_001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tr.PlaceBet(cap, playerAddr, tc.wager, tc.expected)
			requireType(t, err, apperrors.ErrInvalidAmount)
		})
	}

	after := tr.Snapshot()
	assert.Equal(t, before.Total, after.Total)
	assert.Equal(t, before.Central, after.Central)
	assert.Equal(t, before.Games, after.Games)
	g, _ := tr.GameTreasuryBalance(rec.Key)
	assert.Zero(t, g.RollingVolume)
}

func TestSettleBetValidation(t *testing.T) {
	payouts := &recordingPayouts{}
	tr := newTestTreasury(t, WithPayoutSink(payouts))
	_, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	placed, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 20_000_000)
	require.NoError(t, err)
	require.Equal(t, model.CentralPartitionID, placed.Source)

	_, err = tr.SettleBet(cap, placed.BetID+100, playerAddr, 0, placed.Source)
	requireType(t, err, apperrors.ErrInvalidSettlement)

	_, err = tr.SettleBet(cap, placed.BetID, otherAddr, 0, placed.Source)
	requireType(t, err, apperrors.ErrInvalidSettlement)

	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 0, cap.GameKey())
	requireType(t, err, apperrors.ErrInvalidSettlement)

	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 20_000_001, placed.Source)
	requireType(t, err, apperrors.ErrPayoutExceedsExpected)

	payouts.fail = errors.New("wallet offline")
	before := tr.Snapshot()
	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 20_000_000, placed.Source)
	require.Error(t, err)
	assert.Equal(t, before.Total, tr.TotalBalance())
	open, _ := tr.OpenBets(cap)
	assert.Len(t, open, 1, "failed delivery leaves the bet open")

	payouts.fail = nil
	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 20_000_000, placed.Source)
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000_000), payouts.total(playerAddr))
}

func TestSettleBetInsufficientSource(t *testing.T) {
	tr := newTestTreasury(t)
	_, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(100_000_000))

	placed, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 50_000_000)
	require.NoError(t, err)
	require.Equal(t, model.CentralPartitionID, placed.Source)

	// Investors pull liquidity between placement and settlement.
	_, err = tr.RedeemFromCentral(100_000_000)
	require.NoError(t, err)

	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 50_000_000, placed.Source)
	requireType(t, err, apperrors.ErrInsufficientTreasury)

	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 5_000_000, placed.Source)
	require.NoError(t, err)
}

// Scenario 4.
func TestDrainRefillsFromCentral(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	// Prime the game partition at its target.
	first, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 50_000_000)
	require.NoError(t, err)
	_, err = tr.SettleBet(cap, first.BetID, playerAddr, 50_000_000, first.Source)
	require.NoError(t, err)

	primed, err := tr.GameTreasuryBalance(rec.Key)
	require.NoError(t, err)
	require.Equal(t, primed.TargetReserve, primed.Balance)

	placed, err := tr.PlaceBet(cap, playerAddr, 1_000_000, 4_000_000)
	require.NoError(t, err)
	require.Equal(t, rec.Key, placed.Source)

	levels, err := tr.GameTreasuryBalance(rec.Key)
	require.NoError(t, err)
	afterPayout := levels.Balance - 4_000_000
	require.Less(t, afterPayout, levels.DrainThreshold)

	centralBefore := tr.CentralBalance()
	settled, err := tr.SettleBet(cap, placed.BetID, playerAddr, 4_000_000, placed.Source)
	require.NoError(t, err)
	assert.Equal(t, RebalanceFromCentral, settled.Rebalance.Direction)
	assert.Equal(t, levels.TargetReserve-afterPayout, settled.Rebalance.Amount)

	after, err := tr.GameTreasuryBalance(rec.Key)
	require.NoError(t, err)
	assert.Equal(t, levels.TargetReserve, after.Balance)
	assert.Equal(t, centralBefore-settled.Rebalance.Amount, tr.CentralBalance())
}

func TestDrainIsClampedByCentral(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	first, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 50_000_000)
	require.NoError(t, err)
	_, err = tr.SettleBet(cap, first.BetID, playerAddr, 50_000_000, first.Source)
	require.NoError(t, err)

	placed, err := tr.PlaceBet(cap, playerAddr, 1_000_000, 4_000_000)
	require.NoError(t, err)
	require.Equal(t, rec.Key, placed.Source)

	_, err = tr.RedeemFromCentral(tr.CentralBalance() - 500_000)
	require.NoError(t, err)

	before, _ := tr.PerGameBalance(rec.Key)
	settled, err := tr.SettleBet(cap, placed.BetID, playerAddr, 4_000_000, placed.Source)
	require.NoError(t, err, "a short central never blocks settlement")
	assert.Equal(t, RebalanceFromCentral, settled.Rebalance.Direction)
	assert.Equal(t, uint64(500_000), settled.Rebalance.Amount)
	assert.Zero(t, tr.CentralBalance())

	after, _ := tr.PerGameBalance(rec.Key)
	assert.Equal(t, before-4_000_000+500_000, after)
}

// Scenario 5.
func TestOverflowMovesTenPercentOfExcess(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	first, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 50_000_000)
	require.NoError(t, err)
	_, err = tr.SettleBet(cap, first.BetID, playerAddr, 50_000_000, first.Source)
	require.NoError(t, err)

	placed, err := tr.PlaceBet(cap, playerAddr, 5_000_000, 5_000_000)
	require.NoError(t, err)
	require.Equal(t, rec.Key, placed.Source)

	levels, err := tr.GameTreasuryBalance(rec.Key)
	require.NoError(t, err)
	require.Greater(t, levels.Balance, levels.OverflowThreshold)

	centralBefore := tr.CentralBalance()
	settled, err := tr.SettleBet(cap, placed.BetID, playerAddr, 0, placed.Source)
	require.NoError(t, err)

	want := (levels.Balance - levels.TargetReserve) / 10
	assert.Equal(t, RebalanceToCentral, settled.Rebalance.Direction)
	assert.Equal(t, want, settled.Rebalance.Amount)
	assert.Equal(t, centralBefore+want, tr.CentralBalance())

	after, _ := tr.PerGameBalance(rec.Key)
	assert.Equal(t, levels.Balance-want, after)
	assert.Equal(t, int64(5_000_000), settled.HouseResult)
}

func TestPartitionIsolation(t *testing.T) {
	tr := newTestTreasury(t)
	recA, capA := registerAndClaim(t, tr, gameAddr, "dice")
	recB, capB := registerAndClaim(t, tr, otherAddr, "slots")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	seed, err := tr.PlaceBet(capB, playerAddr, 20_000_000, 20_000_000)
	require.NoError(t, err)
	_, err = tr.SettleBet(capB, seed.BetID, playerAddr, 0, seed.Source)
	require.NoError(t, err)
	balB, _ := tr.PerGameBalance(recB.Key)
	levelsB, _ := tr.GameTreasuryBalance(recB.Key)

	for i := 0; i < 20; i++ {
		placed, err := tr.PlaceBet(capA, playerAddr, 2_000_000, 6_000_000)
		require.NoError(t, err)
		_, err = tr.SettleBet(capA, placed.BetID, playerAddr, uint64(i%3)*3_000_000, placed.Source)
		require.NoError(t, err)
	}

	after, _ := tr.PerGameBalance(recB.Key)
	assert.Equal(t, balB, after)
	levelsAfter, _ := tr.GameTreasuryBalance(recB.Key)
	assert.Equal(t, levelsB, levelsAfter)

	balA, _ := tr.PerGameBalance(recA.Key)
	assert.NotZero(t, balA)
}

func TestConservation(t *testing.T) {
	payouts := &recordingPayouts{}
	tr := newTestTreasury(t, WithPayoutSink(payouts))
	_, capA := registerAndClaim(t, tr, gameAddr, "dice")
	_, capB := registerAndClaim(t, tr, otherAddr, "slots")
	caps := []*Capability{capA, capB}

	rng := rand.New(rand.NewPCG(7, 11))
	var inflow, outflow uint64

	require.NoError(t, tr.DepositToCentral(500_000_000))
	inflow += 500_000_000

	for i := 0; i < 500; i++ {
		cap := caps[rng.IntN(len(caps))]
		switch rng.IntN(10) {
		case 0:
			amt := uint64(rng.IntN(50_000_000) + 1)
			require.NoError(t, tr.DepositToCentral(amt))
			inflow += amt
		case 1:
			amt := uint64(rng.IntN(20_000_000) + 1)
			if got, err := tr.RedeemFromCentral(amt); err == nil {
				outflow += got
			}
		default:
			wager := uint64(rng.IntN(49_000_000) + 1_000_000)
			expected := wager * uint64(rng.IntN(4)+1)
			placed, err := tr.PlaceBet(cap, playerAddr, wager, expected)
			if err != nil {
				requireType(t, err, apperrors.ErrInsufficientTreasuryForPayout)
				continue
			}
			inflow += wager
			payout := uint64(0)
			if rng.IntN(2) == 0 {
				payout = expected
			}
			if _, err := tr.SettleBet(cap, placed.BetID, playerAddr, payout, placed.Source); err == nil {
				outflow += payout
			}
		}
		require.Equal(t, inflow-outflow, tr.TotalBalance(), "step %d", i)
	}
	assert.Equal(t, tr.TotalBalance(), tr.TotalBalance())
}

func TestConcurrentBetsAcrossGames(t *testing.T) {
	payouts := &recordingPayouts{}
	tr := newTestTreasury(t, WithPayoutSink(payouts))
	require.NoError(t, tr.DepositToCentral(10_000_000_000))

	const games = 8
	const rounds = 200
	caps := make([]*Capability, games)
	for i := range caps {
		identity := common.HexToAddress(fmt.Sprintf("0x%040x", 0x1000+i))
		_, caps[i] = registerAndClaim(t, tr, identity, fmt.Sprintf("game-%d", i))
	}

	var wg sync.WaitGroup
	for i := range caps {
		wg.Add(1)
		go func(cap *Capability, seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed+1))
			for r := 0; r < rounds; r++ {
				placed, err := tr.PlaceBet(cap, playerAddr, 1_000_000, 2_000_000)
				if !assert.NoError(t, err) {
					return
				}
				payout := uint64(rng.IntN(2)) * 2_000_000
				_, err = tr.SettleBet(cap, placed.BetID, playerAddr, payout, placed.Source)
				assert.NoError(t, err)
			}
		}(caps[i], uint64(i))
	}

	// Readers run alongside writers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = tr.Snapshot()
		}
	}()

	wg.Wait()
	<-done

	wagered := uint64(games * rounds * 1_000_000)
	want := 10_000_000_000 + wagered - payouts.total(playerAddr)
	assert.Equal(t, want, tr.TotalBalance())
	assert.Equal(t, uint64(games*rounds), tr.lastBetID.Load())
}

func TestRequestLimitUpdateIsRiskReducingOnly(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")

	cases := []struct {
		name    string
		min     uint64
		max     uint64
		wantErr bool
	}{
		{"lower min", 999_999, 50_000_000, true},
		{"raise max", 1_000_000, 50_000_001, true},
		{"inverted", 10_000_000, 9_000_000, true},
		{"tighten", 2_000_000, 40_000_000, false},
		{"unchanged", 2_000_000, 40_000_000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tr.RequestLimitUpdate(cap, tc.min, tc.max)
			if tc.wantErr {
				requireType(t, err, apperrors.ErrInvalidLimits)
				return
			}
			require.NoError(t, err)
		})
	}

	got, _ := tr.Game(rec.Key)
	assert.Equal(t, uint64(2_000_000), got.MinBet)
	assert.Equal(t, uint64(40_000_000), got.MaxBet)
}

func TestAdminUpdateLimits(t *testing.T) {
	tr := newTestTreasury(t)
	rec, _ := registerAndClaim(t, tr, gameAddr, "dice")

	err := tr.UpdateLimits(gameAddr, rec.Key, 1, 100_000_000, nil)
	requireType(t, err, apperrors.ErrNotAdmin)

	err = tr.UpdateLimits(adminAddr, rec.Key, 0, 100_000_000, nil)
	requireType(t, err, apperrors.ErrInvalidLimits)

	maxPayout := uint64(900_000_000)
	require.NoError(t, tr.UpdateLimits(adminAddr, rec.Key, 1, 100_000_000, &maxPayout))

	got, _ := tr.Game(rec.Key)
	assert.Equal(t, uint64(1), got.MinBet)
	assert.Equal(t, uint64(100_000_000), got.MaxBet)
	assert.Equal(t, maxPayout, got.MaxPayout)
}

func TestUnregisterSettleAndSweep(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	placed, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 10_000_000)
	require.NoError(t, err)
	require.Equal(t, rec.Key, placed.Source)

	requireType(t, tr.UnregisterGame(gameAddr, rec.Key), apperrors.ErrNotAdmin)
	require.NoError(t, tr.UnregisterGame(adminAddr, rec.Key))
	assert.False(t, tr.IsGameRegistered(rec.Key))
	requireType(t, tr.UnregisterGame(adminAddr, rec.Key), apperrors.ErrGameNotRegistered)

	_, err = tr.PlaceBet(cap, playerAddr, 1_000_000, 1_000_000)
	requireType(t, err, apperrors.ErrGameNotRegistered)

	_, err = tr.SweepToCentral(adminAddr, rec.Key)
	requireType(t, err, apperrors.ErrGameHasOpenBets)

	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 0, placed.Source)
	require.NoError(t, err, "open bets still settle after unregistration")

	total := tr.TotalBalance()
	stranded, _ := tr.PerGameBalance(rec.Key)
	require.NotZero(t, stranded)

	_, err = tr.SweepToCentral(otherAddr, rec.Key)
	requireType(t, err, apperrors.ErrNotAdmin)

	moved, err := tr.SweepToCentral(adminAddr, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, stranded, moved)
	assert.Equal(t, total, tr.TotalBalance())
	assert.Equal(t, total, tr.CentralBalance())

	again, err := tr.RegisterGame(adminAddr, diceParams(otherAddr, "dice"))
	require.NoError(t, err, "an emptied key can be registered again")
	assert.Equal(t, rec.Key, again.Key)

	_, err = tr.PlaceBet(cap, playerAddr, 1_000_000, 1_000_000)
	requireType(t, err, apperrors.ErrNotAuthorizedModule)
}

func TestSweepActiveGameRejected(t *testing.T) {
	tr := newTestTreasury(t)
	rec, _ := registerAndClaim(t, tr, gameAddr, "dice")

	_, err := tr.SweepToCentral(adminAddr, rec.Key)
	requireType(t, err, apperrors.ErrInvalidRequest)
}

func TestDepositAndRedeem(t *testing.T) {
	tr := newTestTreasury(t)

	requireType(t, tr.DepositToCentral(0), apperrors.ErrInvalidAmount)
	require.NoError(t, tr.DepositToCentral(100))

	_, err := tr.RedeemFromCentral(0)
	requireType(t, err, apperrors.ErrInvalidAmount)
	_, err = tr.RedeemFromCentral(101)
	requireType(t, err, apperrors.ErrInsufficientBalance)

	got, err := tr.RedeemFromCentral(40)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), got)
	assert.Equal(t, uint64(60), tr.CentralBalance())
	assert.Equal(t, uint64(60), tr.TotalBalance())
}

func TestNAVPerShare(t *testing.T) {
	tr := newTestTreasury(t)
	assert.True(t, tr.NAVPerShare(0).IsZero())

	require.NoError(t, tr.DepositToCentral(3_000))
	assert.Equal(t, "1.5", tr.NAVPerShare(2_000).String())
}

func TestEventsPublishedForMutations(t *testing.T) {
	var (
		mu     sync.Mutex
		events []model.EventType
	)
	sink := EventSinkFunc(func(ev model.TreasuryEvent) {
		mu.Lock()
		events = append(events, ev.Type)
		mu.Unlock()
	})
	tr := newTestTreasury(t, WithEventSink(sink))
	_, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	placed, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 50_000_000)
	require.NoError(t, err)
	_, err = tr.SettleBet(cap, placed.BetID, playerAddr, 50_000_000, placed.Source)
	require.NoError(t, err)

	assert.Equal(t, []model.EventType{
		model.EventGameRegistered,
		model.EventCapabilityIssued,
		model.EventDeposit,
		model.EventBetPlaced,
		model.EventBetSettled,
		model.EventRebalanced,
	}, events)
}

func TestRestoreRoundTrip(t *testing.T) {
	tr := newTestTreasury(t)
	rec, cap := registerAndClaim(t, tr, gameAddr, "dice")
	require.NoError(t, tr.DepositToCentral(1_000_000_000))

	settledBet, err := tr.PlaceBet(cap, playerAddr, 10_000_000, 50_000_000)
	require.NoError(t, err)
	_, err = tr.SettleBet(cap, settledBet.BetID, playerAddr, 0, settledBet.Source)
	require.NoError(t, err)
	open, err := tr.PlaceBet(cap, playerAddr, 2_000_000, 2_000_000)
	require.NoError(t, err)

	state := tr.State()
	before := tr.Snapshot()

	restored := newTestTreasury(t)
	caps, err := restored.Restore(state)
	require.NoError(t, err)
	require.Contains(t, caps, rec.Key)

	after := restored.Snapshot()
	assert.Equal(t, before.Total, after.Total)
	assert.Equal(t, before.Central, after.Central)
	assert.Equal(t, before.Games, after.Games)

	newCap := caps[rec.Key]
	require.Len(t, state.SettledBets, 1)
	_, err = restored.SettleBet(newCap, settledBet.BetID, playerAddr, 0, settledBet.Source)
	requireType(t, err, apperrors.ErrBetAlreadySettled)

	_, err = restored.SettleBet(newCap, open.BetID, playerAddr, 2_000_000, open.Source)
	require.NoError(t, err)

	next, err := restored.PlaceBet(newCap, playerAddr, 1_000_000, 1_000_000)
	require.NoError(t, err)
	assert.Greater(t, next.BetID, open.BetID)

	_, err = restored.PlaceBet(cap, playerAddr, 1_000_000, 1_000_000)
	requireType(t, err, apperrors.ErrNotAuthorizedModule)

	_, err = restored.Restore(state)
	assert.Error(t, err)
}
