package treasury

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *rebalancer {
	t.Helper()
	cfg, err := DefaultConfig().validate()
	require.NoError(t, err)
	return newRebalancer(cfg)
}

func TestObserveMovingAverage(t *testing.T) {
	r := testEngine(t)

	levels := r.observe(r.levelsFor(0), 10_000_000)
	assert.Equal(t, uint64(2_142_857), levels.RollingVolume) // 15_000_000 / 7
	assert.Equal(t, uint64(3_214_285), levels.Target)
	assert.Equal(t, uint64(3_535_713), levels.Overflow)
	assert.Equal(t, uint64(803_571), levels.Drain)

	levels = r.observe(levels, 1_000_000)
	assert.Equal(t, uint64(2_051_020), levels.RollingVolume) // (2_142_857*6 + 1_500_000) / 7
}

func TestObserveConvergesToBoostedAmount(t *testing.T) {
	r := testEngine(t)

	levels := r.levelsFor(0)
	for i := 0; i < 200; i++ {
		levels = r.observe(levels, 1_000_000)
	}
	assert.InDelta(t, 1_500_000, float64(levels.RollingVolume), 10)
}

func TestThresholdOrdering(t *testing.T) {
	r := testEngine(t)

	amounts := []uint64{0, 1, 2, 7, 999, 1_000_000, 123_456_789, math.MaxUint64 / 3, math.MaxUint64}
	for _, v := range amounts {
		levels := r.levelsFor(v)
		assert.Less(t, levels.Drain, levels.Target, "volume %d", v)
		assert.Less(t, levels.Target, levels.Overflow, "volume %d", v)
	}

	levels := r.levelsFor(0)
	for _, amt := range amounts {
		levels = r.observe(levels, amt)
		assert.Less(t, levels.Drain, levels.Target, "after bet %d", amt)
		assert.Less(t, levels.Target, levels.Overflow, "after bet %d", amt)
	}
}

func TestMinimumTargetFloorIsRaisedForTightOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTargetReserve = 1
	cfg.OverflowBps = 10_001

	got, err := cfg.validate()
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), got.MinTargetReserve)

	r := newRebalancer(got)
	levels := r.levelsFor(0)
	assert.Less(t, levels.Target, levels.Overflow)
}

func TestPlan(t *testing.T) {
	r := testEngine(t)
	levels := thresholds{Target: 1_000_000, Overflow: 1_100_000, Drain: 250_000}

	cases := []struct {
		name    string
		balance uint64
		central uint64
		want    RebalanceResult
	}{
		{"inside band", 800_000, 10_000_000, RebalanceResult{Direction: RebalanceNone}},
		{"at overflow", 1_100_000, 10_000_000, RebalanceResult{Direction: RebalanceNone}},
		{"overflow", 2_000_000, 0, RebalanceResult{Direction: RebalanceToCentral, Amount: 100_000}},
		{"overflow rounds down", 1_100_009, 0, RebalanceResult{Direction: RebalanceToCentral, Amount: 10_000}},
		{"at drain", 250_000, 10_000_000, RebalanceResult{Direction: RebalanceNone}},
		{"drain", 100_000, 10_000_000, RebalanceResult{Direction: RebalanceFromCentral, Amount: 900_000}},
		{"drain partial", 100_000, 300_000, RebalanceResult{Direction: RebalanceFromCentral, Amount: 300_000}},
		{"drain empty central", 0, 0, RebalanceResult{Direction: RebalanceNone}},
		{"overflow into full central", 2_000_000, math.MaxUint64 - 5, RebalanceResult{Direction: RebalanceToCentral, Amount: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.plan(tc.balance, tc.central, levels))
		})
	}
}

func TestMulBpsSaturates(t *testing.T) {
	assert.Equal(t, uint64(110), mulBps(100, 11_000))
	assert.Equal(t, uint64(math.MaxUint64), mulBps(math.MaxUint64, 20_000))
	assert.Equal(t, uint64(math.MaxUint64/2), mulBps(math.MaxUint64, 5_000))
}
