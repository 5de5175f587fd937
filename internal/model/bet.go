package model

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bet is a wager accepted by the treasury. Source is the partition that took
// the wager and must fund the payout.
type Bet struct {
	ID                uint64         `json:"id"`
	GameKey           string         `json:"game_key"`
	Player            common.Address `json:"player"`
	Amount            uint64         `json:"amount"`
	ExpectedMaxPayout uint64         `json:"expected_max_payout"`
	Source            string         `json:"source"`
	Settled           bool           `json:"settled"`
	Payout            uint64         `json:"payout"`
	PlacedAt          time.Time      `json:"placed_at"`
	SettledAt         *time.Time     `json:"settled_at,omitempty"`
}

// HouseResult is wager minus payout: positive when the house won the round.
func (b *Bet) HouseResult() int64 {
	return houseResult(b.Amount, b.Payout)
}

// houseResult is wager - payout clamped to the int64 range; amounts are
// uint64 so the plain conversion would wrap.
func houseResult(wager, payout uint64) int64 {
	if wager >= payout {
		return int64(min(wager-payout, math.MaxInt64))
	}
	d := payout - wager
	if d > math.MaxInt64 {
		return math.MinInt64
	}
	return -int64(d)
}

func (b *Bet) Clone() *Bet {
	if b == nil {
		return nil
	}
	out := *b
	if b.SettledAt != nil {
		at := *b.SettledAt
		out.SettledAt = &at
	}
	return &out
}
