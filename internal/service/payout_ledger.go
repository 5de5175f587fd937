package service

import (
	"math"
	"sync"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/ethereum/go-ethereum/common"
)

const recentPayouts = 50

// PayoutLedger is the treasury's payout sink: it books every settled payout
// against the player. Zero payouts are lost bets and are not booked.
type PayoutLedger struct {
	mu      sync.RWMutex
	players map[common.Address]*model.PlayerPayouts
	now     func() time.Time
}

func NewPayoutLedger() *PayoutLedger {
	return &PayoutLedger{
		players: make(map[common.Address]*model.PlayerPayouts),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *PayoutLedger) Credit(player common.Address, betID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.players[player]
	if !ok {
		p = &model.PlayerPayouts{Player: player}
		l.players[player] = p
	}
	if amount > math.MaxUint64-p.Total {
		p.Total = math.MaxUint64
	} else {
		p.Total += amount
	}
	p.Count++
	p.Recent = append(p.Recent, model.PayoutCredit{BetID: betID, Amount: amount, CreditedAt: l.now()})
	if len(p.Recent) > recentPayouts {
		p.Recent = p.Recent[len(p.Recent)-recentPayouts:]
	}
	return nil
}

func (l *PayoutLedger) Payouts(player common.Address) model.PlayerPayouts {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.players[player]
	if !ok {
		return model.PlayerPayouts{Player: player, Recent: []model.PayoutCredit{}}
	}
	out := *p
	out.Recent = make([]model.PayoutCredit, len(p.Recent))
	copy(out.Recent, p.Recent)
	return out
}
