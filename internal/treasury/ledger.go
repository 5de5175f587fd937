package treasury

import (
	"sort"
	"time"

	"github.com/GoPolymarket/housevault/internal/model"
)

// ledger tracks one game's bets. Settled bets are kept so a repeated
// settlement is reported as such rather than as an unknown id.
type ledger struct {
	bets map[uint64]*model.Bet
	open int
}

func newLedger() *ledger {
	return &ledger{bets: make(map[uint64]*model.Bet)}
}

func (l *ledger) record(b *model.Bet) {
	l.bets[b.ID] = b
	if !b.Settled {
		l.open++
	}
}

func (l *ledger) get(id uint64) (*model.Bet, bool) {
	b, ok := l.bets[id]
	return b, ok
}

func (l *ledger) settle(b *model.Bet, payout uint64, at time.Time) {
	if b.Settled {
		return
	}
	b.Settled = true
	b.Payout = payout
	b.SettledAt = &at
	l.open--
}

func (l *ledger) openBets() []*model.Bet {
	return l.collect(false)
}

func (l *ledger) settledBets() []*model.Bet {
	return l.collect(true)
}

func (l *ledger) collect(settled bool) []*model.Bet {
	out := make([]*model.Bet, 0, l.open)
	for _, b := range l.bets {
		if b.Settled == settled {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
