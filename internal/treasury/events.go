package treasury

import (
	"github.com/GoPolymarket/housevault/internal/model"
	"github.com/ethereum/go-ethereum/common"
)

// EventSink receives every committed mutation. Publish is called while
// partition locks are held and must not block.
type EventSink interface {
	Publish(ev model.TreasuryEvent)
}

type EventSinkFunc func(ev model.TreasuryEvent)

func (f EventSinkFunc) Publish(ev model.TreasuryEvent) { f(ev) }

// MultiSink fans an event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Publish(ev model.TreasuryEvent) {
	for _, s := range m {
		if s != nil {
			s.Publish(ev)
		}
	}
}

// PayoutSink delivers a settled payout to the player. It runs inside the
// settlement critical section; an error aborts the settlement untouched.
type PayoutSink interface {
	Credit(player common.Address, betID, amount uint64) error
}

type discardEvents struct{}

func (discardEvents) Publish(model.TreasuryEvent) {}

type discardPayouts struct{}

func (discardPayouts) Credit(common.Address, uint64, uint64) error { return nil }
